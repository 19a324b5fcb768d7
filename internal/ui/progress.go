package ui

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/fenilsonani/dlsort/internal/progress"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
	uiutils "github.com/fenilsonani/dlsort/internal/ui/utils"
)

// LiveProgress redraws a single progress line while a sort runs
type LiveProgress struct {
	mu         sync.Mutex
	out        io.Writer
	tracker    *progress.Tracker
	lastUpdate time.Time
	throttle   time.Duration
	termWidth  int
	enabled    bool
}

// NewLiveProgress creates a live progress display writing to out. The width
// comes from the terminal when out is one.
func NewLiveProgress(out io.Writer) *LiveProgress {
	width := 80
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	return &LiveProgress{
		out:       out,
		tracker:   progress.NewTracker(0),
		throttle:  100 * time.Millisecond,
		termWidth: width,
		enabled:   true,
	}
}

// OnEvent folds one progress event into the display. It is meant to be
// passed to engine.SortOnce.
func (lp *LiveProgress) OnEvent(e progress.Event) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if lp.tracker.Total == 0 && e.Fraction > 0 {
		lp.tracker.Total = int(math.Round(float64(e.Completed) / e.Fraction))
	}
	if !lp.tracker.Apply([]progress.Event{e}) || !lp.enabled {
		return
	}

	// Throttle updates to avoid flickering, but always draw the last one
	now := time.Now()
	if now.Sub(lp.lastUpdate) < lp.throttle && lp.tracker.Completed < lp.tracker.Total {
		return
	}
	lp.lastUpdate = now

	lp.render()
}

// Tracker returns the current progress state
func (lp *LiveProgress) Tracker() *progress.Tracker {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.tracker
}

// render draws the progress line in place
func (lp *LiveProgress) render() {
	width := lp.termWidth - 2
	barWidth := width / 3
	if barWidth > 40 {
		barWidth = 40
	}

	line := fmt.Sprintf("%s %s",
		styles.ProgressBar(lp.tracker.Completed, lp.tracker.Total, barWidth),
		uiutils.TruncateString(lp.tracker.String(), width-barWidth-1))
	fmt.Fprintf(lp.out, "\r\033[K%s", line)
}

// Finish ends the progress line
func (lp *LiveProgress) Finish() {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.enabled || lp.lastUpdate.IsZero() {
		return
	}
	fmt.Fprint(lp.out, "\r\033[K")
}

// SetEnabled enables or disables live progress
func (lp *LiveProgress) SetEnabled(enabled bool) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.enabled = enabled
}

// maxTreeFiles caps the files listed per category
const maxTreeFiles = 5

// PrintMovedTree prints the moved files grouped by category folder
func PrintMovedTree(w io.Writer, report *session.Report) {
	if report == nil || len(report.Moved) == 0 {
		return
	}

	byCategory := make(map[string][]session.Outcome)
	for _, o := range report.Moved {
		byCategory[o.Category] = append(byCategory[o.Category], o)
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	for _, name := range names {
		files := byCategory[name]

		var size int64
		for _, o := range files {
			size += o.Result.Size
		}
		total += size

		dir := filepath.Dir(files[0].Result.Destination)
		fmt.Fprintf(w, "\n╭─ %s %s (%d files, %s)\n", styles.GetCategoryIcon(name), name, len(files), humanize.IBytes(uint64(size)))
		fmt.Fprintf(w, "╰── 📁 %s\n", dir)

		showCount := len(files)
		if showCount > maxTreeFiles {
			showCount = maxTreeFiles
		}

		for i := 0; i < showCount; i++ {
			connector := "    ├"
			if i == showCount-1 && len(files) <= maxTreeFiles {
				connector = "    ╰"
			}
			fmt.Fprintf(w, "%s── %s (%s)\n", connector, files[i].Name, humanize.IBytes(uint64(files[i].Result.Size)))
		}

		if len(files) > maxTreeFiles {
			fmt.Fprintf(w, "    ╰── ... and %d more files\n", len(files)-maxTreeFiles)
		}
	}

	fmt.Fprintf(w, "\n════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Total: %d files | %s\n", len(report.Moved), humanize.IBytes(uint64(total)))
}
