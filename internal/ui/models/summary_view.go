package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/ui/styles"
	uiutils "github.com/fenilsonani/dlsort/internal/ui/utils"
)

// maxListedErrors caps the per-file error lines shown under the summary
const maxListedErrors = 5

// SummaryViewModel handles the summary/results view
type SummaryViewModel struct {
	report *session.Report
	err    error
	width  int
	height int
}

// NewSummaryViewModel creates a new summary view model. err is the session's
// fatal error, if any.
func NewSummaryViewModel(report *session.Report, err error, width, height int) *SummaryViewModel {
	if width == 0 {
		width = 80
	}
	return &SummaryViewModel{
		report: report,
		err:    err,
		width:  width,
		height: height,
	}
}

// Init initializes the summary view
func (m *SummaryViewModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *SummaryViewModel) Update(msg tea.Msg) (*SummaryViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "b", "esc":
			return m, func() tea.Msg { return BackToCategoriesMsg{} }
		}
	}

	return m, nil
}

// View renders the summary view
func (m *SummaryViewModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("✨ Sort Summary"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorStyle.Render("✗ " + m.err.Error()))
		b.WriteString("\n\n")
	}

	if r := m.report; r != nil && m.err == nil {
		verb := "Moved"
		if r.DryRun {
			verb = "Would move"
		}

		var size int64
		for _, o := range r.Moved {
			size += o.Result.Size
		}

		b.WriteString(styles.SuccessStyle.Render(fmt.Sprintf("✓ %s %d of %d files", verb, r.Completed, r.Total)))
		b.WriteString("\n")
		if size > 0 {
			b.WriteString(styles.BoldStyle.Render(fmt.Sprintf("Size: %s", humanize.IBytes(uint64(size)))))
			b.WriteString("\n")
		}
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("Took %s", r.Duration().Round(time.Millisecond))))
		b.WriteString("\n\n")

		m.renderCategories(&b)

		if len(r.Skipped) > 0 {
			b.WriteString(styles.WarningStyle.Render(fmt.Sprintf("⚠ Skipped %d excluded files", len(r.Skipped))))
			b.WriteString("\n")
		}
		if r.Canceled {
			b.WriteString(styles.WarningStyle.Render("⚠ Canceled before every file was sorted"))
			b.WriteString("\n")
		}
		if r.Aborted {
			b.WriteString(styles.ErrorStyle.Render("✗ Stopped at the first failure"))
			b.WriteString("\n")
		}

		if len(r.Errors) > 0 {
			b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("✗ %d files could not be moved", len(r.Errors))))
			b.WriteString("\n")
			b.WriteString(mover.FormatErrorSummary(r.RelocationErrors()))
			for i, fe := range r.Errors {
				if i == maxListedErrors {
					b.WriteString(styles.DimStyle.Render(fmt.Sprintf("   ... and %d more", len(r.Errors)-maxListedErrors)))
					b.WriteString("\n")
					break
				}
				b.WriteString("   ")
				b.WriteString(uiutils.TruncateString(fe.Err.UserMessage(), m.width-4))
				b.WriteString("\n")
			}
		}

		if r.DryRun {
			b.WriteString("\n")
			b.WriteString(styles.InfoStyle.Render("Note: This was a dry run. No files were actually moved."))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("enter:back to categories  q:quit"))

	return b.String()
}

// renderCategories lists how many files went to each category
func (m *SummaryViewModel) renderCategories(b *strings.Builder) {
	counts := make(map[string]int)
	for _, o := range m.report.Moved {
		counts[o.Category]++
	}
	if len(counts) == 0 {
		return
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		fmt.Fprintf(b, "  %s %s %s\n",
			styles.GetCategoryIcon(name),
			styles.CategoryStyle.Render(name),
			styles.DimStyle.Render(fmt.Sprintf("%d", counts[name])))
	}
	b.WriteString("\n")
}
