// Package watcher reports when new downloads have settled in a directory.
package watcher

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fenilsonani/dlsort/internal/security"
)

// DefaultDebounce is how long a directory must stay quiet before a batch is emitted
const DefaultDebounce = 2 * time.Second

// Batch is a set of file names that changed and have since gone quiet
type Batch struct {
	Dir   string
	Files []string
	At    time.Time
}

// Watcher monitors the top level of a downloads directory using fsnotify.
// Nested directories are not watched.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	// Exclude holds name globs that never trigger a batch
	Exclude []string
	Batches <-chan Batch

	batches chan Batch
	stop    chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// New creates a watcher for dir. A non-positive debounce uses DefaultDebounce.
func New(dir string, debounce time.Duration, exclude []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ch := make(chan Batch, 4)
	return &Watcher{
		Dir:      dir,
		Debounce: debounce,
		Exclude:  exclude,
		Batches:  ch,
		batches:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start begins watching the directory
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		w.watcher.Close()
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and the Batches channel. Pending changes are dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done
	close(w.batches)
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]struct{})
	var last time.Time

	tick := w.Debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Base(event.Name)] = struct{}{}
			last = time.Now()

		case <-ticker.C:
			if len(pending) == 0 || time.Since(last) < w.Debounce {
				continue
			}
			if !w.emit(pending) {
				return
			}
			pending = make(map[string]struct{})

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next event still triggers a batch.
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	// A file moved in arrives as Create; Rename is the old name leaving, which
	// is what every sort does.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if filepath.Clean(filepath.Dir(event.Name)) != filepath.Clean(w.Dir) {
		return false
	}
	name := filepath.Base(event.Name)
	if IsTemporary(name) {
		return false
	}
	return !security.MatchesAny(name, w.Exclude)
}

func (w *Watcher) emit(pending map[string]struct{}) bool {
	files := make([]string, 0, len(pending))
	for name := range pending {
		files = append(files, name)
	}
	sort.Strings(files)

	select {
	case w.batches <- Batch{Dir: w.Dir, Files: files, At: time.Now()}:
		return true
	case <-w.stop:
		return false
	}
}

// IsTemporary reports names written by the mover or by editors mid-save
func IsTemporary(name string) bool {
	return strings.HasPrefix(name, ".dlsort-") || strings.HasSuffix(name, "~")
}
