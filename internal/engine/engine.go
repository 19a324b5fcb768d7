// Package engine is the application context: it owns the rule store, the
// destination map, the session runner and the sort journal, and is the only
// place they are mutated.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/destinations"
	"github.com/fenilsonani/dlsort/internal/document"
	"github.com/fenilsonani/dlsort/internal/journal"
	"github.com/fenilsonani/dlsort/internal/logging"
	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/progress"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/security"
	"github.com/fenilsonani/dlsort/internal/session"
)

// Options configures Open
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// DryRun makes every sort classify and report without moving files
	DryRun bool
	// Mover overrides the relocator used by sorts and directory migration
	Mover mover.Relocator
}

// Category is one row of the category view
type Category struct {
	Name        string
	Extensions  []string
	Destination string
	// Custom is true when the destination was set explicitly rather than
	// derived from the base directory
	Custom bool
}

// Engine owns the stores and runs sorts
type Engine struct {
	cfg       *config.Config
	log       *slog.Logger
	dryRun    bool
	mover     mover.Relocator
	validator *security.PathValidator

	mu     sync.Mutex
	rules  *rules.RuleSet
	dirs   *destinations.Map
	runner *session.Runner

	lockMu sync.Mutex
	lock   *session.ProcessLock

	journal *journal.Journal
}

// Open loads the rule and directory documents named in the config. A
// malformed document is logged and replaced by the defaults; it is rewritten
// on the next change. A journal that cannot be opened disables history.
func Open(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	mv := opts.Mover
	if mv == nil {
		mv = mover.New()
	}

	e := &Engine{
		cfg:       opts.Config,
		log:       log,
		dryRun:    opts.DryRun,
		mover:     mv,
		validator: security.NewPathValidator(),
	}

	rs, err := rules.Load(e.cfg.RulesFile)
	if err != nil {
		if !document.IsPersistenceError(err) {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		log.Warn("rules document unreadable, using defaults",
			slog.String("path", e.cfg.RulesFile), slog.Any("error", err))
		rs = rules.Default()
	}
	e.rules = rs

	dirOpts := []destinations.Option{
		destinations.WithLogger(log),
		destinations.WithMover(mv),
		destinations.WithValidator(e.validator),
	}
	dirs, err := destinations.Load(e.cfg.DirectoriesFile, e.cfg.BaseDir, rs.Names(), dirOpts...)
	if err != nil {
		if !document.IsPersistenceError(err) {
			return nil, fmt.Errorf("failed to load directories: %w", err)
		}
		log.Warn("directories document unreadable, using defaults",
			slog.String("path", e.cfg.DirectoriesFile), slog.Any("error", err))
		dirs = destinations.New(e.cfg.DirectoriesFile, e.cfg.BaseDir, rs.Names(), dirOpts...)
	}
	e.dirs = dirs

	if e.cfg.Journal.Enabled {
		j, err := journal.Open(e.cfg.Journal.Path)
		if err != nil {
			log.Warn("sort history disabled", slog.String("path", e.cfg.Journal.Path), slog.Any("error", err))
		} else {
			e.journal = j
		}
	}

	e.runner = &session.Runner{OnComplete: e.onComplete}

	log.Debug("engine opened",
		slog.String("base", dirs.Base()),
		slog.Int("categories", rs.Len()),
		slog.Bool("dry_run", e.dryRun))

	return e, nil
}

// Close releases the journal
func (e *Engine) Close() error {
	return e.journal.Close()
}

// Config returns the settings the engine was opened with
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Logger returns the engine's logger
func (e *Engine) Logger() *slog.Logger {
	return e.log
}

// DryRun reports whether sorts leave files in place
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// Journal returns the sort history, or nil when it is disabled
func (e *Engine) Journal() *journal.Journal {
	return e.journal
}

// BaseDirectory returns the directory that is sorted
func (e *Engine) BaseDirectory() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirs.Base()
}

// Categories returns every category in classification order with its
// destination
func (e *Engine) Categories() []Category {
	e.mu.Lock()
	defer e.mu.Unlock()

	cats := e.rules.Categories()
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		dest, ok := e.dirs.Directory(c.Name)
		if !ok {
			dest = e.dirs.DefaultFor(c.Name)
		}
		out = append(out, Category{
			Name:        c.Name,
			Extensions:  c.Extensions,
			Destination: dest,
			Custom:      !e.dirs.IsDefault(c.Name),
		})
	}
	return out
}

// SetCategoryDirectory points a category at path, moving the files already
// sorted into its old directory. It returns how many files were moved.
func (e *Engine) SetCategoryDirectory(name, path string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rules.Has(name) {
		return 0, fmt.Errorf("%w: %s", rules.ErrUnknownCategory, name)
	}
	return e.dirs.SetDirectory(name, config.ExpandPath(path))
}

// SetCategoryExtensions replaces a category's extension list. An unknown
// name creates the category with a default directory.
func (e *Engine) SetCategoryExtensions(name string, extensions []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rules.SetExtensions(name, extensions); err != nil {
		return err
	}
	if err := rules.Save(e.cfg.RulesFile, e.rules); err != nil {
		return err
	}

	if _, ok := e.dirs.Directory(name); !ok {
		e.dirs.Ensure(name)
		if err := e.dirs.Save(); err != nil {
			return err
		}
	}

	exts, _ := e.rules.Extensions(name)
	e.log.Info("category extensions changed", slog.String("category", name), slog.Any("extensions", exts))
	return nil
}

// AddCategory creates a category ahead of Other
func (e *Engine) AddCategory(name string, extensions []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rules.AddCategory(name, extensions); err != nil {
		return err
	}
	if err := rules.Save(e.cfg.RulesFile, e.rules); err != nil {
		return err
	}
	e.dirs.Ensure(name)
	return e.dirs.Save()
}

// RemoveCategory deletes a category and its directory mapping. Files already
// sorted into its directory stay there.
func (e *Engine) RemoveCategory(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rules.RemoveCategory(name); err != nil {
		return err
	}
	if err := rules.Save(e.cfg.RulesFile, e.rules); err != nil {
		return err
	}
	return e.dirs.Remove(name)
}

// ChangeBaseDirectory switches the directory that is sorted. Categories
// still on their derived directory follow it; nothing is moved.
func (e *Engine) ChangeBaseDirectory(path string) error {
	clean, err := e.validator.ValidateDestination(config.ExpandPath(path))
	if err != nil {
		return fmt.Errorf("invalid base directory: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirs.ChangeBase(clean)
}

// Running reports whether a sort is in progress in this process
func (e *Engine) Running() bool {
	return e.runner.Running()
}

// StartSort launches a sort of the base directory on its own goroutine. It
// fails with session.ErrSessionInProgress while a sort runs in this process
// and with session.ErrLocked while one runs in another.
func (e *Engine) StartSort(ctx context.Context) (*session.Handle, error) {
	return e.start(ctx, e.dryRun)
}

// SortOnce runs a sort to completion, calling onProgress on the calling
// goroutine for every progress event.
func (e *Engine) SortOnce(ctx context.Context, onProgress func(progress.Event)) (*session.Report, error) {
	h, err := e.StartSort(ctx)
	if err != nil {
		return nil, err
	}
	return follow(h, onProgress)
}

// Sort runs a sort to completion without progress reporting. dryRun is
// combined with the engine's own setting.
func (e *Engine) Sort(ctx context.Context, dryRun bool) (*session.Report, error) {
	h, err := e.start(ctx, e.dryRun || dryRun)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

func follow(h *session.Handle, onProgress func(progress.Event)) (*session.Report, error) {
	deliver := func() {
		for _, ev := range h.Events.Drain() {
			if onProgress != nil {
				onProgress(ev)
			}
		}
	}

	for {
		select {
		case <-h.Events.Notify():
			deliver()
		case <-h.Done():
			deliver()
			return h.Wait()
		}
	}
}

func (e *Engine) start(ctx context.Context, dryRun bool) (*session.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner.Running() {
		return nil, session.ErrSessionInProgress
	}

	lock, err := session.AcquireLock(e.cfg.LockFile)
	if err != nil {
		return nil, err
	}

	if e.cfg.CreateMissingDirs && !dryRun {
		if err := e.dirs.EnsureDirectories(); err != nil {
			e.log.Warn("some destination directories could not be created", slog.Any("error", err))
		}
	}

	req := session.Request{
		Source:       e.dirs.Base(),
		Rules:        e.rules.Clone(),
		Destinations: e.dirs.Snapshot(),
		Policy:       e.cfg.Policy(),
		Exclude:      append([]string(nil), e.cfg.ExcludePatterns...),
		Mover:        e.relocator(dryRun),
		DryRun:       dryRun,
		Logger:       e.log,
	}

	e.lockMu.Lock()
	e.lock = lock
	e.lockMu.Unlock()

	h, err := e.runner.Start(ctx, req)
	if err != nil {
		e.releaseLock()
		return nil, err
	}
	return h, nil
}

func (e *Engine) relocator(dryRun bool) mover.Relocator {
	if !dryRun {
		return e.mover
	}
	plan := &mover.Mover{DryRun: true}
	if e.cfg.CreateMissingDirs {
		return plannedDirs{plan}
	}
	return plan
}

// plannedDirs treats a missing destination as one a real sort would create
type plannedDirs struct {
	next mover.Relocator
}

func (p plannedDirs) Relocate(src, destDir string) (mover.Result, error) {
	if _, err := os.Stat(destDir); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Lstat(src); err != nil {
			return mover.Result{Source: src}, err
		}
		return mover.Result{
			Source:      src,
			Destination: filepath.Join(destDir, filepath.Base(src)),
			Method:      mover.MethodDryRun,
		}, nil
	}
	return p.next.Relocate(src, destDir)
}

func (e *Engine) onComplete(report *session.Report, err error) {
	defer e.releaseLock()

	if e.journal == nil || report == nil {
		return
	}
	if recErr := e.journal.Record(context.Background(), report); recErr != nil {
		e.log.Warn("failed to record sort history", slog.String("session", report.ID.String()), slog.Any("error", recErr))
	}
}

func (e *Engine) releaseLock() {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()

	if e.lock == nil {
		return
	}
	if err := e.lock.Release(); err != nil {
		e.log.Warn("failed to release sort lock", slog.String("path", e.lock.Path()), slog.Any("error", err))
	}
	e.lock = nil
}
