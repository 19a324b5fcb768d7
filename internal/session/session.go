// Package session runs one sorting pass over the downloads directory.
//
// A session enumerates the direct entries of its source directory, classifies
// every regular file by extension and relocates it into the directory mapped
// to its category. It works on its own snapshot of the rules and the
// destination map and reports progress once per relocated file.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fenilsonani/dlsort/internal/classifier"
	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/progress"
	"github.com/fenilsonani/dlsort/internal/rules"
	"github.com/fenilsonani/dlsort/internal/security"
)

// Request describes what a session sorts and how
type Request struct {
	// Source is the directory whose direct entries are sorted
	Source string
	// Rules is read-only for the lifetime of the session
	Rules *rules.RuleSet
	// Destinations maps every category to its directory
	Destinations map[string]string
	Policy       Policy
	// Exclude holds file name globs left untouched, e.g. partial downloads
	Exclude []string
	// Mover defaults to mover.New()
	Mover mover.Relocator
	// DryRun is recorded on the report; pass a dry-run Mover to honor it
	DryRun bool
	Logger *slog.Logger
}

// Outcome is one successfully relocated file
type Outcome struct {
	Name     string
	Category string
	Result   mover.Result
}

// FileError is one file the session could not relocate
type FileError struct {
	Name     string
	Category string
	Err      *mover.RelocationError
}

// Error implements the error interface
func (e FileError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Name, e.Category, e.Err)
}

// Unwrap returns the relocation error
func (e FileError) Unwrap() error {
	return e.Err
}

// SourceDirectoryError means the source directory could not be enumerated.
// It is fatal to the session.
type SourceDirectoryError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *SourceDirectoryError) Error() string {
	return fmt.Sprintf("cannot read source directory %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error
func (e *SourceDirectoryError) Unwrap() error {
	return e.Err
}

// Report summarizes a finished session
type Report struct {
	ID        uuid.UUID
	Source    string
	State     State
	DryRun    bool
	Total     int
	Completed int
	Moved     []Outcome
	Errors    []FileError
	// Skipped lists names matching an exclude pattern
	Skipped    []string
	Aborted    bool
	Canceled   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the session ran
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RelocationErrors returns the per-file errors for mover.FormatErrorSummary
func (r *Report) RelocationErrors() []*mover.RelocationError {
	errs := make([]*mover.RelocationError, 0, len(r.Errors))
	for _, fe := range r.Errors {
		errs = append(errs, fe.Err)
	}
	return errs
}

// Err joins the per-file errors, or returns nil when every file moved
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, fe := range r.Errors {
		errs = append(errs, fe)
	}
	return errors.Join(errs...)
}

// Session is a single sorting pass. Run it once.
type Session struct {
	id    uuid.UUID
	req   Request
	state atomic.Int32
	total atomic.Int64
}

// New creates an idle session for req
func New(req Request) *Session {
	if req.Mover == nil {
		req.Mover = mover.New()
	}
	if req.Logger == nil {
		req.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if req.Rules == nil {
		req.Rules = rules.Default()
	}
	return &Session{id: uuid.New(), req: req}
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state. Safe from any goroutine.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Total returns the number of files counted during scanning
func (s *Session) Total() int {
	return int(s.total.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// candidate is a file found during scanning
type candidate struct {
	name string
	path string
}

// Run performs the pass. onProgress, if set, is called on the calling
// goroutine once per relocated file with strictly increasing counts.
//
// The returned error is non-nil only for a *SourceDirectoryError; per-file
// failures are listed in the report.
func (s *Session) Run(ctx context.Context, onProgress func(progress.Event)) (*Report, error) {
	log := s.req.Logger.With(slog.String("session", s.id.String()))
	report := &Report{
		ID:        s.id,
		Source:    s.req.Source,
		DryRun:    s.req.DryRun,
		StartedAt: time.Now(),
	}
	finish := func(st State) *Report {
		s.setState(st)
		report.State = st
		report.FinishedAt = time.Now()
		return report
	}

	s.setState(StateScanning)
	files, skipped, err := s.scan()
	if err != nil {
		log.Error("source directory unreadable", slog.String("source", s.req.Source), slog.Any("error", err))
		return finish(StateFailed), err
	}
	report.Skipped = skipped
	report.Total = len(files)
	s.total.Store(int64(len(files)))

	log.Info("sort started",
		slog.String("source", s.req.Source),
		slog.Int("files", len(files)),
		slog.Int("skipped", len(skipped)),
		slog.String("policy", s.req.Policy.String()),
		slog.Bool("dry_run", s.req.DryRun))

	index := classifier.NewIndex(s.req.Rules)

	for _, f := range files {
		if ctx.Err() != nil {
			report.Canceled = true
			log.Info("sort canceled", slog.Int("completed", report.Completed), slog.Int("total", report.Total))
			break
		}

		s.setState(StateClassifying)
		category := index.Classify(f.name)

		s.setState(StateRelocating)
		res, relErr := s.relocate(f, category)
		if relErr != nil {
			report.Errors = append(report.Errors, FileError{Name: f.name, Category: category, Err: relErr})
			log.Warn("file not moved",
				slog.String("file", f.name),
				slog.String("category", category),
				slog.String("reason", relErr.Reason.String()),
				slog.Any("error", relErr.Original))

			if s.req.Policy == PolicyAbort {
				report.Aborted = true
				break
			}
			continue
		}

		report.Completed++
		report.Moved = append(report.Moved, Outcome{Name: f.name, Category: category, Result: res})
		log.Debug("file moved",
			slog.String("file", f.name),
			slog.String("category", category),
			slog.String("destination", res.Destination),
			slog.String("method", string(res.Method)))

		if onProgress != nil {
			onProgress(progress.Event{
				Fraction:  float64(report.Completed) / float64(report.Total),
				Completed: report.Completed,
			})
		}
	}

	log.Info("sort finished",
		slog.Int("moved", report.Completed),
		slog.Int("failed", len(report.Errors)),
		slog.Bool("aborted", report.Aborted),
		slog.Bool("canceled", report.Canceled))

	return finish(StateCompleted), nil
}

func (s *Session) relocate(f candidate, category string) (mover.Result, *mover.RelocationError) {
	dest, ok := s.req.Destinations[category]
	if !ok || dest == "" {
		return mover.Result{Source: f.path}, &mover.RelocationError{
			Path:     f.path,
			Reason:   mover.ReasonDestinationMissing,
			Original: fmt.Errorf("no destination configured for category %q", category),
		}
	}

	res, err := s.req.Mover.Relocate(f.path, dest)
	if err != nil {
		return res, mover.CategorizeError(f.path, dest, err)
	}
	return res, nil
}

// scan lists the regular files directly inside the source directory.
// Directories are not descended into; symlinks count when they resolve to a
// regular file.
func (s *Session) scan() ([]candidate, []string, error) {
	entries, err := os.ReadDir(s.req.Source)
	if err != nil {
		return nil, nil, &SourceDirectoryError{Path: s.req.Source, Err: err}
	}

	var (
		files   []candidate
		skipped []string
	)
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(s.req.Source, name)

		switch {
		case e.IsDir():
			continue
		case e.Type()&os.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		case !e.Type().IsRegular():
			continue
		}

		if security.MatchesAny(name, s.req.Exclude) {
			skipped = append(skipped, name)
			continue
		}

		files = append(files, candidate{name: name, path: path})
	}

	return files, skipped, nil
}
