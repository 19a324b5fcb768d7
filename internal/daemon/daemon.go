// Package daemon keeps the downloads directory sorted in the background: on
// cron schedules, whenever new downloads settle, and on SIGHUP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/watcher"
)

// Sorter runs one sort to completion
type Sorter interface {
	Sort(ctx context.Context, dryRun bool) (*session.Report, error)
}

// Daemon represents the background sorter
type Daemon struct {
	config    *config.Config
	source    string
	sorter    Sorter
	scheduler *Scheduler
	notifier  *Notifier
	logger    *slog.Logger
	running   bool
	mu        sync.RWMutex

	// jobs serializes runs triggered from the scheduler, the watcher and
	// signals so that overlapping triggers are skipped rather than queued
	jobs sync.Mutex
}

// New creates a daemon that sorts source with sorter
func New(cfg *config.Config, source string, sorter Sorter, logger *slog.Logger) (*Daemon, error) {
	if sorter == nil {
		return nil, errors.New("daemon: sorter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		config: cfg,
		source: source,
		sorter: sorter,
		logger: logger.With(slog.String("component", "daemon")),
	}

	d.scheduler = NewScheduler(d, cfg.Daemon.Schedules)

	if cfg.Daemon.Notifications.Enabled {
		d.notifier = NewNotifier(&cfg.Daemon.Notifications, d.logger)
	}

	return d, nil
}

// Run starts the daemon and blocks until ctx is canceled or SIGINT/SIGTERM
// arrives. Only one daemon can run per lock file.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	lock, err := session.AcquireLock(d.config.Daemon.LockFile)
	if err != nil {
		if errors.Is(err, session.ErrLocked) {
			return fmt.Errorf("daemon already running (lock file %s)", d.config.Daemon.LockFile)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.Info("starting daemon",
		slog.String("source", d.source),
		slog.Int("pid", os.Getpid()),
		slog.Bool("watch", d.config.Daemon.Watch))

	stopSignals := d.setupSignalHandlers(ctx, cancel)
	defer stopSignals()

	if err := d.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer d.scheduler.Stop()

	var wg sync.WaitGroup
	if d.config.Daemon.Watch {
		w, err := watcher.New(d.source, d.config.Watch.Debounce, d.config.ExcludePatterns)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d.source, err)
		}
		defer w.Stop()

		wg.Add(1)
		go func() {
			defer wg.Done()
			d.consumeBatches(ctx, w.Batches)
		}()
	}

	if d.notifier != nil {
		d.notifier.SendStartupNotification()
	}

	// Catch up on anything downloaded while the daemon was down
	d.RunJob(ctx, &SortJob{Name: "startup"})

	d.logger.Info("daemon started", slog.Int("jobs", len(d.scheduler.ListJobs())))

	<-ctx.Done()

	d.logger.Info("daemon shutting down")
	wg.Wait()

	if d.notifier != nil {
		d.notifier.SendShutdownNotification()
	}

	return nil
}

// IsRunning returns whether the daemon is running
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Scheduler returns the cron scheduler
func (d *Daemon) Scheduler() *Scheduler {
	return d.scheduler
}

// RunJob executes one sort. A trigger that arrives while another sort runs
// is skipped. It reports whether a sort ran.
func (d *Daemon) RunJob(ctx context.Context, job *SortJob) bool {
	if !d.jobs.TryLock() {
		d.logger.Info("sort already running, skipping trigger", slog.String("job", job.Name))
		return false
	}
	defer d.jobs.Unlock()

	log := d.logger.With(slog.String("job", job.Name))
	log.Info("running sort", slog.Bool("dry_run", job.DryRun))
	job.LastRun = time.Now()

	report, err := d.sorter.Sort(ctx, job.DryRun)
	if err != nil {
		if errors.Is(err, session.ErrLocked) || errors.Is(err, session.ErrSessionInProgress) {
			log.Info("another sort holds the lock, skipping", slog.Any("error", err))
			return false
		}
		log.Error("sort failed", slog.Any("error", err))
		if d.notifier != nil {
			d.notifier.SendFailureNotification(job, err)
		}
		return true
	}

	log.Info("sort completed",
		slog.Int("moved", report.Completed),
		slog.Int("failed", len(report.Errors)),
		slog.Duration("duration", report.Duration()))

	if d.notifier != nil && report.Total > 0 {
		d.notifier.SendSortNotification(job, report)
	}
	return true
}

func (d *Daemon) consumeBatches(ctx context.Context, batches <-chan watcher.Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			d.logger.Debug("downloads settled", slog.Int("files", len(b.Files)))
			d.RunJob(ctx, &SortJob{Name: "watch"})
		}
	}
}

// setupSignalHandlers cancels on SIGINT/SIGTERM and sorts immediately on
// SIGHUP. The returned func stops signal delivery.
func (d *Daemon) setupSignalHandlers(ctx context.Context, cancel context.CancelFunc) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGINT, syscall.SIGTERM:
					d.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
					cancel()
				case syscall.SIGHUP:
					d.logger.Info("received SIGHUP, sorting now")
					go d.RunJob(ctx, &SortJob{Name: "signal"})
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
