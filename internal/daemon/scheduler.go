package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fenilsonani/dlsort/internal/config"
)

// SortJob represents one scheduled or triggered sort
type SortJob struct {
	Name     string
	Schedule string
	DryRun   bool
	NextRun  time.Time
	LastRun  time.Time
}

// Scheduler manages scheduled sort jobs
type Scheduler struct {
	daemon    *Daemon
	cron      *cron.Cron
	jobs      map[string]cron.EntryID
	jobsMu    sync.RWMutex
	running   bool
	schedules []config.Schedule
	ctx       context.Context
}

// NewScheduler creates a new scheduler
func NewScheduler(daemon *Daemon, schedules []config.Schedule) *Scheduler {
	c := cron.New(cron.WithParser(scheduleParser), cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	return &Scheduler{
		daemon:    daemon,
		cron:      c,
		jobs:      make(map[string]cron.EntryID),
		schedules: schedules,
		ctx:       context.Background(),
	}
}

// Start registers every configured schedule and starts cron. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.ctx = ctx

	for _, schedule := range s.schedules {
		if err := s.addJobInternal(schedule); err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", schedule.Name, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.daemon.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop stops the scheduler and waits for a running job
func (s *Scheduler) Stop() {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.daemon.logger.Warn("scheduler stop timed out")
	}

	s.running = false
	s.daemon.logger.Info("scheduler stopped")
}

// addJobInternal adds a job (internal, no lock)
func (s *Scheduler) addJobInternal(schedule config.Schedule) error {
	if _, exists := s.jobs[schedule.Name]; exists {
		return fmt.Errorf("job %s already exists", schedule.Name)
	}

	job := &SortJob{
		Name:     schedule.Name,
		Schedule: schedule.Schedule,
		DryRun:   schedule.DryRun,
	}

	jobFunc := func() {
		s.daemon.logger.Info("executing scheduled job", slog.String("job", job.Name))
		s.daemon.RunJob(s.ctx, job)
	}

	id, err := s.cron.AddFunc(schedule.Schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobs[schedule.Name] = id

	entry := s.cron.Entry(id)
	job.NextRun = entry.Next

	s.daemon.logger.Info("added job",
		slog.String("job", schedule.Name),
		slog.String("schedule", schedule.Schedule),
		slog.Time("next_run", job.NextRun))
	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(name string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)

	s.daemon.logger.Info("removed job", slog.String("job", name))
	return nil
}

// ListJobs returns information about all jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, entry := range s.cron.Entries() {
		var name string
		for n, id := range s.jobs {
			if id == entry.ID {
				name = n
				break
			}
		}

		if name != "" {
			jobs = append(jobs, JobInfo{
				Name:    name,
				NextRun: entry.Next,
				PrevRun: entry.Prev,
			})
		}
	}

	return jobs
}

// TriggerJob runs a configured job now. It reports whether a sort ran.
func (s *Scheduler) TriggerJob(name string) (bool, error) {
	s.jobsMu.RLock()
	_, exists := s.jobs[name]
	var schedule config.Schedule
	for _, sched := range s.schedules {
		if sched.Name == name {
			schedule = sched
			break
		}
	}
	ctx := s.ctx
	s.jobsMu.RUnlock()

	if !exists {
		return false, fmt.Errorf("job %s not found", name)
	}

	job := &SortJob{
		Name:     schedule.Name,
		Schedule: schedule.Schedule,
		DryRun:   schedule.DryRun,
	}

	s.daemon.logger.Info("manually triggering job", slog.String("job", name))
	return s.daemon.RunJob(ctx, job), nil
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	PrevRun time.Time
}

// scheduleParser accepts the standard five fields plus @hourly style descriptors
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks a cron expression with the scheduler's parser
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// NextRun returns when spec fires next after from
func NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched.Next(from), nil
}
