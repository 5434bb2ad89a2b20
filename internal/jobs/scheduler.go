// Package jobs provides the worker's cron scheduler and the shift maintenance jobs it runs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = 2 * time.Minute

// JobFunc is the function signature for jobs.
type JobFunc func(ctx context.Context) error

// Job represents a scheduled job.
type Job struct {
	Name     string
	Schedule string
	Func     JobFunc
	EntryID  cron.EntryID
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*Job
	logger  *slog.Logger
	prom    *observability.Prom
	timeout time.Duration

	mu      sync.RWMutex
	running sync.WaitGroup
}

type SchedulerOption func(*Scheduler)

// WithJobTimeout bounds every job run.
func WithJobTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler creates a new job scheduler. Schedules accept an optional seconds field.
func NewScheduler(logger *slog.Logger, prom *observability.Prom, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		jobs:    make(map[string]*Job),
		logger:  logger,
		prom:    prom,
		timeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job to the scheduler.
func (s *Scheduler) Register(name, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	job := &Job{
		Name:     name,
		Schedule: schedule,
		Func:     fn,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	job.EntryID = entryID
	s.jobs[name] = job

	s.logger.Info("job registered", "name", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.ListJobs()))
}

// Stop stops the scheduler and waits for in-flight runs, including RunNow ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.running.Wait()
	s.logger.Info("scheduler stopped")
}

// RunNow runs a job immediately in the background.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.runJob(job)
	}()
	return nil
}

func (s *Scheduler) runJob(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug("job started", "name", job.Name)

	err := job.Func(ctx)

	duration := time.Since(start)
	s.prom.ObserveJob(job.Name, duration, err)

	if err != nil {
		s.logger.Error("job failed", "name", job.Name, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	s.logger.Info("job completed", "name", job.Name, "duration_ms", duration.Milliseconds())
}

// ListJobs returns all registered jobs ordered by name.
func (s *Scheduler) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}
