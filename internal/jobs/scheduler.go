package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Schedule defines when a job should run again
type Schedule interface {
	// Next returns the next execution time after the given time
	Next(t time.Time) time.Time
}

// IntervalSchedule runs a job at fixed intervals
type IntervalSchedule struct {
	Interval time.Duration
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// Every creates an interval schedule
func Every(interval time.Duration) Schedule {
	return &IntervalSchedule{Interval: interval}
}

// Scheduler runs registered jobs, each on its own goroutine.
type Scheduler struct {
	logger *slog.Logger

	mu    sync.Mutex
	jobs  []Job
	stats map[string]*JobStats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new job scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		stats:  make(map[string]*JobStats),
	}
}

// Register adds a job. Jobs registered after Start are not run.
func (s *Scheduler) Register(job Job) {
	if job.Config == nil {
		job.Config = DefaultJobConfig()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.stats[job.Name] = &JobStats{}
	s.logger.Debug("job registered", "job", job.Name, "repeats", job.Schedule != nil)
}

// Start launches every registered job. The jobs outlive ctx's deadline but
// not its cancellation; Stop ends them either way.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until every job has returned. Jobs with a schedule only return
// once stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops the scheduler.
func (s *Scheduler) Close() error {
	s.Stop()
	s.logger.Info("scheduler stopped")
	return nil
}

// Stats returns a copy of the named job's counters.
func (s *Scheduler) Stats(name string) (JobStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[name]
	if !ok {
		return JobStats{}, false
	}
	return *st, true
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if !sleep(ctx, job.Config.Delay) {
		return
	}
	for {
		s.execute(ctx, job)
		if job.Schedule == nil {
			return
		}
		now := time.Now()
		if !sleep(ctx, job.Schedule.Next(now).Sub(now)) {
			return
		}
	}
}

// execute runs job once, retrying failed attempts with backoff.
func (s *Scheduler) execute(ctx context.Context, job Job) {
	cfg := job.Config
	for attempt := 0; ; attempt++ {
		err := s.attempt(ctx, job)
		s.record(job.Name, err)
		if err == nil {
			s.logger.Debug("job completed", "job", job.Name, "attempt", attempt+1)
			return
		}
		if ctx.Err() != nil {
			return
		}

		jerr := &JobError{Job: job.Name, Attempt: attempt + 1, Err: err, Retry: attempt < cfg.MaxRetries}
		if !jerr.Retry {
			s.logger.Error("job failed", "job", job.Name, "attempts", attempt+1, "error", jerr)
			return
		}
		delay := CalculateBackoff(cfg.RetryBackoff, attempt+1, cfg.BaseDelay)
		s.logger.Warn("job failed", "job", job.Name, "attempt", attempt+1, "retry_in", delay.String(), "error", jerr)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (s *Scheduler) attempt(ctx context.Context, job Job) error {
	if job.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Config.Timeout)
		defer cancel()
	}
	return job.Run(ctx)
}

func (s *Scheduler) record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[name]
	st.Runs++
	st.LastRun = time.Now()
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
