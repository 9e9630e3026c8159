// Package jobs runs the dashboard's background work: one-off warm-ups and
// periodic probes, retried with backoff.
package jobs

import (
	"context"
	"time"
)

// Job is a named unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error

	// Schedule repeats the job; nil runs it once.
	Schedule Schedule

	// Config controls retries; nil uses DefaultJobConfig.
	Config *JobConfig
}

// JobConfig holds job configuration
type JobConfig struct {
	// Maximum number of retries after the first attempt
	MaxRetries int

	// Retry backoff strategy
	RetryBackoff BackoffStrategy

	// BaseDelay scales the backoff
	BaseDelay time.Duration

	// Timeout bounds a single attempt
	Timeout time.Duration

	// Delay before the first run
	Delay time.Duration
}

// DefaultJobConfig returns a default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		MaxRetries:   3,
		RetryBackoff: ExponentialBackoff,
		BaseDelay:    time.Second,
		Timeout:      time.Minute,
	}
}

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy string

const (
	NoBackoff          BackoffStrategy = "none"
	LinearBackoff      BackoffStrategy = "linear"
	ExponentialBackoff BackoffStrategy = "exponential"
)

// maxBackoff caps every retry delay.
const maxBackoff = time.Hour

// CalculateBackoff calculates the delay before the given retry attempt,
// counting from 1.
func CalculateBackoff(strategy BackoffStrategy, attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var delay time.Duration
	switch strategy {
	case LinearBackoff:
		delay = time.Duration(attempt) * base
	case ExponentialBackoff:
		if attempt > 30 {
			return maxBackoff
		}
		delay = time.Duration(1<<uint(attempt-1)) * base
	default:
		return 0
	}
	if delay > maxBackoff || delay < 0 {
		return maxBackoff
	}
	return delay
}

// JobError represents a job processing error
type JobError struct {
	Job     string
	Attempt int
	Err     error
	Retry   bool
}

func (e *JobError) Error() string {
	if e.Retry {
		return "job " + e.Job + " failed, will retry: " + e.Err.Error()
	}
	return "job " + e.Job + " failed: " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// JobStats summarises the runs of one job.
type JobStats struct {
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}
