package pipeline

import (
	"context"
	"time"
)

// Task is one independently retryable unit of a run, a branch group in practice.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config holds configuration for a runner instance
type Config struct {
	Name          string
	WorkerCount   int           // Number of concurrent workers
	RetryAttempts int           // Number of retries after the first failure
	RetryBackoff  time.Duration // Backoff duration between retries
}

// DefaultConfig returns sensible defaults
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		WorkerCount:   4,
		RetryAttempts: 2,
		RetryBackoff:  5 * time.Second,
	}
}

// RunStatus represents the current state of a pipeline run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	// StatusPartial means at least one job failed and at least one completed.
	StatusPartial RunStatus = "partial"
	StatusFailed  RunStatus = "failed"
)

// JobStatus represents the state of a single job
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobSkipped    JobStatus = "skipped"
)

// Run tracks a single execution of a pipeline
type Run struct {
	ID            int64
	RunKey        string
	PipelineName  string
	Status        RunStatus
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	StartedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
}

// Job tracks the processing of a single task
type Job struct {
	ID           int64
	RunID        int64
	Name         string
	Status       JobStatus
	ErrorMessage string
	ProcessedAt  *time.Time
	RetryCount   int

	// Err is the last failure, kept for callers that match on it.
	Err error
}

// Result is what a finished run reports back to its caller.
type Result struct {
	Run  *Run
	Jobs []*Job
}

// Failed lists the jobs that did not complete.
func (r *Result) Failed() []*Job {
	var out []*Job
	for _, j := range r.Jobs {
		if j.Status != JobCompleted {
			out = append(out, j)
		}
	}
	return out
}
