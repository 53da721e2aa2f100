package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/restockplan/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes a set of tasks on a bounded worker pool. A failing task
// never stops its siblings; it is retried with backoff and then recorded as
// failed on its own job.
type Runner struct {
	config  Config
	tracker Tracker
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner. A nil tracker records nothing.
func NewRunner(config Config, tracker Tracker) *Runner {
	if tracker == nil {
		tracker = NoopTracker{}
	}
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	return &Runner{config: config, tracker: tracker, sleep: sleepContext}
}

// Execute runs every task under a fresh run key.
func (r *Runner) Execute(ctx context.Context, tasks []Task) (*Result, error) {
	return r.ExecuteRun(ctx, uuid.NewString(), tasks)
}

// ExecuteRun runs every task and returns the run with its jobs. The returned
// error is only set when the run itself could not proceed, never for a
// task failure.
func (r *Runner) ExecuteRun(ctx context.Context, runKey string, tasks []Task) (*Result, error) {
	log := logger.Log.With().Str("pipeline", r.config.Name).Logger()

	run := &Run{
		RunKey:       runKey,
		PipelineName: r.config.Name,
		Status:       StatusPending,
		TotalJobs:    len(tasks),
		StartedAt:    time.Now(),
	}
	if err := r.tracker.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}

	jobs := make([]*Job, len(tasks))
	for i, t := range tasks {
		job := &Job{RunID: run.ID, Name: t.Name, Status: JobQueued}
		if err := r.tracker.CreateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create job %s: %w", t.Name, err)
		}
		jobs[i] = job
	}

	run.Status = StatusProcessing
	r.updateRun(ctx, run)

	log.Info().Str("run_key", run.RunKey).Int("jobs", len(tasks)).Int("workers", r.config.WorkerCount).Msg("run started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.WorkerCount)
	for i := range tasks {
		task, job := tasks[i], jobs[i]
		g.Go(func() error {
			r.process(gctx, task, job)
			return nil
		})
	}
	_ = g.Wait()

	for _, job := range jobs {
		switch job.Status {
		case JobCompleted:
			run.CompletedJobs++
		default:
			run.FailedJobs++
		}
	}
	now := time.Now()
	run.CompletedAt = &now
	switch {
	case run.FailedJobs == 0:
		run.Status = StatusCompleted
	case run.CompletedJobs == 0:
		run.Status = StatusFailed
		run.ErrorMessage = fmt.Sprintf("all %d jobs failed", run.FailedJobs)
	default:
		run.Status = StatusPartial
		run.ErrorMessage = fmt.Sprintf("%d of %d jobs failed", run.FailedJobs, run.TotalJobs)
	}
	r.updateRun(ctx, run)

	log.Info().
		Str("run_key", run.RunKey).
		Str("status", string(run.Status)).
		Int("completed", run.CompletedJobs).
		Int("failed", run.FailedJobs).
		Dur("elapsed", now.Sub(run.StartedAt)).
		Msg("run finished")

	if err := ctx.Err(); err != nil {
		return &Result{Run: run, Jobs: jobs}, err
	}
	return &Result{Run: run, Jobs: jobs}, nil
}

// process runs one task with retries and records the outcome on its job.
func (r *Runner) process(ctx context.Context, task Task, job *Job) {
	log := logger.Log.With().Str("pipeline", r.config.Name).Str("job", task.Name).Logger()

	if err := ctx.Err(); err != nil {
		r.finish(ctx, job, JobSkipped, err)
		return
	}

	for attempt := 0; ; attempt++ {
		job.Status = JobProcessing
		r.updateJob(ctx, job)

		start := time.Now()
		err := task.Run(ctx)
		if err == nil {
			log.Info().Dur("elapsed", time.Since(start)).Int("retries", job.RetryCount).Msg("job completed")
			r.finish(ctx, job, JobCompleted, nil)
			return
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Err(err).Msg("job cancelled")
			r.finish(ctx, job, JobSkipped, err)
			return
		}
		if attempt >= r.config.RetryAttempts {
			log.Error().Err(err).Int("retries", job.RetryCount).Msg("job failed")
			r.finish(ctx, job, JobFailed, err)
			return
		}

		job.RetryCount++
		job.ErrorMessage = err.Error()
		log.Warn().Err(err).Msgf("will retry (attempt %d/%d)", job.RetryCount, r.config.RetryAttempts)
		if err := r.sleep(ctx, r.config.RetryBackoff); err != nil {
			r.finish(ctx, job, JobSkipped, err)
			return
		}
	}
}

func (r *Runner) finish(ctx context.Context, job *Job, status JobStatus, err error) {
	now := time.Now()
	job.Status = status
	job.ProcessedAt = &now
	job.Err = err
	job.ErrorMessage = ""
	if err != nil {
		job.ErrorMessage = err.Error()
	}
	// Tracking must still land when the run's context was cancelled.
	r.updateJob(context.WithoutCancel(ctx), job)
}

func (r *Runner) updateRun(ctx context.Context, run *Run) {
	if err := r.tracker.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Log.Warn().Err(err).Str("pipeline", r.config.Name).Msg("failed to update pipeline run")
	}
}

func (r *Runner) updateJob(ctx context.Context, job *Job) {
	if err := r.tracker.UpdateJob(ctx, job); err != nil {
		logger.Log.Warn().Err(err).Str("pipeline", r.config.Name).Str("job", job.Name).Msg("failed to update job status")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
