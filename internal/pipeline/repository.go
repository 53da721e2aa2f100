package pipeline

import (
	"context"
	"database/sql"
)

// Tracker records runs and jobs. The database repository is the durable
// implementation; NoopTracker keeps runs in memory only.
type Tracker interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	CreateJob(ctx context.Context, job *Job) error
	UpdateJob(ctx context.Context, job *Job) error
}

// NoopTracker discards every record.
type NoopTracker struct{}

func (NoopTracker) CreateRun(context.Context, *Run) error { return nil }
func (NoopTracker) UpdateRun(context.Context, *Run) error { return nil }
func (NoopTracker) CreateJob(context.Context, *Job) error { return nil }
func (NoopTracker) UpdateJob(context.Context, *Job) error { return nil }

// Repository handles database operations for pipeline tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun creates a new pipeline run record
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO pipeline_runs (
			run_key, pipeline_name, status, total_jobs,
			completed_jobs, failed_jobs, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		run.RunKey, run.PipelineName, run.Status, run.TotalJobs,
		run.CompletedJobs, run.FailedJobs, run.StartedAt,
	).Scan(&run.ID)
}

// UpdateRun updates an existing pipeline run
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, completed_jobs = $2, failed_jobs = $3,
		    completed_at = $4, error_message = $5
		WHERE id = $6
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.CompletedJobs, run.FailedJobs,
		run.CompletedAt, run.ErrorMessage, run.ID,
	)
	return err
}

// CreateJob creates a new job record
func (r *Repository) CreateJob(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO pipeline_jobs (
			pipeline_run_id, name, status, error_message
		) VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		job.RunID, job.Name, job.Status, job.ErrorMessage,
	).Scan(&job.ID)
}

// UpdateJob updates an existing job
func (r *Repository) UpdateJob(ctx context.Context, job *Job) error {
	query := `
		UPDATE pipeline_jobs
		SET status = $1, error_message = $2, processed_at = $3, retry_count = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(
		ctx, query,
		job.Status, job.ErrorMessage, job.ProcessedAt, job.RetryCount, job.ID,
	)
	return err
}

// GetRun retrieves a pipeline run by ID
func (r *Repository) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `
		SELECT id, run_key, pipeline_name, status, total_jobs,
		       completed_jobs, failed_jobs, started_at, completed_at, COALESCE(error_message, '')
		FROM pipeline_runs
		WHERE id = $1
	`

	run := &Run{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.RunKey, &run.PipelineName, &run.Status,
		&run.TotalJobs, &run.CompletedJobs, &run.FailedJobs,
		&run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT id, run_key, pipeline_name, status, total_jobs,
		       completed_jobs, failed_jobs, started_at, completed_at, COALESCE(error_message, '')
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID, &run.RunKey, &run.PipelineName, &run.Status,
			&run.TotalJobs, &run.CompletedJobs, &run.FailedJobs,
			&run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetJobsByRunID retrieves all jobs for a pipeline run
func (r *Repository) GetJobsByRunID(ctx context.Context, runID int64) ([]*Job, error) {
	query := `
		SELECT id, pipeline_run_id, name, status,
		       COALESCE(error_message, ''), processed_at, retry_count
		FROM pipeline_jobs
		WHERE pipeline_run_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.RunID, &job.Name, &job.Status,
			&job.ErrorMessage, &job.ProcessedAt, &job.RetryCount,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}
