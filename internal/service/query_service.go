package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/restockplan/internal/cache"
	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/pipeline"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/andresuchdata/restockplan/pkg/logger"
)

// ErrInvalidPriority is returned for a tier filter that is not A-D.
var ErrInvalidPriority = errors.New("invalid priority")

// RunLister reads run history; pipeline.Repository is the implementation.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*pipeline.Run, error)
	GetRun(ctx context.Context, id int64) (*pipeline.Run, error)
	GetJobsByRunID(ctx context.Context, runID int64) ([]*pipeline.Job, error)
}

// QueryService serves the persisted results read-only.
type QueryService struct {
	store repository.Store
	cache cache.EvaluationCache
	runs  RunLister
}

// NewQueryService wires the read side. runs may be nil when run history is
// not tracked.
func NewQueryService(store repository.Store, cacheImpl cache.EvaluationCache, runs RunLister) *QueryService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopEvaluationCache()
	}
	return &QueryService{store: store, cache: cacheImpl, runs: runs}
}

func (s *QueryService) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, error) {
	log := logger.Component("query")
	if evals, ok, err := s.cache.GetEvaluations(ctx, filter); err == nil && ok {
		return evals, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("cache get evaluations failed")
	}

	evals, err := s.store.ListEvaluations(ctx, filter)
	if err != nil {
		return nil, err
	}
	if evals == nil {
		evals = make([]domain.ProductEvaluation, 0)
	}

	if err := s.cache.SetEvaluations(ctx, filter, evals); err != nil {
		log.Warn().Err(err).Msg("cache set evaluations failed")
	}
	return evals, nil
}

func (s *QueryService) GetEvaluation(ctx context.Context, code string) (*domain.ProductEvaluation, error) {
	return s.store.GetEvaluation(ctx, code)
}

// ListBranches returns the latest capacity report of every group.
func (s *QueryService) ListBranches(ctx context.Context) ([]domain.CapacityReport, error) {
	log := logger.Component("query")
	if reports, ok, err := s.cache.GetCapacity(ctx); err == nil && ok {
		return reports, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("cache get capacity failed")
	}

	reports, err := s.store.ListCapacity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetCapacity(ctx, reports); err != nil {
		log.Warn().Err(err).Msg("cache set capacity failed")
	}
	return reports, nil
}

func (s *QueryService) GetCapacity(ctx context.Context, group string) (*domain.CapacityReport, error) {
	return s.store.GetCapacity(ctx, group)
}

// GetRequests lists a group's request lines, optionally for one tier.
func (s *QueryService) GetRequests(ctx context.Context, group, priority string) ([]domain.BranchRequestLine, error) {
	var tier domain.Priority
	if priority != "" {
		p, ok := domain.ParsePriority(priority)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
		}
		tier = p
	}
	lines, err := s.store.GetRequests(ctx, group, tier)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = make([]domain.BranchRequestLine, 0)
	}
	return lines, nil
}

// ListRuns returns the most recent runs first.
func (s *QueryService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	out := make([]domain.RunSummary, 0)
	if s.runs == nil {
		return out, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	for _, r := range runs {
		out = append(out, runSummary(r, nil))
	}
	return out, nil
}

// GetRun returns one run with its jobs.
func (s *QueryService) GetRun(ctx context.Context, id int64) (*domain.RunSummary, error) {
	if s.runs == nil {
		return nil, repository.ErrNotFound
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting run %d: %w", id, err)
	}
	if run == nil {
		return nil, repository.ErrNotFound
	}
	jobs, err := s.runs.GetJobsByRunID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting jobs of run %d: %w", id, err)
	}
	summary := runSummary(run, jobs)
	return &summary, nil
}

func runSummary(r *pipeline.Run, jobs []*pipeline.Job) domain.RunSummary {
	s := domain.RunSummary{
		ID:            r.ID,
		RunKey:        r.RunKey,
		PipelineName:  r.PipelineName,
		Status:        string(r.Status),
		TotalJobs:     r.TotalJobs,
		CompletedJobs: r.CompletedJobs,
		FailedJobs:    r.FailedJobs,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		ErrorMessage:  r.ErrorMessage,
	}
	for _, j := range jobs {
		s.Jobs = append(s.Jobs, domain.JobSummary{
			Name:         j.Name,
			Status:       string(j.Status),
			RetryCount:   j.RetryCount,
			ErrorMessage: j.ErrorMessage,
			ProcessedAt:  j.ProcessedAt,
		})
	}
	return s
}
