package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/andresuchdata/restockplan/internal/cache"
	"github.com/andresuchdata/restockplan/internal/config"
	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/evaluation"
	"github.com/andresuchdata/restockplan/internal/ingest"
	"github.com/andresuchdata/restockplan/internal/pipeline"
	"github.com/andresuchdata/restockplan/internal/report"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/andresuchdata/restockplan/internal/restock"
	"github.com/andresuchdata/restockplan/internal/storage"
	"github.com/andresuchdata/restockplan/pkg/logger"
	"github.com/google/uuid"
)

const (
	pipelineName = "restock_recommendation"
	formsDir     = "forms"
)

// Deps are the collaborators of a RestockService. Only Store is required.
type Deps struct {
	Store    repository.Store
	Cache    cache.EvaluationCache
	Tracker  pipeline.Tracker
	Source   ExtractSource
	Uploader storage.ObjectStorage
	// UploadPrefix is where run outputs go in object storage.
	UploadPrefix string
}

// RestockService runs the two stages: evaluation, then per-group
// recommendation. The persisted evaluation table is the barrier between them.
type RestockService struct {
	engine   config.EngineConfig
	pipeline pipeline.Config
	deps     Deps
}

func NewRestockService(engine config.EngineConfig, pipeCfg config.PipelineConfig, deps Deps) (*RestockService, error) {
	if deps.Store == nil {
		return nil, errors.New("restock service: store is required")
	}
	if err := engine.Registry.Validate(); err != nil {
		return nil, err
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopEvaluationCache()
	}
	if deps.Source == nil {
		deps.Source = LocalSource{}
	}

	pc := pipeline.DefaultConfig(pipelineName)
	if pipeCfg.Workers > 0 {
		pc.WorkerCount = pipeCfg.Workers
	}
	if pipeCfg.RetryAttempts >= 0 {
		pc.RetryAttempts = pipeCfg.RetryAttempts
	}
	if pipeCfg.RetryBackoffSeconds >= 0 {
		pc.RetryBackoff = time.Duration(pipeCfg.RetryBackoffSeconds) * time.Second
	}

	return &RestockService{engine: engine, pipeline: pc, deps: deps}, nil
}

// LoadInputs stages and parses every extract.
func (s *RestockService) LoadInputs(ctx context.Context) (*ingest.Inputs, error) {
	if err := config.EnsureDir(s.engine.InputDir); err != nil {
		return nil, err
	}
	if err := s.deps.Source.Fetch(ctx, s.engine.InputDir); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExtract, err)
	}

	dir, files := s.engine.InputDir, s.engine.Files
	paths := ingest.Paths{
		Inventory:  filepath.Join(dir, files.Inventory),
		Sales:      filepath.Join(dir, files.Sales),
		Margins:    filepath.Join(dir, files.Margins),
		Stock:      filepath.Join(dir, files.Stock),
		Products:   optionalPath(dir, files.Products),
		Exclusions: optionalPath(dir, files.Exclusions),
	}
	return ingest.Load(paths, ingest.Options{
		SheetSkipRows:    s.engine.SheetSkipRows,
		MarginFractional: s.engine.MarginFractional,
	})
}

// EvaluateResult is a persisted evaluation run.
type EvaluateResult struct {
	RunKey string
	*evaluation.Result
}

// Evaluate rebuilds the evaluation table and replaces the stored one.
func (s *RestockService) Evaluate(ctx context.Context, in *ingest.Inputs) (*EvaluateResult, error) {
	log := logger.Component("restock")

	engine := evaluation.NewEngine(evaluation.Options{
		Categories:           s.engine.Categories,
		Warehouses:           s.engine.WarehousesOfInterest,
		DSIEndDate:           evaluation.DSIEndDate(s.engine.DSIEndDate),
		RefreshTypeSummaries: s.engine.RefreshTypeSummaries,
	})
	res, err := engine.Evaluate(ctx, evaluation.Inputs{
		Inventory: in.Inventory,
		Sales:     in.Sales,
		Margins:   in.Margins,
		Stock:     in.Stock,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	runKey := uuid.NewString()
	if err := s.deps.Store.ReplaceEvaluations(ctx, runKey, res.Evaluations); err != nil {
		return nil, fmt.Errorf("failed to persist evaluations: %w", err)
	}
	if err := s.deps.Cache.InvalidateEvaluations(ctx); err != nil {
		log.Warn().Err(err).Msg("cache invalidate evaluations failed")
	}

	log.Info().Str("run_key", runKey).Int("evaluations", len(res.Evaluations)).Msg("evaluation persisted")
	return &EvaluateResult{RunKey: runKey, Result: res}, nil
}

// Recommend computes every selected group in parallel from the persisted
// evaluation table. Empty groups selects the whole registry. A failed group
// never stops the others; the returned result lists it.
func (s *RestockService) Recommend(ctx context.Context, in *ingest.Inputs, groups []string) (*pipeline.Result, error) {
	log := logger.Component("restock")

	selected, err := s.selectGroups(groups)
	if err != nil {
		return nil, err
	}

	evals, err := s.deps.Store.ListEvaluations(ctx, domain.EvaluationFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluations: %w", err)
	}
	if len(evals) == 0 {
		log.Warn().Msg("no persisted evaluations, every line will fall to priority C")
	}

	shares := restock.ShareRatios(in.Sales, s.engine.Registry)
	inputs := restock.NewInputs(in.Stock, in.Sales, in.Inventory, evals, in.Products, in.Exclusions, shares)
	calc := restock.NewCalculator(s.calculatorOptions())

	writeForms := s.engine.WriteXLSX
	formDir := filepath.Join(s.engine.OutputDir, formsDir)
	if writeForms {
		if err := config.EnsureDir(formDir); err != nil {
			return nil, err
		}
	}

	runKey := uuid.NewString()
	tasks := make([]pipeline.Task, 0, len(selected))
	for _, g := range selected {
		group := g
		tasks = append(tasks, pipeline.Task{
			Name: group.Name,
			Run: func(ctx context.Context) error {
				res, err := calc.Branch(ctx, group, inputs)
				if err != nil {
					return err
				}
				if err := s.deps.Store.SaveBranchResult(ctx, runKey, res); err != nil {
					return fmt.Errorf("failed to persist group %s: %w", group.Name, err)
				}
				if writeForms {
					if _, err := report.WriteRequestForm(formDir, res); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	result, err := pipeline.NewRunner(s.pipeline, s.deps.Tracker).ExecuteRun(ctx, runKey, tasks)
	if err != nil && result == nil {
		return nil, err
	}
	if cerr := s.deps.Cache.InvalidateCapacity(context.WithoutCancel(ctx)); cerr != nil {
		log.Warn().Err(cerr).Msg("cache invalidate capacity failed")
	}
	if err != nil {
		return result, err
	}

	if s.deps.Uploader != nil {
		prefix := filepath.ToSlash(filepath.Join(s.deps.UploadPrefix, runKey))
		keys, uerr := storage.UploadDir(ctx, s.deps.Uploader, s.engine.OutputDir, prefix)
		if uerr != nil {
			return result, fmt.Errorf("failed to upload outputs: %w", uerr)
		}
		log.Info().Str("prefix", prefix).Int("objects", len(keys)).Msg("outputs uploaded")
	}
	return result, nil
}

// RunResult is what a full evaluate-then-recommend run produced.
type RunResult struct {
	Evaluation     *EvaluateResult
	Recommendation *pipeline.Result
}

// Run loads the extracts once and runs both stages.
func (s *RestockService) Run(ctx context.Context, groups []string) (*RunResult, error) {
	in, err := s.LoadInputs(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := s.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.Recommend(ctx, in, groups)
	return &RunResult{Evaluation: ev, Recommendation: rec}, err
}

func (s *RestockService) selectGroups(names []string) ([]domain.WarehouseGroup, error) {
	if len(names) == 0 {
		return s.engine.Registry.Groups, nil
	}
	out := make([]domain.WarehouseGroup, 0, len(names))
	for _, n := range names {
		g, ok := s.engine.Registry.Group(n)
		if !ok {
			return nil, fmt.Errorf("unknown branch group %q", n)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *RestockService) calculatorOptions() restock.Options {
	profile := make(map[domain.Priority]float64, len(s.engine.TargetProfile))
	for k, v := range s.engine.TargetProfile {
		if p, ok := domain.ParsePriority(k); ok {
			profile[p] = v
		}
	}
	return restock.Options{
		CentralStorage: s.engine.Registry.CentralStorage,
		Categories:     s.engine.Categories,
		Priority: restock.PriorityStrategy{
			MarginThreshold: s.engine.Priority.MarginThreshold,
			DOHLimit:        s.engine.Priority.DOHLimit,
			DSILimit:        s.engine.Priority.DSILimit,
			Tiers:           s.engine.Priority.Tiers,
		},
		DefaultBoxQuantity: s.engine.DefaultBoxQuantity,
		Capacity: restock.CapacityOptions{
			Basis:         domain.CapacityBasis(s.engine.CapacityBasis),
			FloorRatio:    s.engine.CapacityFloorRatio,
			TargetProfile: profile,
		},
	}
}

func optionalPath(dir, name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(dir, name)
}
