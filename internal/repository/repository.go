package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("not found")

// EvaluationRepository stores the product evaluation table. A run replaces
// the whole table; readers never see a mix of two runs.
type EvaluationRepository interface {
	ReplaceEvaluations(ctx context.Context, runKey string, evals []domain.ProductEvaluation) error
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, error)
	GetEvaluation(ctx context.Context, code string) (*domain.ProductEvaluation, error)
}

// BranchRepository stores per-group recommendation results. Saving a group
// replaces that group's previous lines and report.
type BranchRepository interface {
	SaveBranchResult(ctx context.Context, runKey string, res *domain.BranchResult) error
	ListCapacity(ctx context.Context) ([]domain.CapacityReport, error)
	GetCapacity(ctx context.Context, group string) (*domain.CapacityReport, error)
	// GetRequests lists a group's lines; an empty priority matches every tier.
	GetRequests(ctx context.Context, group string, priority domain.Priority) ([]domain.BranchRequestLine, error)
}

// Store bundles both repositories behind one backend.
type Store interface {
	EvaluationRepository
	BranchRepository
}
