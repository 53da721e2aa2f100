package repository

import (
	"context"
	"fmt"

	"github.com/andresuchdata/restockplan/internal/domain"
)

// Multi writes to every store and reads from the first one.
type Multi struct {
	primary Store
	mirrors []Store
}

var _ Store = (*Multi)(nil)

func NewMulti(primary Store, mirrors ...Store) *Multi {
	return &Multi{primary: primary, mirrors: mirrors}
}

func (m *Multi) ReplaceEvaluations(ctx context.Context, runKey string, evals []domain.ProductEvaluation) error {
	return m.each(func(s Store) error { return s.ReplaceEvaluations(ctx, runKey, evals) })
}

func (m *Multi) SaveBranchResult(ctx context.Context, runKey string, res *domain.BranchResult) error {
	return m.each(func(s Store) error { return s.SaveBranchResult(ctx, runKey, res) })
}

func (m *Multi) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, error) {
	return m.primary.ListEvaluations(ctx, filter)
}

func (m *Multi) GetEvaluation(ctx context.Context, code string) (*domain.ProductEvaluation, error) {
	return m.primary.GetEvaluation(ctx, code)
}

func (m *Multi) ListCapacity(ctx context.Context) ([]domain.CapacityReport, error) {
	return m.primary.ListCapacity(ctx)
}

func (m *Multi) GetCapacity(ctx context.Context, group string) (*domain.CapacityReport, error) {
	return m.primary.GetCapacity(ctx, group)
}

func (m *Multi) GetRequests(ctx context.Context, group string, priority domain.Priority) ([]domain.BranchRequestLine, error) {
	return m.primary.GetRequests(ctx, group, priority)
}

// each stops at the first failing store; the primary is always written first.
func (m *Multi) each(fn func(Store) error) error {
	if err := fn(m.primary); err != nil {
		return err
	}
	for i, s := range m.mirrors {
		if err := fn(s); err != nil {
			return fmt.Errorf("mirror %d: %w", i, err)
		}
	}
	return nil
}
