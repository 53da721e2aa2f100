package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/andresuchdata/restockplan/internal/domain"
)

type recordingStore struct {
	Store
	evals  []domain.ProductEvaluation
	groups []string
	err    error
}

func (r *recordingStore) ReplaceEvaluations(_ context.Context, _ string, evals []domain.ProductEvaluation) error {
	if r.err != nil {
		return r.err
	}
	r.evals = evals
	return nil
}

func (r *recordingStore) SaveBranchResult(_ context.Context, _ string, res *domain.BranchResult) error {
	if r.err != nil {
		return r.err
	}
	r.groups = append(r.groups, res.Group.Name)
	return nil
}

func (r *recordingStore) ListEvaluations(context.Context, domain.EvaluationFilter) ([]domain.ProductEvaluation, error) {
	return r.evals, nil
}

func TestMultiWritesEveryStore(t *testing.T) {
	ctx := context.Background()
	primary, mirror := &recordingStore{}, &recordingStore{}
	m := NewMulti(primary, mirror)

	evals := []domain.ProductEvaluation{{Code: "X1"}}
	if err := m.ReplaceEvaluations(ctx, "r", evals); err != nil {
		t.Fatal(err)
	}
	if err := m.SaveBranchResult(ctx, "r", &domain.BranchResult{Group: domain.WarehouseGroup{Name: "g"}}); err != nil {
		t.Fatal(err)
	}
	if len(mirror.evals) != 1 || len(mirror.groups) != 1 {
		t.Errorf("mirror not written: %+v", mirror)
	}

	got, err := m.ListEvaluations(ctx, domain.EvaluationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("reads come from primary, got %v", got)
	}
}

func TestMultiStopsOnPrimaryFailure(t *testing.T) {
	boom := errors.New("disk full")
	primary, mirror := &recordingStore{err: boom}, &recordingStore{}
	err := NewMulti(primary, mirror).ReplaceEvaluations(context.Background(), "r", []domain.ProductEvaluation{{Code: "X1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if mirror.evals != nil {
		t.Error("mirror written after primary failure")
	}
}

func TestMultiWrapsMirrorFailure(t *testing.T) {
	boom := errors.New("db down")
	err := NewMulti(&recordingStore{}, &recordingStore{err: boom}).ReplaceEvaluations(context.Background(), "r", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
