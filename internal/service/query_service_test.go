package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/pipeline"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/andresuchdata/restockplan/internal/repository/filestore"
)

type fakeRuns struct {
	runs []*pipeline.Run
	jobs map[int64][]*pipeline.Job
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]*pipeline.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRuns) GetRun(_ context.Context, id int64) (*pipeline.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRuns) GetJobsByRunID(_ context.Context, id int64) ([]*pipeline.Job, error) {
	return f.jobs[id], nil
}

func seededStore(t *testing.T) *filestore.Store {
	t.Helper()
	ctx := context.Background()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	evals := []domain.ProductEvaluation{
		{Code: "X1", Type: "toys", ABC: domain.ABCA, XYZ: domain.XYZX},
		{Code: "X2", Type: "toys", ABC: domain.ABCC, XYZ: domain.XYZZ},
	}
	if err := store.ReplaceEvaluations(ctx, "r", evals); err != nil {
		t.Fatal(err)
	}
	res := &domain.BranchResult{
		Group: domain.WarehouseGroup{Name: "north"},
		Lines: []domain.BranchRequestLine{
			{Group: "north", Code: "X1", Priority: domain.PriorityA, BoxQuantity: 1},
			{Group: "north", Code: "X2", Priority: domain.PriorityD, BoxQuantity: 1},
		},
		Capacity: domain.CapacityReport{Group: "north", Basis: domain.CapacityByCogs},
	}
	if err := store.SaveBranchResult(ctx, "r", res); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestQueryEvaluations(t *testing.T) {
	ctx := context.Background()
	q := NewQueryService(seededStore(t), nil, nil)

	evals, err := q.ListEvaluations(ctx, domain.EvaluationFilter{XYZ: "z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 1 || evals[0].Code != "X2" {
		t.Fatalf("evals = %+v", evals)
	}

	none, err := q.ListEvaluations(ctx, domain.EvaluationFilter{Type: "garden"})
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("empty result should be a non-nil empty slice, got %#v", none)
	}
}

func TestQueryRequestsByPriority(t *testing.T) {
	ctx := context.Background()
	q := NewQueryService(seededStore(t), nil, nil)

	lines, err := q.GetRequests(ctx, "north", "d")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0].Code != "X2" {
		t.Fatalf("lines = %+v", lines)
	}

	if _, err := q.GetRequests(ctx, "north", "E"); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("err = %v, want ErrInvalidPriority", err)
	}
	if _, err := q.GetRequests(ctx, "ghost", ""); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryBranches(t *testing.T) {
	reports, err := NewQueryService(seededStore(t), nil, nil).ListBranches(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Group != "north" {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestQueryRuns(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	runs := &fakeRuns{
		runs: []*pipeline.Run{
			{ID: 2, RunKey: "b", Status: pipeline.StatusPartial, TotalJobs: 2, CompletedJobs: 1, FailedJobs: 1, StartedAt: now},
			{ID: 1, RunKey: "a", Status: pipeline.StatusCompleted, TotalJobs: 2, CompletedJobs: 2, StartedAt: now.Add(-time.Hour)},
		},
		jobs: map[int64][]*pipeline.Job{
			2: {{Name: "north", Status: pipeline.JobCompleted}, {Name: "south", Status: pipeline.JobFailed, RetryCount: 2, ErrorMessage: "boom"}},
		},
	}
	q := NewQueryService(seededStore(t), nil, runs)

	list, err := q.ListRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].RunKey != "b" || list[0].Status != "partial" {
		t.Fatalf("runs = %+v", list)
	}

	run, err := q.GetRun(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Jobs) != 2 || run.Jobs[1].RetryCount != 2 {
		t.Errorf("jobs = %+v", run.Jobs)
	}

	if _, err := q.GetRun(ctx, 9); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryRunsWithoutHistory(t *testing.T) {
	list, err := NewQueryService(seededStore(t), nil, nil).ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("runs = %+v", list)
	}
}
