package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTracker struct {
	mu      sync.Mutex
	nextID  int64
	runs    map[int64]Run
	jobs    map[int64]Job
	updates int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{runs: map[int64]Run{}, jobs: map[int64]Job{}}
}

func (f *fakeTracker) CreateRun(_ context.Context, run *Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	run.ID = f.nextID
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeTracker) UpdateRun(_ context.Context, run *Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeTracker) CreateJob(_ context.Context, job *Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	job.ID = f.nextID
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeTracker) UpdateJob(_ context.Context, job *Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = *job
	f.updates++
	return nil
}

func testRunner(cfg Config, tracker Tracker) *Runner {
	r := NewRunner(cfg, tracker)
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func ok(context.Context) error { return nil }

func TestRunnerIsolatesFailingTask(t *testing.T) {
	tracker := newFakeTracker()
	r := testRunner(Config{Name: "restock", WorkerCount: 2, RetryAttempts: 1}, tracker)
	boom := errors.New("boom")

	res, err := r.Execute(context.Background(), []Task{
		{Name: "a", Run: ok},
		{Name: "b", Run: func(context.Context) error { return boom }},
		{Name: "c", Run: ok},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Run.Status != StatusPartial || res.Run.CompletedJobs != 2 || res.Run.FailedJobs != 1 {
		t.Fatalf("run = %+v, want partial with 2 completed and 1 failed", res.Run)
	}

	failed := res.Failed()
	if len(failed) != 1 || failed[0].Name != "b" || !errors.Is(failed[0].Err, boom) {
		t.Fatalf("failed = %+v", failed)
	}
	if failed[0].RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", failed[0].RetryCount)
	}

	stored := tracker.runs[res.Run.ID]
	if stored.Status != StatusPartial || stored.CompletedAt == nil {
		t.Fatalf("tracked run = %+v", stored)
	}
	if tracker.jobs[failed[0].ID].Status != JobFailed {
		t.Fatalf("tracked job = %+v", tracker.jobs[failed[0].ID])
	}
}

func TestRunnerRetriesUntilSuccess(t *testing.T) {
	var calls int32
	flaky := func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	res, err := testRunner(Config{Name: "restock", RetryAttempts: 2}, nil).Execute(context.Background(), []Task{{Name: "flaky", Run: flaky}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	job := res.Jobs[0]
	if job.Status != JobCompleted || job.RetryCount != 2 || job.ErrorMessage != "" {
		t.Fatalf("job = %+v, want completed after 2 retries", job)
	}
	if res.Run.Status != StatusCompleted {
		t.Fatalf("run status = %s", res.Run.Status)
	}
}

func TestRunnerAllFailed(t *testing.T) {
	fail := func(context.Context) error { return errors.New("nope") }

	res, err := testRunner(Config{Name: "restock"}, nil).Execute(context.Background(), []Task{{Name: "a", Run: fail}, {Name: "b", Run: fail}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Run.Status != StatusFailed || res.Run.ErrorMessage == "" {
		t.Fatalf("run = %+v, want failed", res.Run)
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	var active, peak int32
	task := func(context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	}

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{Name: "t", Run: task}
	}
	if _, err := testRunner(Config{Name: "restock", WorkerCount: 3}, nil).Execute(context.Background(), tasks); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if peak > 3 {
		t.Fatalf("peak concurrency = %d, want at most 3", peak)
	}
}

func TestRunnerSkipsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := testRunner(Config{Name: "restock"}, nil).Execute(ctx, []Task{{Name: "a", Run: ok}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Jobs[0].Status != JobSkipped {
		t.Fatalf("job status = %s, want skipped", res.Jobs[0].Status)
	}
}

func TestExecuteRunKeepsRunKey(t *testing.T) {
	tracker := newFakeTracker()
	res, err := testRunner(Config{Name: "restock"}, tracker).ExecuteRun(context.Background(), "run-42", []Task{{Name: "a", Run: ok}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Run.RunKey != "run-42" {
		t.Errorf("run key = %q", res.Run.RunKey)
	}
	if got := tracker.runs[res.Run.ID].RunKey; got != "run-42" {
		t.Errorf("tracked run key = %q", got)
	}
}
