package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/events"
	"github.com/agentworkbench/workbench/internal/logging"
	"github.com/agentworkbench/workbench/internal/testutil"
)

type stubExecutor struct {
	mu    sync.Mutex
	order []core.RunID
	fn    func(run *core.Run) (map[string]any, error)
}

func (e *stubExecutor) Execute(_ context.Context, run *core.Run, _ *core.Project, _ core.RunLogger) (map[string]any, error) {
	e.mu.Lock()
	e.order = append(e.order, run.ID)
	e.mu.Unlock()
	if e.fn != nil {
		return e.fn(run)
	}
	return map[string]any{}, nil
}

func (e *stubExecutor) executed() []core.RunID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.RunID, len(e.order))
	copy(out, e.order)
	return out
}

func seedRun(t *testing.T, store *testutil.MemStore, id core.RunID, startedAt time.Time) {
	t.Helper()
	if _, err := store.GetProject(context.Background(), "proj-1"); err != nil {
		err = store.CreateProject(context.Background(), &core.Project{ID: "proj-1", Name: "demo"})
		testutil.AssertNoError(t, err)
	}
	err := store.CreateRun(context.Background(), &core.Run{
		ID:        id,
		ProjectID: "proj-1",
		Status:    core.RunStatusQueued,
		StartedAt: startedAt,
		Meta:      map[string]any{},
	})
	testutil.AssertNoError(t, err)
}

func newScheduler(store core.Store, ex Executor) (*Scheduler, *events.Bus) {
	bus := events.New(64)
	cfg := Config{PollInterval: time.Millisecond, ShutdownPollInterval: time.Millisecond}
	return New(store, ex, bus, logging.NewNop(), cfg), bus
}

func runScheduler(t *testing.T, s *Scheduler) (cancel func(), done chan struct{}) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			t.Errorf("scheduler returned error: %v", err)
		}
	}()
	return stop, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func runStatus(store *testutil.MemStore, id core.RunID) core.RunStatus {
	r, err := store.GetRun(context.Background(), id)
	if err != nil {
		return ""
	}
	return r.Status
}

func TestSchedulerProcessesRunsInQueuedOrder(t *testing.T) {
	store := testutil.NewMemStore()
	base := time.Now()
	seedRun(t, store, "run-b", base.Add(time.Minute))
	seedRun(t, store, "run-a", base)

	ex := &stubExecutor{}
	s, _ := newScheduler(store, ex)
	cancel, done := runScheduler(t, s)

	waitFor(t, func() bool {
		return runStatus(store, "run-a") == core.RunStatusSuccess &&
			runStatus(store, "run-b") == core.RunStatusSuccess
	})
	cancel()
	<-done

	order := ex.executed()
	testutil.AssertLen(t, order, 2)
	testutil.AssertEqual(t, order[0], core.RunID("run-a"))
	testutil.AssertEqual(t, order[1], core.RunID("run-b"))
}

func TestSchedulerMarksRunErrorAndMergesMeta(t *testing.T) {
	store := testutil.NewMemStore()
	seedRun(t, store, "run-1", time.Now())
	run, _ := store.GetRun(context.Background(), "run-1")
	run.Meta["origin"] = "api"

	ex := &stubExecutor{fn: func(*core.Run) (map[string]any, error) {
		return nil, errors.New("skeleton insert failed")
	}}
	s, _ := newScheduler(store, ex)
	cancel, done := runScheduler(t, s)

	waitFor(t, func() bool { return runStatus(store, "run-1") == core.RunStatusError })
	cancel()
	<-done

	got, err := store.GetRun(context.Background(), "run-1")
	testutil.AssertNoError(t, err)
	testutil.AssertContains(t, got.Meta["error"].(string), "skeleton insert failed")
	testutil.AssertEqual(t, got.Meta["origin"].(string), "api")
	if got.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
}

func TestSchedulerKeepsPollingAfterReadFailure(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailNextQueuedRun = testutil.ErrTest
	seedRun(t, store, "run-1", time.Now())

	ex := &stubExecutor{}
	s, _ := newScheduler(store, ex)
	cancel, done := runScheduler(t, s)

	time.Sleep(20 * time.Millisecond)
	testutil.AssertLen(t, ex.executed(), 0)

	store.SetFailNextQueuedRun(nil)
	waitFor(t, func() bool { return runStatus(store, "run-1") == core.RunStatusSuccess })
	cancel()
	<-done
}

func TestSchedulerClaimFailureFailsRun(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailClaimRun = testutil.ErrTest
	seedRun(t, store, "run-1", time.Now())

	ex := &stubExecutor{}
	s, _ := newScheduler(store, ex)
	cancel, done := runScheduler(t, s)

	waitFor(t, func() bool { return runStatus(store, "run-1") == core.RunStatusError })
	cancel()
	<-done

	testutil.AssertLen(t, ex.executed(), 0)
	got, _ := store.GetRun(context.Background(), "run-1")
	testutil.AssertContains(t, got.Meta["error"].(string), "failed to update run status")
}

func TestSchedulerTerminalWriteFailureIsLoggedOnly(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailFinishRun = testutil.ErrTest
	seedRun(t, store, "run-1", time.Now())

	ex := &stubExecutor{}
	s, _ := newScheduler(store, ex)
	cancel, done := runScheduler(t, s)

	waitFor(t, func() bool { return len(ex.executed()) == 1 })
	// The run was claimed but its terminal write failed; it is not
	// re-queued, so the executor never sees it again.
	waitFor(t, func() bool { return runStatus(store, "run-1") == core.RunStatusRunning })
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	testutil.AssertLen(t, ex.executed(), 1)
}

func TestSchedulerGracefulShutdownWaitsForInFlightRun(t *testing.T) {
	store := testutil.NewMemStore()
	seedRun(t, store, "run-1", time.Now())

	started := make(chan struct{})
	release := make(chan struct{})
	ex := &stubExecutor{fn: func(*core.Run) (map[string]any, error) {
		close(started)
		<-release
		return map[string]any{}, nil
	}}
	s, _ := newScheduler(store, ex)
	cancel, done := runScheduler(t, s)

	<-started
	testutil.AssertEqual(t, s.CurrentRun(), core.RunID("run-1"))
	cancel()

	select {
	case <-done:
		t.Fatal("scheduler stopped while a run was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after the run finished")
	}
	testutil.AssertEqual(t, runStatus(store, "run-1"), core.RunStatusSuccess)
	testutil.AssertEqual(t, s.CurrentRun(), core.RunID(""))
}

func TestSchedulerPublishesRunEvents(t *testing.T) {
	store := testutil.NewMemStore()
	seedRun(t, store, "run-ok", time.Now())
	seedRun(t, store, "run-bad", time.Now().Add(time.Minute))

	ex := &stubExecutor{fn: func(run *core.Run) (map[string]any, error) {
		if run.ID == "run-bad" {
			return nil, errors.New("boom")
		}
		return map[string]any{}, nil
	}}
	s, bus := newScheduler(store, ex)
	ch := bus.Subscribe(events.TypeRunClaimed, events.TypeRunSucceeded, events.TypeRunFailed)

	cancel, done := runScheduler(t, s)
	defer func() { cancel(); <-done }()

	var types []string
	for i := 0; i < 4; i++ {
		select {
		case ev := <-ch:
			types = append(types, ev.EventType())
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout after %d events", i)
		}
	}
	testutil.AssertEqual(t, types[0], events.TypeRunClaimed)
	testutil.AssertEqual(t, types[1], events.TypeRunSucceeded)
	testutil.AssertEqual(t, types[2], events.TypeRunClaimed)
	testutil.AssertEqual(t, types[3], events.TypeRunFailed)
}
