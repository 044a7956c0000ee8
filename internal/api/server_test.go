package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/events"
	"github.com/agentworkbench/workbench/internal/logging"
	"github.com/agentworkbench/workbench/internal/testutil"
)

func newTestServer(store core.Store) *Server {
	return NewServer(store, events.New(16), WithLogger(logging.NewNop()))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func seedProject(t *testing.T, store *testutil.MemStore) *core.Project {
	t.Helper()
	p := &core.Project{ID: "proj-1", Name: "demo", RepoURL: "https://github.com/acme/demo", CreatedAt: time.Now()}
	testutil.AssertNoError(t, store.CreateProject(t.Context(), p))
	return p
}

func TestHealth(t *testing.T) {
	s := newTestServer(testutil.NewMemStore())
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	body := decode[map[string]string](t, rec)
	testutil.AssertEqual(t, body["status"], "healthy")
}

func TestCreateProjectValidation(t *testing.T) {
	s := newTestServer(testutil.NewMemStore())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/projects", map[string]string{"name": "   "})
	testutil.AssertEqual(t, rec.Code, http.StatusBadRequest)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/v1/projects",
		map[string]string{"name": "demo", "repoUrl": "https://github.com/acme/demo"})
	testutil.AssertEqual(t, rec.Code, http.StatusCreated)
	created := decode[ProjectResponse](t, rec)
	testutil.AssertEqual(t, created.Name, "demo")
	testutil.AssertTrue(t, created.ID != "", "project id assigned")
}

func TestCreateRunValidatesProject(t *testing.T) {
	store := testutil.NewMemStore()
	s := newTestServer(store)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/runs",
		map[string]string{"projectId": "missing"})
	testutil.AssertEqual(t, rec.Code, http.StatusNotFound)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/v1/runs", map[string]string{})
	testutil.AssertEqual(t, rec.Code, http.StatusBadRequest)

	seedProject(t, store)
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/v1/runs",
		map[string]string{"projectId": "proj-1", "label": "first"})
	testutil.AssertEqual(t, rec.Code, http.StatusCreated)
	body := decode[map[string]string](t, rec)

	run, err := store.GetRun(t.Context(), core.RunID(body["runId"]))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, run.Status, core.RunStatusQueued)
	testutil.AssertEqual(t, run.Label, "first")
	testutil.AssertMapLen(t, run.Meta, 0)
}

func TestCreateRunDefaultLabel(t *testing.T) {
	store := testutil.NewMemStore()
	seedProject(t, store)
	s := newTestServer(store)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/runs",
		map[string]string{"projectId": "proj-1"})
	testutil.AssertEqual(t, rec.Code, http.StatusCreated)
	body := decode[map[string]string](t, rec)

	run, err := store.GetRun(t.Context(), core.RunID(body["runId"]))
	testutil.AssertNoError(t, err)
	testutil.AssertContains(t, run.Label, "Run ")
}

func TestRunSubResources(t *testing.T) {
	store := testutil.NewMemStore()
	seedProject(t, store)
	testutil.AssertNoError(t, store.CreateRun(t.Context(), &core.Run{
		ID: "run-1", ProjectID: "proj-1", Status: core.RunStatusRunning,
		StartedAt: time.Now(), Meta: map[string]any{},
	}))
	testutil.AssertNoError(t, store.InsertNodes(t.Context(), []*core.GraphNode{{
		ID: "run-1-repo-outline", RunID: "run-1", Type: "analysis",
		Label: "Repository Analysis",
		State: core.NodeState{Status: core.NodeStatusCompleted, Result: map[string]any{"ok": true}},
	}}))
	testutil.AssertNoError(t, store.InsertEdges(t.Context(), []*core.GraphEdge{{
		ID: "run-1-repo-to-vercel", RunID: "run-1",
		FromID: "run-1-repo-outline", ToID: "run-1-vercel-deploys",
		Label: "analyze", State: map[string]any{},
	}}))
	testutil.AssertNoError(t, store.AppendLog(t.Context(), &core.LogEntry{
		RunID: "run-1", Level: core.LogLevelInfo, Source: "worker", Message: "processing run",
	}))
	testutil.AssertNoError(t, store.AppendCost(t.Context(), &core.CostRecord{
		RunID: "run-1", Provider: "openai-gpt-3.5-turbo", InputTokens: 1000, OutputTokens: 2000, USD: 0.005,
	}))

	s := newTestServer(store)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs/run-1/nodes", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	nodes := decode[[]NodeResponse](t, rec)
	testutil.AssertLen(t, nodes, 1)
	testutil.AssertEqual(t, nodes[0].State["status"].(string), "completed")

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs/run-1/edges", nil)
	edges := decode[[]EdgeResponse](t, rec)
	testutil.AssertLen(t, edges, 1)
	testutil.AssertEqual(t, edges[0].Label, "analyze")

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs/run-1/logs", nil)
	logs := decode[[]LogResponse](t, rec)
	testutil.AssertLen(t, logs, 1)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs/run-1/costs", nil)
	costs := decode[[]CostResponse](t, rec)
	testutil.AssertLen(t, costs, 1)
	testutil.AssertEqual(t, costs[0].USD, 0.005)

	// Unknown run id yields 404, not an empty list.
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs/nope/nodes", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusNotFound)
}

func TestMessageIntakeAutoDetectsRunningRun(t *testing.T) {
	store := testutil.NewMemStore()
	seedProject(t, store)
	testutil.AssertNoError(t, store.CreateRun(t.Context(), &core.Run{
		ID: "run-old", ProjectID: "proj-1", Status: core.RunStatusRunning,
		StartedAt: time.Now().Add(-time.Hour), Meta: map[string]any{},
	}))
	testutil.AssertNoError(t, store.CreateRun(t.Context(), &core.Run{
		ID: "run-new", ProjectID: "proj-1", Status: core.RunStatusRunning,
		StartedAt: time.Now(), Meta: map[string]any{},
	}))

	s := newTestServer(store)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/messages", map[string]any{
		"message":     "make the button bigger",
		"pageUrl":     "https://demo.vercel.app",
		"htmlContent": strings.Repeat("x", 2000),
	})
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	body := decode[map[string]any](t, rec)
	testutil.AssertEqual(t, body["runId"].(string), "run-new")

	logs, err := store.ListLogs(t.Context(), "run-new")
	testutil.AssertNoError(t, err)
	testutil.AssertLen(t, logs, 1)
	testutil.AssertEqual(t, logs[0].Source, "intertools")
	testutil.AssertEqual(t, logs[0].Message, "make the button bigger")
	html := logs[0].Data["htmlContent"].(string)
	testutil.AssertEqual(t, len(html), 1003)
	testutil.AssertTrue(t, strings.HasSuffix(html, "..."), "html truncated")
}

func TestMessageIntakeExplicitRunAndNoActiveRun(t *testing.T) {
	store := testutil.NewMemStore()
	seedProject(t, store)
	s := newTestServer(store)

	// No running run and no runId: 404.
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/messages",
		map[string]string{"message": "hello"})
	testutil.AssertEqual(t, rec.Code, http.StatusNotFound)

	// Empty message: 400.
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/v1/messages", map[string]string{})
	testutil.AssertEqual(t, rec.Code, http.StatusBadRequest)

	// Explicit runId is used as-is.
	testutil.AssertNoError(t, store.CreateRun(t.Context(), &core.Run{
		ID: "run-1", ProjectID: "proj-1", Status: core.RunStatusQueued,
		StartedAt: time.Now(), Meta: map[string]any{},
	}))
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/v1/messages?runId=run-1",
		map[string]string{"message": "hello"})
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	logs, _ := store.ListLogs(t.Context(), "run-1")
	testutil.AssertLen(t, logs, 1)
}

func TestListMessages(t *testing.T) {
	store := testutil.NewMemStore()
	seedProject(t, store)
	testutil.AssertNoError(t, store.CreateRun(t.Context(), &core.Run{
		ID: "run-1", ProjectID: "proj-1", Status: core.RunStatusRunning,
		StartedAt: time.Now(), Meta: map[string]any{},
	}))
	testutil.AssertNoError(t, store.AppendLog(t.Context(), &core.LogEntry{
		RunID: "run-1", Level: core.LogLevelInfo, Source: "worker", Message: "not a message",
	}))
	testutil.AssertNoError(t, store.AppendLog(t.Context(), &core.LogEntry{
		RunID: "run-1", Level: core.LogLevelInfo, Source: "intertools", Message: "first",
	}))
	testutil.AssertNoError(t, store.AppendLog(t.Context(), &core.LogEntry{
		RunID: "run-1", Level: core.LogLevelInfo, Source: "intertools", Message: "second",
	}))

	s := newTestServer(store)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/messages?runId=run-1", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusOK)

	var body struct {
		Messages []LogResponse `json:"messages"`
		Count    int           `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	testutil.AssertEqual(t, body.Count, 2)
	testutil.AssertEqual(t, body.Messages[0].Message, "second")

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/messages", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusBadRequest)
}

func TestListRuns(t *testing.T) {
	store := testutil.NewMemStore()
	seedProject(t, store)
	base := time.Now()
	for i, id := range []core.RunID{"run-1", "run-2", "run-3"} {
		testutil.AssertNoError(t, store.CreateRun(t.Context(), &core.Run{
			ID: id, ProjectID: "proj-1", Status: core.RunStatusQueued,
			StartedAt: base.Add(time.Duration(i) * time.Minute), Meta: map[string]any{},
		}))
	}

	s := newTestServer(store)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs?limit=2", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	runs := decode[[]RunResponse](t, rec)
	testutil.AssertLen(t, runs, 2)
	testutil.AssertEqual(t, runs[0].ID, "run-3")

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/v1/runs?limit=bogus", nil)
	testutil.AssertEqual(t, rec.Code, http.StatusBadRequest)
}
