package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conduit/internal/agent"
	"conduit/internal/config"
	"conduit/internal/domains/marketing"
	conduiterrors "conduit/internal/errors"
	"conduit/internal/guardrail"
	"conduit/internal/jsonx"
	"conduit/internal/logging"
	"conduit/internal/memory"
	"conduit/internal/workflow"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *Server
	store  memory.Store
	hub    *EventHub
}

func newFixture(t *testing.T, policy guardrail.Config) fixture {
	t.Helper()
	store, err := memory.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)
	hub := NewEventHub(logging.Nop())

	agents, err := marketing.NewAgents(marketing.Options{AgentOptions: []agent.Option{agent.WithLogger(logging.Nop())}})
	require.NoError(t, err)
	runner, err := marketing.NewRunner(marketing.Deps{
		Agents:    agents,
		Guardrail: policy,
		Store:     store,
		Logger:    logging.Nop(),
		Observers: []workflow.Hook{hub},
	})
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("conduit_workflow_runs_total 1\n"))
	})
	srv, err := New(Deps{Runner: runner, Store: store, Metrics: metrics, Events: hub, Logger: logging.Nop()},
		config.ServerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	return fixture{server: srv, store: store, hub: hub}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp APIResponse
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

const sampleBody = `{"payload":{"product_description":"AI CRM tool","target_audience":"SaaS founders","goal":"Increase signups"},"metadata":{"trace":"api"}}`

func TestHealth(t *testing.T) {
	f := newFixture(t, guardrail.Config{})
	rec, resp := do(t, f.server.Handler(), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Equal(t, "ok", resp.Data.(map[string]any)["status"])
}

func TestCreateRunAndHistory(t *testing.T) {
	f := newFixture(t, guardrail.Config{})
	h := f.server.Handler()

	rec, _ := do(t, h, http.MethodGet, "/api/runs/latest", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := do(t, h, http.MethodPost, "/api/runs", sampleBody)
	require.Equal(t, http.StatusOK, rec.Code)
	result := resp.Data.(map[string]any)
	require.Equal(t, "success", result["status"])
	require.Len(t, result["rec_history"], 4)

	rec, resp = do(t, h, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data, 1)

	rec, resp = do(t, h, http.MethodGet, "/api/runs/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data.(map[string]any)["records"], 4)

	rec, _ = do(t, h, http.MethodDelete, "/api/runs", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	runs, err := f.store.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestCreateRunFailedStepIsStructured(t *testing.T) {
	f := newFixture(t, guardrail.Config{})
	rec, resp := do(t, f.server.Handler(), http.MethodPost, "/api/runs", `{"payload":{"product_description":"x","target_audience":"y"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	result := resp.Data.(map[string]any)
	require.Equal(t, "error", result["status"])
	history := result["rec_history"].([]any)
	require.Len(t, history, 1)
	require.Contains(t, history[0].(map[string]any)["error"], "Missing required input field: 'goal'")
}

func TestCreateRunGuardrailViolation(t *testing.T) {
	f := newFixture(t, guardrail.Config{MaxSteps: 1})
	rec, resp := do(t, f.server.Handler(), http.MethodPost, "/api/runs", sampleBody)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.False(t, resp.Success)
	require.Equal(t, "Workflow exceeded max steps (1)", resp.Error)
}

func TestCreateRunRejectsBadBodies(t *testing.T) {
	f := newFixture(t, guardrail.Config{})
	h := f.server.Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/runs", `{"payload": [1, 2]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/runs", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewBufferString("payload=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnsupportedMediaType, recorder.Code)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, guardrail.Config{})
	rec, _ := do(t, f.server.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "conduit_workflow_runs_total")
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusUnprocessableEntity, statusFor(conduiterrors.NewGuardrailViolation("max_steps", "too many")))
	require.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("transformer broke")))
}

func TestEventsStreamRunLifecycle(t *testing.T) {
	f := newFixture(t, guardrail.Config{})
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", strings.NewReader(sampleBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var types []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		require.NotEmpty(t, ev.RunID)
		types = append(types, ev.Type)
		if ev.Type == EventWorkflowFinished {
			require.Equal(t, "success", ev.Status)
			break
		}
	}
	require.Equal(t, EventWorkflowStarted, types[0])
	require.Len(t, types, 10)
}

func TestEventHubDropsForSlowSubscriber(t *testing.T) {
	logs := logging.NewRecorder()
	hub := NewEventHub(logs)
	_, cancel := hub.Subscribe()
	defer cancel()

	noop := agent.MustNew(agent.Info{Name: "noop"}, agent.ExecutorFunc(func(context.Context, agent.Input, agent.ContextView) (any, error) {
		return agent.NewOutput(nil), nil
	}))
	for i := 0; i < subscriberBuffer+1; i++ {
		require.NoError(t, hub.BeforeAgent(context.Background(), noop, agent.Input{}))
	}
	require.Len(t, logs.Filter("warn", "is behind"), 1)

	hub.Close()
	require.Zero(t, hub.Subscribers())
	cancel()
}
