package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/analytics"
	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/reason"
	"github.com/orneryd/huginn/pkg/seed"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, graph.Store) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	store := graph.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	log := silentLogger()
	svc := reason.NewService(store, catalog.Builtin(), log)
	analyzer := analytics.NewAnalyzer(store, log)
	return New(cfg, store, svc, analyzer, log), store
}

func newSeededServer(t *testing.T) (*Server, graph.Store) {
	t.Helper()
	srv, store := newTestServer(t, nil)
	_, err := seed.Plant(context.Background(), store, silentLogger())
	require.NoError(t, err)
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	}
	return w, body
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Greater(t, body["nodes"], float64(0))
	assert.Greater(t, body["edges"], float64(0))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListDefinitions(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w, body := doJSON(t, srv, http.MethodGet, "/api/rules")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["rules"], 5)

	w, body = doJSON(t, srv, http.MethodGet, "/api/axioms")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["axioms"], 14)

	w, body = doJSON(t, srv, http.MethodGet, "/api/constraints")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["constraints"], 13)
}

func TestCheckThenApplyRule(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/rules/maintenance-needed/check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["matches"])

	w, body = doJSON(t, srv, http.MethodPost, "/api/rules/maintenance-needed/apply")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(2), body["count"])

	// Idempotent on re-apply.
	w, body = doJSON(t, srv, http.MethodPost, "/api/rules/maintenance-needed/apply")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestApplyRuleWithTrace(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/rules/maintenance-needed/trace")
	require.Equal(t, http.StatusOK, w.Code)

	trace, ok := body["trace"].(map[string]any)
	require.True(t, ok)
	traceID, _ := trace["traceId"].(string)
	require.NotEmpty(t, traceID)
	assert.Equal(t, string(reason.ResultSuccess), trace["result"])

	w, got := doJSON(t, srv, http.MethodGet, "/api/traces/"+traceID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, traceID, got["traceId"])
}

func TestGetTrace_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w, _ := doJSON(t, srv, http.MethodGet, "/api/traces/TRACE-nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownRule_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w, _ := doJSON(t, srv, http.MethodGet, "/api/rules/no-such-rule/check")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, srv, http.MethodPost, "/api/rules/no-such-rule/apply")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunAllRules(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/rules/run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, body["totalInferred"], float64(0))
	assert.Equal(t, float64(0), body["totalFailures"])
}

func TestCheckAxiomsAndConstraints(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/axioms/check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(14), body["totalDefinitions"])
	assert.Equal(t, float64(14), body["passed"])

	w, body = doJSON(t, srv, http.MethodGet, "/api/constraints/check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(13), body["passed"])

	w, body = doJSON(t, srv, http.MethodGet, "/api/axioms/AX001/check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["passed"])

	w, _ = doJSON(t, srv, http.MethodGet, "/api/constraints/CONS999/check")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateAndRun(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/validate-and-run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["violationsFound"])
	assert.NotNil(t, body["axioms"])
	assert.NotNil(t, body["constraints"])
	assert.NotNil(t, body["inference"])

	w, body = doJSON(t, srv, http.MethodPost, "/api/validate-and-run?constraints=false")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["constraints"])
}

func TestInferredLifecycle(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/rules/run")
	require.Equal(t, http.StatusOK, w.Code)
	inferred := body["totalInferred"].(float64)
	require.Greater(t, inferred, float64(0))

	w, body = doJSON(t, srv, http.MethodGet, "/api/inferred")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, inferred, body["count"])

	w, body = doJSON(t, srv, http.MethodGet, "/api/inferred?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])

	w, _ = doJSON(t, srv, http.MethodGet, "/api/inferred?limit=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = doJSON(t, srv, http.MethodDelete, "/api/inferred")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, inferred, body["removed"])

	w, body = doJSON(t, srv, http.MethodGet, "/api/inferred")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
}

func TestStatistics(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/statistics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["rules"])
	assert.Equal(t, float64(14), body["axioms"])
	assert.Equal(t, float64(13), body["constraints"])
	assert.Greater(t, body["nodes"], float64(0))
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, _ := newSeededServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/analytics/health/PUMP-001")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PUMP-001", body["equipmentId"])
	assert.NotNil(t, body["components"])

	w, _ = doJSON(t, srv, http.MethodGet, "/api/analytics/health/NOPE-001")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = doJSON(t, srv, http.MethodGet, "/api/analytics/anomalies")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body["count"])

	w, body = doJSON(t, srv, http.MethodGet, "/api/analytics/energy/forecast?date=2026-09-02")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-09-02", body["date"])
	assert.Equal(t, float64(96), body["count"])

	w, _ = doJSON(t, srv, http.MethodGet, "/api/analytics/energy/forecast?date=tomorrow")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "hunter2"
	srv, _ := newTestServer(t, cfg)

	// No credentials.
	w, _ := doJSON(t, srv, http.MethodGet, "/api/rules")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	// Wrong password.
	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Correct credentials.
	req = httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.SetBasicAuth("admin", "hunter2")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Probes stay open.
	w, _ = doJSON(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
