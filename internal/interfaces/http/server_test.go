package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/persistence"
	"github.com/cyclegate/cyclegate/internal/scoring"
	"github.com/cyclegate/cyclegate/internal/telemetry"
)

func newTestServer(t *testing.T) (*Server, *admission.Controller) {
	t.Helper()
	cfg := admission.BootstrapConfig()
	portfolio, err := admission.NewPortfolio(cfg.Capacity, []admission.Position{
		{Symbol: "AAPL", ScoreAtEntry: 2.5, OpenedAt: time.Now()},
	})
	require.NoError(t, err)
	ctrl, err := admission.NewController(cfg, scoring.NewCalculatorWithDefaults(), portfolio, admission.NewMemoryCooldowns())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	telemetry.NewMetrics(reg)
	return NewServer(":0", ctrl, persistence.NopStore().Blocks, nil, reg), ctrl
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["open_positions"])
	assert.Equal(t, float64(16), body["capacity"])
}

func TestHandlePortfolio(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/v1/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Capacity  int                  `json:"capacity"`
		Positions []admission.Position `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Positions, 1)
	assert.Equal(t, "AAPL", body.Positions[0].Symbol)
}

func TestHandleBlocks_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/v1/blocks?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBlocks_EmptyList(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/v1/blocks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"blocks":[]}`, rec.Body.String())
}

func TestHandleExplain(t *testing.T) {
	srv, _ := newTestServer(t)

	// Before any cycle: 404.
	rec := get(t, srv, "/v1/explain/BTCUSD")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv.Publish(&admission.CycleReport{
		CycleID: "cyc-1",
		Outcomes: []admission.Outcome{
			{Symbol: "BTCUSD", Decision: admission.DecisionAdmit, FinalScore: 3.2},
		},
	})

	rec = get(t, srv, "/v1/explain/BTCUSD")
	require.Equal(t, http.StatusOK, rec.Code)
	var o admission.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, 3.2, o.FinalScore)

	rec = get(t, srv, "/v1/explain/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLastCycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/v1/cycle")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv.Publish(&admission.CycleReport{CycleID: "cyc-9", Admitted: 2})
	rec = get(t, srv, "/v1/cycle")
	require.Equal(t, http.StatusOK, rec.Code)

	var report admission.CycleReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "cyc-9", report.CycleID)
}

func TestHandleMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cyclegate_cycles_total")
}
