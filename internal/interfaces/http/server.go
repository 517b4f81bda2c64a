package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/persistence"
	"github.com/cyclegate/cyclegate/internal/stream"
)

// Server exposes the engine's observability surface: health, metrics,
// portfolio and block-record queries, per-symbol scoring explanations,
// and the live decision stream.
type Server struct {
	ctrl        *admission.Controller
	blocks      persistence.BlocksRepo
	broadcaster *stream.Broadcaster
	gatherer    prometheus.Gatherer

	mu   sync.RWMutex
	last *admission.CycleReport

	httpServer *http.Server
}

// NewServer wires the observability server.
func NewServer(listen string, ctrl *admission.Controller, blocks persistence.BlocksRepo, broadcaster *stream.Broadcaster, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		ctrl:        ctrl,
		blocks:      blocks,
		broadcaster: broadcaster,
		gatherer:    gatherer,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/v1/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	r.HandleFunc("/v1/blocks", s.handleBlocks).Methods(http.MethodGet)
	r.HandleFunc("/v1/cycle", s.handleLastCycle).Methods(http.MethodGet)
	r.HandleFunc("/v1/explain/{symbol}", s.handleExplain).Methods(http.MethodGet)
	if broadcaster != nil {
		r.Handle("/v1/stream", broadcaster).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the route tree, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Publish stores the latest cycle report and forwards it to the
// decision stream. It implements scheduler.Publisher.
func (s *Server) Publish(report *admission.CycleReport) {
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	if s.broadcaster != nil {
		s.broadcaster.Publish(report)
	}
}

// ListenAndServe blocks until the server exits.
func (s *Server) ListenAndServe() error {
	log.Info().Str("listen", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the stream.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"open_positions": s.ctrl.Portfolio().Len(),
		"capacity":       s.ctrl.Portfolio().Capacity(),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capacity":  s.ctrl.Portfolio().Capacity(),
		"positions": s.ctrl.Portfolio().Positions(),
	})
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	recs, err := s.blocks.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("block record query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "block record query failed"})
		return
	}
	if recs == nil {
		recs = []admission.BlockRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": recs})
}

func (s *Server) handleLastCycle(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle has completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle has completed yet"})
		return
	}
	for _, o := range last.Outcomes {
		if o.Symbol == symbol {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "symbol not present in last cycle"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}
