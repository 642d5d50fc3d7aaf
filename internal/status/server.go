// Package status exposes gatesync's operational state over HTTP: a
// health probe, the recent run journal, and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/internal/store"
	"github.com/HerbHall/gatesync/internal/version"
)

// Server serves the status endpoints.
type Server struct {
	httpServer *http.Server
	runs       *store.RunRepository
	addresses  *store.AddressRepository
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a status Server listening on addr.
func New(addr string, runs *store.RunRepository, addresses *store.AddressRepository, metrics *Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runs:      runs,
		addresses: addresses,
		logger:    logger,
		mux:       mux,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/addresses", s.handleAddresses)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting status server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatesync",
		"version": version.Map(),
	})
}

// handleStatus returns the most recent sync runs, newest first.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.List(r.Context(), 20)
	if err != nil {
		s.logger.Error("list runs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "run journal unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "gatesync",
		"runs":    runs,
	})
}

// handleAddresses returns the terminal address history, newest first.
func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	history, err := s.addresses.History(r.Context(), 20)
	if err != nil {
		s.logger.Error("address history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "address history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "gatesync",
		"addresses": history,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
