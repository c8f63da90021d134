// Package diag exposes the agent's diagnostics listener: liveness,
// Prometheus metrics, and a state snapshot for debugging.
package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"saarthi/internal/buildinfo"
	"saarthi/internal/metrics"
	"saarthi/internal/store"
)

// Server serves the diagnostics endpoints for a running agent.
type Server struct {
	st   *store.Store
	http *http.Server
}

// New builds a diagnostics server over the given state store.
func New(addr string, st *store.Store) *Server {
	s := &Server{st: st}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/state", s.stateHandler)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("diagnostics listener stopped")
		}
	}()
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.st.Snapshot()

	// The token never leaves the process through diagnostics.
	authed := snap.Auth.User != nil

	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"auth": map[string]any{
			"authenticated": authed,
			"user":          snap.Auth.User,
			"error":         snap.Auth.Err,
		},
		"location": snap.Location,
		"trip":     snap.Trip,
		"buses": map[string]any{
			"count":          len(snap.Bus.Buses),
			"selected_route": snap.Bus.SelectedRoute,
			"selected_bus":   snap.Bus.SelectedBus,
			"error":          snap.Bus.Err,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
