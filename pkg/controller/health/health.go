// Package health exposes the liveness endpoint for the daemon.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/utils/logging"
)

// CycleStatus is the read surface the cycle runner exposes to this endpoint.
type CycleStatus interface {
	Watermark() time.Time
	LastCycle() time.Time
}

type Server struct {
	srv    *http.Server
	status CycleStatus
}

func New(addr string, status CycleStatus) *Server {
	s := &Server{status: status}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in a background goroutine until Stop is called.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.From(ctx).Error("health server failed", "error", err)
		}
	}()
	logging.From(ctx).Info("health endpoint listening", "addr", s.srv.Addr)
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Status    string `json:"status"`
		Watermark string `json:"watermark,omitempty"`
		LastCycle string `json:"last_cycle,omitempty"`
	}{
		Status: "ok",
	}

	if wm := s.status.Watermark(); !wm.IsZero() {
		body.Watermark = wm.Format(time.RFC3339)
	}
	if last := s.status.LastCycle(); !last.IsZero() {
		body.LastCycle = last.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(r.Context()).Warn("failed to write health response", "error", err)
	}
}
