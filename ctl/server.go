// Package ctl serves the control API over a unix domain socket: the
// live counter dump, Prometheus exposition, health, and the
// administrative prune and reload commands.
package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tally/internal/buildinfo"
	"tally/pkg/sdk/types"
	"tally/publish"
	"tally/query"
	"tally/registry"
)

const readHeaderTimeout = 10 * time.Second

// Server exposes the registry over the control socket.
type Server struct {
	Registry  *registry.Registry
	Publisher *publish.Publisher

	// Clock reports clock health for /healthz; nil means unknown.
	Clock func() types.ClockStatus

	// Reload applies new options to the running daemon; nil disables
	// POST /reload.
	Reload func(registry.Options) error
}

// Handler builds the control API router.
func (s *Server) Handler() http.Handler {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(&query.Collector{Registry: s.Registry})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.getHealth)
	r.Get("/stats", s.getStats)
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	r.Post("/prune", s.postPrune)
	r.Post("/reload", s.postReload)
	return r
}

// ListenAndServe starts the HTTP server on a unix socket and blocks
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	// Remove stale socket from a previous run (may not exist).
	_ = os.Remove(socketPath)
	defer func() { _ = os.Remove(socketPath) }()

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", socketPath, err)
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Shut down when ctx is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Control socket listening.", "path", socketPath)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.Registry.Lock()
	clusters := s.Registry.Len()
	s.Registry.Unlock()

	health := types.Health{
		Status:   "ok",
		Version:  buildinfo.Version,
		Clusters: clusters,
	}
	if s.Clock != nil {
		health.Clock = s.Clock()
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	if err := query.WriteCSV(w, s.Registry, r.URL.Query().Get("filter")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *Server) postPrune(w http.ResponseWriter, _ *http.Request) {
	res := s.Publisher.Run()
	writeJSON(w, http.StatusOK, types.PruneResult{
		Dropped:         res.Dropped,
		OldestTimestamp: res.Oldest,
	})
}

func (s *Server) postReload(w http.ResponseWriter, r *http.Request) {
	if s.Reload == nil {
		http.Error(w, "reload not supported", http.StatusNotImplemented)
		return
	}

	var req types.ReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode options: %v", err), http.StatusBadRequest)
		return
	}
	if req.Level < 0 || req.LogFreq < 0 || req.Lifetime < 0 {
		http.Error(w, "options must be nonnegative", http.StatusBadRequest)
		return
	}

	opts := registry.Options{
		Level:    req.Level,
		LogFreq:  time.Duration(req.LogFreq) * time.Second,
		Lifetime: time.Duration(req.Lifetime) * time.Second,
	}
	if err := s.Reload(opts); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
