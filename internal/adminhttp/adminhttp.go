// Package adminhttp exposes the engine's admin plane: health, stats, and
// Prometheus metrics, routed with chi the way catalinm00-KVDB routes its
// REST API.
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ridgedb/ridgedb/internal/storage"
)

// Server is the admin HTTP plane.
type Server struct {
	httpServer *http.Server
}

// New builds the admin router and wraps it in an *http.Server listening on
// addr. reg is the engine's Prometheus registry, served at /metrics.
func New(addr string, engine *storage.LSM, reg *prometheus.Registry, logger *logrus.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := engine.Stats()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logger.WithError(err).Warn("failed encoding stats response")
		}
	})

	if reg != nil {
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
}

// ListenAndServe blocks serving admin HTTP requests until Shutdown is
// called, mirroring the stdlib http.Server contract.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
