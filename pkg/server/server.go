// Package server exposes the orchestration engine over HTTP: job
// submission, status and result polling, report download, and the
// operational health, config, and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirthikaaMK/drug-discovery/pkg/config"
	"github.com/kirthikaaMK/drug-discovery/pkg/logger"
	"github.com/kirthikaaMK/drug-discovery/pkg/orchestrator"
)

// Server is the HTTP front end over the engine.
type Server struct {
	cfg        *config.Config
	engine     *orchestrator.Engine
	httpServer *http.Server
	logger     *slog.Logger

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New builds the server and its router.
func New(cfg *config.Config, engine *orchestrator.Engine) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		logger:    logger.GetLogger(),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(corsMiddleware)

	r.Post("/analyze", s.handleAnalyze)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/results/{jobID}", s.handleResults)
	r.Get("/download/{jobID}", s.handleDownload)

	r.Get("/health", s.handleHealth)
	r.Get("/config", s.handleConfig)
	if s.cfg.Metrics.IsEnabled() {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	return r
}

// Start runs the retention sweeper and serves until Stop is called.
func (s *Server) Start() error {
	go s.runSweeper()

	s.logger.Info("HTTP server listening", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully and stops the sweeper.
func (s *Server) Stop(ctx context.Context) error {
	close(s.sweepStop)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	select {
	case <-s.sweepDone:
	case <-ctx.Done():
	}
	return nil
}

// runSweeper evicts settled jobs past the retention TTL and keeps the
// store under the job cap.
func (s *Server) runSweeper() {
	defer close(s.sweepDone)

	interval := time.Duration(s.cfg.Retention.SweepInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted, err := s.engine.Store().Sweep(context.Background(),
				time.Duration(s.cfg.Retention.TTL), s.cfg.Retention.MaxJobs)
			if err != nil {
				s.logger.Error("Retention sweep failed", "error", err)
				continue
			}
			if evicted > 0 {
				s.logger.Info("Retention sweep evicted jobs", "count", evicted)
			}
		case <-s.sweepStop:
			return
		}
	}
}
