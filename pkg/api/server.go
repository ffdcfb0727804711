// Package api provides the HTTP surface for the research engine: the SSE
// streaming endpoint, cancellation, checkpoint CRUD, resume, health, and
// Prometheus metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/deepresearch/pkg/cancel"
	"github.com/codeready-toolchain/deepresearch/pkg/checkpoint"
	"github.com/codeready-toolchain/deepresearch/pkg/config"
	"github.com/codeready-toolchain/deepresearch/pkg/orchestrator"
)

// Server is the HTTP API server.
type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	orch        *orchestrator.Orchestrator
	checkpoints checkpoint.Store
	cancelSig   *cancel.Signal
	log         *slog.Logger
}

// NewServer creates a new API server and registers all routes.
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, checkpoints checkpoint.Store, cancelSig *cancel.Signal, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(cfg.Server.GinMode)
	s := &Server{
		engine:      gin.Default(),
		cfg:         cfg,
		orch:        orch,
		checkpoints: checkpoints,
		cancelSig:   cancelSig,
		log:         log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/research", s.researchHandler)
	s.engine.GET("/research", s.researchHandler)
	s.engine.POST("/resume/:sessionID", s.resumeHandler)

	s.engine.POST("/cancel/:sessionID", s.cancelHandler)

	s.engine.GET("/checkpoint/:sessionID", s.getCheckpointHandler)
	s.engine.GET("/checkpoints", s.listCheckpointsHandler)
	s.engine.DELETE("/checkpoint/:sessionID", s.deleteCheckpointHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
