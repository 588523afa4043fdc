// Package api exposes the thin HTTP surface over the control loop: read-only
// views of services, incidents and actions, plus the demo/testing triggers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/miradorstack/mirador-remediate/internal/engine"
	"github.com/miradorstack/mirador-remediate/internal/incidents"
	"github.com/miradorstack/mirador-remediate/internal/notify"
	"github.com/miradorstack/mirador-remediate/internal/orchestrator"
	"github.com/miradorstack/mirador-remediate/internal/registry"
	"github.com/miradorstack/mirador-remediate/internal/remediation"
)

// Server hosts the HTTP API.
type Server struct {
	registry     *registry.Registry
	store        *incidents.Store
	coordinator  *remediation.Coordinator
	orchestrator *orchestrator.Orchestrator
	engine       *engine.Engine
	hub          *notify.Hub
	logger       *slog.Logger

	httpServer *http.Server
}

// Options bundles the server's collaborators.
type Options struct {
	Registry     *registry.Registry
	Store        *incidents.Store
	Coordinator  *remediation.Coordinator
	Orchestrator *orchestrator.Orchestrator
	Engine       *engine.Engine
	Hub          *notify.Hub
	Logger       *slog.Logger
}

// New constructs the API server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		registry:     opts.Registry,
		store:        opts.Store,
		coordinator:  opts.Coordinator,
		orchestrator: opts.Orchestrator,
		engine:       opts.Engine,
		hub:          opts.Hub,
		logger:       opts.Logger,
	}
}

// Router builds the gin handler. Exposed separately so tests can drive it
// through httptest without opening a listener.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealthz)
	if s.hub != nil {
		router.GET("/ws", s.handleWebsocket)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/services", s.handleListServices)
		v1.GET("/services/:id", s.handleGetService)
		v1.GET("/services/:id/incidents", s.handleServiceIncidents)
		v1.POST("/services/:id/actions", s.handleManualAction)
		v1.GET("/incidents", s.handleListIncidents)
		v1.POST("/simulate/incident", s.handleSimulateIncident)
		v1.GET("/actions", s.handleListActions)
		v1.GET("/hotspots", s.handleHotspots)
		v1.GET("/engine/status", s.handleEngineStatus)
	}
	return router
}

// Start serves the API on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("api server listening", slog.String("address", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}
