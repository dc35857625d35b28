// Package server provides the HTTP API for deliverd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/flow"
	"github.com/fyrsmithlabs/deliverd/internal/risk"
	"github.com/fyrsmithlabs/deliverd/internal/rules"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// AssessObserver records risk assessment outcomes, typically for metrics.
type AssessObserver interface {
	ObserveAssessment(d risk.Detection)
}

// Deps bundles the services the API fronts.
type Deps struct {
	Orchestrator *flow.Orchestrator
	Fix          *fixtree.Service
	Rules        *rules.Live
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Observer may be nil.
	Observer AssessObserver
}

// Server provides HTTP endpoints for deliverd.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config Config
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(deps Deps, logger *zap.Logger, cfg Config) (*Server, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("server: orchestrator is required")
	}
	if deps.Fix == nil {
		return nil, fmt.Errorf("server: fix service is required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("server: rules are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("server: logger is required")
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")

	v1.POST("/flows", s.handleCreateFlow)
	v1.GET("/flows", s.handleListFlows)
	v1.GET("/flows/:id", s.handleGetFlow)
	v1.GET("/flows/:id/timeline", s.handleGetTimeline)
	v1.POST("/flows/:id/execute", s.handleExecuteFlow)
	v1.POST("/flows/:id/pause", s.handlePauseFlow)
	v1.POST("/flows/:id/resume", s.handleResumeFlow)

	v1.POST("/errors/classify", s.handleClassify)

	v1.POST("/fix", s.handleStartFix)
	v1.GET("/fix/:id", s.handleGetFix)
	v1.POST("/fix/:id/escalate", s.handleEscalateFix)

	v1.POST("/risk/assess", s.handleAssess)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Echo exposes the underlying echo instance for extra route registration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
