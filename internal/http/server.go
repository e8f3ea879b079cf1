// Package http serves the counseling session and record conversion API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/convert"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/metrics"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// SessionFactory creates a fresh uninitialized session wired to the
// gateway and prompt store.
type SessionFactory func() *session.Session

// Dependencies holds the collaborators the API serves.
type Dependencies struct {
	// NewSession creates sessions for POST /api/v1/sessions.
	NewSession SessionFactory

	// Converter runs POST /api/v1/conversions.
	Converter *convert.Converter

	// Prompts resolves the conversion system prompt.
	Prompts *prompt.Store

	// Cases resolves case_id references. Nil when no case file is loaded;
	// requests by case_id are then rejected.
	Cases *casedata.Source

	// Metrics tracks the active session gauge. Optional.
	Metrics *metrics.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the HTTP endpoints for counselsim.
type Server struct {
	echo     *echo.Echo
	logger   *zap.Logger
	config   *Config
	registry *Registry

	newSession SessionFactory
	converter  *convert.Converter
	prompts    *prompt.Store
	cases      *casedata.Source
}

// NewServer creates a new HTTP server.
func NewServer(deps Dependencies, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.NewSession == nil {
		return nil, fmt.Errorf("session factory cannot be nil")
	}
	if deps.Converter == nil {
		return nil, fmt.Errorf("converter cannot be nil")
	}
	if deps.Prompts == nil {
		return nil, fmt.Errorf("prompt store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8754,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Hand a request-scoped logger to handlers.
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logging.WithLogger(c.Request().Context(), reqLogger)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", requestID),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		logger:     logger,
		config:     cfg,
		registry:   NewRegistry(deps.Metrics),
		newSession: deps.NewSession,
		converter:  deps.Converter,
		prompts:    deps.Prompts,
		cases:      deps.Cases,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)
	v1.POST("/sessions/:id/messages", s.handleSessionMessage)
	v1.POST("/conversions", s.handleConvert)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
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
