// Package http exposes the deployd HTTP API: conversational pipeline
// messages, live audit event streams, ad-hoc tool invocation, credential
// management, and deployment history.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/audit"
	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/deployments"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
	"github.com/fyrsmithlabs/deployd/internal/logging"
	"github.com/fyrsmithlabs/deployd/internal/session"
	"github.com/fyrsmithlabs/deployd/internal/workflow"
)

// Pipeline drives deployment runs for the message endpoint.
type Pipeline interface {
	Run(ctx context.Context, sessionID string, intent workflow.Intent) (*workflow.Report, error)
	Cancel(sessionID string)
	SubmitVeto(sessionID, reason string)
	Stage(sessionID string) workflow.Stage
}

// Invoker performs ad-hoc gateway calls.
type Invoker interface {
	Invoke(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// CredentialBroker stores and reports per-session credentials. The status
// view never contains secret material.
type CredentialBroker interface {
	Status(ctx context.Context, sessionID string) (credentials.Status, error)
	Store(ctx context.Context, sessionID string, material credentials.Material) error
}

// EventSource feeds the SSE endpoint with live audit events.
type EventSource interface {
	Subscribe(sessionID string) (<-chan audit.Event, func())
}

// Dependencies are the collaborators the server routes to.
type Dependencies struct {
	Pipeline Pipeline
	Sessions *session.Manager
	Gateway  Invoker
	Broker   CredentialBroker
	History  deployments.Store
	Events   EventSource
}

// Server is the deployd HTTP API server.
type Server struct {
	echo    *echo.Echo
	deps    Dependencies
	cfg     config.ServerConfig
	logger  *logging.Logger
	metrics *Metrics
}

// NewServer wires routes and middleware. All dependencies are required.
func NewServer(deps Dependencies, cfg config.ServerConfig, logger *logging.Logger) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("http: pipeline is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("http: session manager is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("http: gateway is required")
	}
	if deps.Broker == nil {
		return nil, errors.New("http: credential broker is required")
	}
	if deps.History == nil {
		return nil, errors.New("http: deployment store is required")
	}
	if deps.Events == nil {
		return nil, errors.New("http: event source is required")
	}
	if logger == nil {
		return nil, errors.New("http: logger is required")
	}
	if cfg.PingInterval.Duration() <= 0 {
		cfg.PingInterval = config.Duration(15 * time.Second)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		deps:    deps,
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	e.Use(s.metrics.Middleware())

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/sessions", s.handleListSessions)
	v1.POST("/sessions/:id/messages", s.handleMessage)
	v1.GET("/sessions/:id/events", s.handleEvents)
	v1.POST("/sessions/:id/cancel", s.handleCancel)
	v1.POST("/sessions/:id/veto", s.handleVeto)
	v1.GET("/sessions/:id/credentials", s.handleCredentialStatus)
	v1.PUT("/sessions/:id/credentials", s.handleCredentialStore)
	v1.POST("/invoke", s.handleInvoke)
	v1.GET("/deployments", s.handleListDeployments)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start blocks serving the configured address.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
