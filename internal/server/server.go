package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/milanbhuyan7/FeedbackMangement/internal/auth"
	"github.com/milanbhuyan7/FeedbackMangement/internal/buffer"
	"github.com/milanbhuyan7/FeedbackMangement/internal/dispatch"
	apperrors "github.com/milanbhuyan7/FeedbackMangement/internal/errors"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/config"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/correlation"
	"github.com/milanbhuyan7/FeedbackMangement/internal/registry"
	"github.com/milanbhuyan7/FeedbackMangement/internal/session"
)

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	authenticator *auth.Authenticator
	registry      *registry.Registry
	router        *dispatch.Router
	buffers       *buffer.Store
	limits        *ConnectionLimits
	clock         clockwork.Clock
	startTime     time.Time
}

func NewServer(cfg *config.Config, authenticator *auth.Authenticator, reg *registry.Registry, router *dispatch.Router, buffers *buffer.Store, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:          e,
		config:        cfg,
		authenticator: authenticator,
		registry:      reg,
		router:        router,
		buffers:       buffers,
		limits:        NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		clock:         clock,
		startTime:     clock.Now(),
	}

	// Register routes
	srv.registerRoutes()

	return srv
}

// correlationMiddleware tags each request context with a correlation ID so
// log lines from the same request can be grouped.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Server) sessionConfig() session.Config {
	return session.Config{
		HeartbeatInterval: s.config.HeartbeatInterval,
		HeartbeatLimit:    s.config.HeartbeatLimit,
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
