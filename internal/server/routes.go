package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// WebSocket endpoint (token carried in query param)
	s.echo.GET("/ws", s.handleWebSocket)

	// API routes (token authenticated)
	s.echo.GET("/api/events", s.handleDrainEvents)
	s.echo.GET("/api/connections", s.handleListConnections)

	// Internal publish endpoint (backend services, not end users)
	s.echo.POST("/internal/notify", s.handleNotify)
}
