package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// The service holds all state in memory, so readiness reduces to
	// having connection capacity left.
	if s.limits.Current() >= s.limits.Max() {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":       "unhealthy",
			"failed_check": "connection_capacity",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ready",
		"connections": s.limits.Current(),
	})
}
