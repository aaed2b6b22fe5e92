package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/milanbhuyan7/FeedbackMangement/internal/metrics"
	"github.com/milanbhuyan7/FeedbackMangement/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients connect from arbitrary frontend origins
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("Connection rejected by limiter", "ip", ip, "reason", reason)
		if reason == LimitReasonRate {
			return c.String(http.StatusTooManyRequests, "Too many connection attempts")
		}
		return c.String(http.StatusServiceUnavailable, "Connection limit reached")
	}
	defer s.limits.Release(ip)

	// Upgrade before authenticating so rejections reach the client as
	// WebSocket close codes rather than opaque handshake failures.
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "ip", ip, "error", err)
		return nil // Upgrade failure already wrote the HTTP response
	}

	sess := session.New(conn, s.authenticator, s.registry, s.clock, s.sessionConfig())
	if err := sess.Run(c.Request().Context(), c.QueryParam("token")); err != nil {
		slog.Debug("Session ended with error", "ip", ip, "error", err)
	}
	return nil
}
