package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/milanbhuyan7/FeedbackMangement/internal/errors"
	"github.com/milanbhuyan7/FeedbackMangement/internal/event"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/logging"
)

// bearerToken extracts the caller's token from the Authorization header,
// falling back to the token query param for clients that cannot set headers.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return c.QueryParam("token")
}

// handleDrainEvents returns and removes all events buffered for the caller
// while they had no live connection. Draining is destructive: a second call
// returns an empty list.
func (s *Server) handleDrainEvents(c echo.Context) error {
	identity, err := s.authenticator.Authenticate(bearerToken(c))
	if err != nil {
		return apperrors.UnauthorizedError("invalid or missing token")
	}

	entries := s.buffers.Drain(identity)
	if len(entries) > 0 {
		logging.WithUser(identity).Debug("Drained buffered events", "count", len(entries))
	}

	type bufferedEvent struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp float64         `json:"timestamp"`
	}

	events := make([]bufferedEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, bufferedEvent{
			Type:      string(e.Type),
			Data:      e.Payload,
			Timestamp: float64(e.Timestamp.UnixNano()) / 1e9,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_id": identity,
		"count":   len(events),
		"events":  events,
	})
}

func (s *Server) handleListConnections(c echo.Context) error {
	if err := s.requireInternalKey(c); err != nil {
		return err
	}

	connected := s.registry.ListConnected()
	return c.JSON(http.StatusOK, map[string]any{
		"count":    len(connected),
		"user_ids": connected,
	})
}

type notifyRequest struct {
	Type    string          `json:"type"`
	Targets []string        `json:"targets"`
	Payload json.RawMessage `json:"payload"`
}

// handleNotify accepts an event from a backend service and routes it to the
// targeted users. Responds with the delivery report either way: a target
// without a live connection is not an error.
func (s *Server) handleNotify(c echo.Context) error {
	if err := s.requireInternalKey(c); err != nil {
		return err
	}

	var req notifyRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	eventType, err := event.ParseType(req.Type)
	if err != nil {
		return apperrors.ValidationError(err.Error()).WithContext("type", req.Type)
	}
	if len(req.Targets) == 0 {
		return apperrors.ValidationError("at least one target is required")
	}

	report := s.router.Notify(c.Request().Context(), req.Targets, eventType, req.Payload)
	return c.JSON(http.StatusOK, report)
}

// requireInternalKey gates backend-only endpoints. With no key configured
// the endpoints stay open, which is the expected setup behind a private
// network boundary.
func (s *Server) requireInternalKey(c echo.Context) error {
	if s.config.InternalAPIKey == "" {
		return nil
	}
	if c.Request().Header.Get("X-Api-Key") != s.config.InternalAPIKey {
		return apperrors.UnauthorizedError("invalid API key")
	}
	return nil
}
