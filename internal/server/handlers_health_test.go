package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, srv.handleLiveness(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleReadiness_Ready(t *testing.T) {
	srv := newTestServer(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, srv.handleReadiness(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestHandleReadiness_AtCapacity(t *testing.T) {
	cfg := &config.Config{
		Port:                "0",
		JWTSecret:           testSecret,
		DeliveryMode:        config.DeliveryModePush,
		HeartbeatInterval:   30 * time.Second,
		HeartbeatLimit:      20,
		MaxConnections:      1,
		MaxConnectionsPerIP: 10,
		ConnectionRate:      1000,
		ConnectionBurst:     1000,
	}
	srv := newTestServer(t, cfg)

	ok, _ := srv.limits.Acquire("10.0.0.1")
	require.True(t, ok)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, srv.handleReadiness(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection_capacity")
}
