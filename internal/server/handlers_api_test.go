package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/milanbhuyan7/FeedbackMangement/internal/auth"
	"github.com/milanbhuyan7/FeedbackMangement/internal/buffer"
	"github.com/milanbhuyan7/FeedbackMangement/internal/dispatch"
	apperrors "github.com/milanbhuyan7/FeedbackMangement/internal/errors"
	"github.com/milanbhuyan7/FeedbackMangement/internal/event"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/config"
	"github.com/milanbhuyan7/FeedbackMangement/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789abcdef"

func signToken(t *testing.T, subject string) string {
	t.Helper()

	key, err := jwk.FromRaw([]byte(testSecret))
	require.NoError(t, err)

	tok, err := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now().Add(-time.Minute)).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)
	return string(signed)
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{
			Port:                "0",
			JWTSecret:           testSecret,
			DeliveryMode:        config.DeliveryModePull,
			HeartbeatInterval:   30 * time.Second,
			HeartbeatLimit:      20,
			MaxConnections:      100,
			MaxConnectionsPerIP: 10,
			ConnectionRate:      1000,
			ConnectionBurst:     1000,
		}
	}

	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret)
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	reg := registry.New()
	buffers := buffer.NewStore(clock)
	router := dispatch.NewRouter(reg, buffers)

	return NewServer(cfg, authenticator, reg, router, buffers, clock)
}

// deliverRecorder implements registry.Sink and records delivered events.
type deliverRecorder struct {
	delivered []event.Type
}

func (r *deliverRecorder) Deliver(t event.Type, payload json.RawMessage) error {
	r.delivered = append(r.delivered, t)
	return nil
}

func TestHandleDrainEvents_ReturnsAndClearsBuffer(t *testing.T) {
	srv := newTestServer(t, nil)

	srv.buffers.Push("7", event.TypeFeedbackCreated, json.RawMessage(`{"id":1}`))
	srv.buffers.Push("7", event.TypeFeedbackUpdated, json.RawMessage(`{"id":1}`))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "7"))
	rec := httptest.NewRecorder()

	err := srv.handleDrainEvents(e.NewContext(req, rec))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID string `json:"user_id"`
		Count  int    `json:"count"`
		Events []struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "7", body.UserID)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "feedback_created", body.Events[0].Type)
	assert.Equal(t, "feedback_updated", body.Events[1].Type)

	// Draining is destructive: a second call returns nothing
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "7"))
	require.NoError(t, srv.handleDrainEvents(e.NewContext(req, rec)))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
	assert.Empty(t, body.Events)
}

func TestHandleDrainEvents_TokenViaQueryParam(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.buffers.Push("9", event.TypeNewFeedback, json.RawMessage(`{}`))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/events?token="+signToken(t, "9"), nil)
	rec := httptest.NewRecorder()

	require.NoError(t, srv.handleDrainEvents(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestHandleDrainEvents_RejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	err := srv.handleDrainEvents(e.NewContext(req, rec))
	require.Error(t, err)

	structured := apperrors.AsStructuredError(err)
	require.NotNil(t, structured)
	assert.Equal(t, http.StatusUnauthorized, structured.HTTPStatus())
}

func TestHandleNotify_DeliversToRegisteredUser(t *testing.T) {
	srv := newTestServer(t, nil)

	sink := &deliverRecorder{}
	handle := registry.NewHandle("5", sink, time.Now())
	require.NoError(t, srv.registry.Register("5", handle))

	body := `{"type":"feedback_created","targets":["5","offline"],"payload":{"id":12}}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, srv.handleNotify(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report dispatch.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Buffered) // pull mode buffers the offline target

	require.Len(t, sink.delivered, 1)
	assert.Equal(t, event.TypeFeedbackCreated, sink.delivered[0])
}

func TestHandleNotify_RejectsUnknownEventType(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{"type":"bogus","targets":["5"],"payload":{}}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := srv.handleNotify(e.NewContext(req, rec))
	require.Error(t, err)

	structured := apperrors.AsStructuredError(err)
	require.NotNil(t, structured)
	assert.Equal(t, http.StatusBadRequest, structured.HTTPStatus())
}

func TestHandleNotify_RequiresTargets(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{"type":"feedback_created","targets":[],"payload":{}}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := srv.handleNotify(e.NewContext(req, rec))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.AsStructuredError(err).HTTPStatus())
}

func TestHandleNotify_EnforcesAPIKeyWhenConfigured(t *testing.T) {
	cfg := &config.Config{
		Port:                "0",
		JWTSecret:           testSecret,
		InternalAPIKey:      "sekrit",
		DeliveryMode:        config.DeliveryModePush,
		HeartbeatInterval:   30 * time.Second,
		HeartbeatLimit:      20,
		MaxConnections:      100,
		MaxConnectionsPerIP: 10,
		ConnectionRate:      1000,
		ConnectionBurst:     1000,
	}
	srv := newTestServer(t, cfg)

	body := `{"type":"feedback_created","targets":["5"],"payload":{}}`
	e := echo.New()

	// Missing key
	req := httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	err := srv.handleNotify(e.NewContext(req, rec))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.AsStructuredError(err).HTTPStatus())

	// Correct key
	req = httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Api-Key", "sekrit")
	rec = httptest.NewRecorder()
	require.NoError(t, srv.handleNotify(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleListConnections(t *testing.T) {
	srv := newTestServer(t, nil)

	require.NoError(t, srv.registry.Register("b", registry.NewHandle("b", &deliverRecorder{}, time.Now())))
	require.NoError(t, srv.registry.Register("a", registry.NewHandle("a", &deliverRecorder{}, time.Now())))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/connections", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, srv.handleListConnections(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int      `json:"count"`
		UserIDs []string `json:"user_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []string{"a", "b"}, body.UserIDs)
}
