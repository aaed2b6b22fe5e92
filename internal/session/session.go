// Package session owns one accepted WebSocket connection from handshake to
// close: authentication, registry admission, inbound control frames, outbound
// event serialization, and the bounded heartbeat lifetime.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/milanbhuyan7/FeedbackMangement/internal/auth"
	"github.com/milanbhuyan7/FeedbackMangement/internal/event"
	"github.com/milanbhuyan7/FeedbackMangement/internal/metrics"
	"github.com/milanbhuyan7/FeedbackMangement/internal/registry"
)

// Close codes distinguishable by the client. Generic failures use the
// standard internal-error code.
const (
	CloseUnauthenticated = 4001
	CloseDuplicate       = 4002
)

const (
	writeDeadline  = 5 * time.Second
	sendBufferSize = 16

	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatLimit    = 20
)

var (
	// ErrSessionClosed is returned by Deliver after the session has closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrSlowClient is returned by Deliver when the outbound buffer is full;
	// the session is torn down because the client cannot keep up.
	ErrSlowClient = errors.New("slow client evicted")
)

// State tracks the session lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Config bounds a session's idle lifetime. After HeartbeatLimit liveness
// frames the session closes normally; the peer is expected to reconnect.
// This is a policy ceiling, not an error.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatLimit    int
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.HeartbeatLimit <= 0 {
		c.HeartbeatLimit = defaultHeartbeatLimit
	}
	return c
}

// eventFrame is the outbound shape for domain notifications.
type eventFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// controlFrame covers connected confirmations, heartbeats, and pongs.
type controlFrame struct {
	Type      string  `json:"type"`
	Message   string  `json:"message,omitempty"`
	UserID    string  `json:"user_id,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Count     int     `json:"count,omitempty"`
}

// Session serves a single connection. The receive loop runs on the caller's
// goroutine (Run blocks for the connection lifetime); a second goroutine owns
// all writes and the heartbeat timer, and both terminate when the session
// closes.
type Session struct {
	conn     *websocket.Conn
	auth     *auth.Authenticator
	registry *registry.Registry
	clock    clockwork.Clock
	cfg      Config

	identity string
	handle   *registry.Handle

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	state     atomic.Int32
}

func New(conn *websocket.Conn, authenticator *auth.Authenticator, reg *registry.Registry, clock clockwork.Clock, cfg Config) *Session {
	return &Session{
		conn:     conn,
		auth:     authenticator,
		registry: reg,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		sendCh:   make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run authenticates the connection, admits it to the registry, and serves it
// until closure. It blocks for the lifetime of the connection. The registry
// slot is released and the heartbeat timer stopped on every exit path.
func (s *Session) Run(ctx context.Context, rawToken string) error {
	s.setState(StateAuthenticating)

	identity, err := s.auth.Authenticate(rawToken)
	if err != nil {
		s.reject(CloseUnauthenticated, "unauthenticated")
		metrics.ConnectionsTotal.WithLabelValues("unauthenticated").Inc()
		slog.InfoContext(ctx, "Connection rejected: authentication failed", "error", err)
		return fmt.Errorf("authenticate: %w", err)
	}
	s.identity = identity

	s.handle = registry.NewHandle(identity, s, s.clock.Now())
	if err := s.registry.Register(identity, s.handle); err != nil {
		s.reject(CloseDuplicate, "duplicate connection")
		metrics.ConnectionsTotal.WithLabelValues("duplicate").Inc()
		slog.InfoContext(ctx, "Connection rejected: already connected", "user_id", identity)
		return fmt.Errorf("register: %w", err)
	}

	metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
	metrics.ActiveConnections.Inc()
	s.setState(StateActive)
	slog.InfoContext(ctx, "WebSocket connected", "user_id", identity, "connection_token", s.handle.Token.String())

	s.wg.Add(1)
	go s.writePump()

	confirmation := s.marshalControl(controlFrame{
		Type:    "connected",
		Message: "WebSocket connection established",
		UserID:  identity,
	})
	s.sendCh <- confirmation

	s.readLoop(ctx)

	s.setState(StateClosing)
	s.registry.Unregister(identity, s.handle)
	s.shutdown(websocket.CloseNormalClosure, "", false)
	s.wg.Wait()
	s.setState(StateClosed)
	metrics.ActiveConnections.Dec()
	slog.InfoContext(ctx, "WebSocket disconnected", "user_id", identity)
	return nil
}

// Deliver queues an outbound event frame. Called by the router from the
// request-handling path; never blocks event production. A full buffer means
// the client cannot keep up, so the session is closed.
func (s *Session) Deliver(t event.Type, payload json.RawMessage) error {
	data, err := json.Marshal(eventFrame{Type: t.String(), Data: payload})
	if err != nil {
		return fmt.Errorf("marshal event frame: %w", err)
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	case s.sendCh <- data:
		return nil
	default:
		metrics.SlowClientsEvicted.Inc()
		s.shutdown(websocket.ClosePolicyViolation, "slow consumer", true)
		return ErrSlowClient
	}
}

// readLoop blocks on inbound frames until the peer disconnects or the
// transport dies. Malformed input never terminates the session.
func (s *Session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleInbound(ctx, data)
	}
}

func (s *Session) handleInbound(ctx context.Context, data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.DebugContext(ctx, "Ignoring malformed client frame", "user_id", s.identity)
		return
	}

	switch msg.Type {
	case "ping":
		pong := s.marshalControl(controlFrame{Type: "pong", Timestamp: s.nowSeconds()})
		select {
		case s.sendCh <- pong:
		default:
			// Backlogged outbound path; the pong is expendable.
		}
	default:
		slog.DebugContext(ctx, "Ignoring unknown client frame", "user_id", s.identity, "frame_type", msg.Type)
	}
}

// writePump owns all writes to the connection plus the heartbeat timer. It
// exits when the session closes, a write fails, or the heartbeat ceiling is
// reached.
func (s *Session) writePump() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	beats := 0
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.sendCh:
			if err := s.write(msg); err != nil {
				s.shutdown(websocket.CloseInternalServerErr, "", false)
				return
			}
		case <-ticker.Chan():
			beats++
			hb := s.marshalControl(controlFrame{Type: "heartbeat", Timestamp: s.nowSeconds(), Count: beats})
			if err := s.write(hb); err != nil {
				s.shutdown(websocket.CloseInternalServerErr, "", false)
				return
			}
			metrics.HeartbeatsSentTotal.Inc()

			if beats >= s.cfg.HeartbeatLimit {
				s.shutdown(websocket.CloseNormalClosure, "heartbeat limit reached", true)
				return
			}
		}
	}
}

func (s *Session) write(msg []byte) error {
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// shutdown closes the transport exactly once and signals both loops.
// WriteControl is safe concurrently with the pump's data writes.
func (s *Session) shutdown(code int, reason string, sendClose bool) {
	s.closeOnce.Do(func() {
		close(s.done)
		if sendClose {
			msg := websocket.FormatCloseMessage(code, reason)
			deadline := s.clock.Now().Add(writeDeadline)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		}
		_ = s.conn.Close()
	})
}

// reject closes a connection that never reached Active. No registry slot was
// taken, so there is nothing to release.
func (s *Session) reject(code int, reason string) {
	s.setState(StateRejected)
	msg := websocket.FormatCloseMessage(code, reason)
	deadline := s.clock.Now().Add(writeDeadline)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = s.conn.Close()
}

func (s *Session) marshalControl(f controlFrame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		// controlFrame has no unmarshalable fields; this cannot happen.
		panic(err)
	}
	return data
}

func (s *Session) nowSeconds() float64 {
	return float64(s.clock.Now().UnixNano()) / float64(time.Second)
}
