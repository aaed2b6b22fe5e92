// Package registry tracks which users currently hold a live connection.
//
// It is the single source of truth for reachability and the only structure
// shared between session goroutines and the event-producing request path.
// All access goes through the registry's lock; callers never see internals.
package registry

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/milanbhuyan7/FeedbackMangement/internal/event"
)

// ErrAlreadyConnected is returned when an identity already has a live handle.
// The caller must close the new connection with the duplicate-connection
// status code instead of evicting the existing one.
var ErrAlreadyConnected = errors.New("identity already connected")

// Sink is the outbound path of a connection. Implemented by the session;
// the registry itself never writes to the transport.
type Sink interface {
	Deliver(t event.Type, payload json.RawMessage) error
}

// Handle is a non-owning reference to one accepted connection. The owning
// session creates it at admission time and keeps exclusive ownership of the
// underlying transport; the registry only routes through it.
type Handle struct {
	UserID      string
	Token       uuid.UUID
	ConnectedAt time.Time
	sink        Sink
}

// NewHandle creates a handle with a fresh connection token. The token
// disambiguates a stale disconnect racing a fresh reconnect.
func NewHandle(userID string, sink Sink, now time.Time) *Handle {
	return &Handle{
		UserID:      userID,
		Token:       uuid.New(),
		ConnectedAt: now,
		sink:        sink,
	}
}

// Deliver forwards an event to the connection's outbound path.
func (h *Handle) Deliver(t event.Type, payload json.RawMessage) error {
	return h.sink.Deliver(t, payload)
}

// GroupName derives the implicit per-user group for an identity. Every user
// has exactly one group today; the indirection keeps the wire contract stable
// if multi-subscriber groups are added later.
func GroupName(identity string) string {
	return "user_" + identity
}

// Registry maps user identities to at most one live handle each, with a
// secondary per-user group index. A coarse mutex is fine at the expected
// cardinality (tens to low thousands of users per process).
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*Handle
	groups map[string]map[uuid.UUID]*Handle
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]*Handle),
		groups: make(map[string]map[uuid.UUID]*Handle),
	}
}

// Register admits a handle for an identity. A second live connection for the
// same identity is rejected, never silently replaced.
func (r *Registry) Register(identity string, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[identity]; exists {
		return ErrAlreadyConnected
	}
	r.conns[identity] = h

	group := GroupName(identity)
	members, ok := r.groups[group]
	if !ok {
		members = make(map[uuid.UUID]*Handle)
		r.groups[group] = members
	}
	members[h.Token] = h
	return nil
}

// Unregister removes the handle for an identity. Idempotent: removing a
// handle that is not the currently registered one is a no-op, so a stale
// disconnect cannot knock out a fresh reconnect.
func (r *Registry) Unregister(identity string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.conns[identity]
	if !exists || current.Token != h.Token {
		return
	}
	delete(r.conns, identity)

	group := GroupName(identity)
	if members, ok := r.groups[group]; ok {
		delete(members, h.Token)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
}

// Lookup returns the live handle for an identity, if any.
func (r *Registry) Lookup(identity string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.conns[identity]
	return h, ok
}

// IsConnected reports whether the identity currently has a live handle.
func (r *Registry) IsConnected(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[identity]
	return ok
}

// ListConnected returns a sorted snapshot of connected identities. The
// snapshot may be stale the moment it is returned.
func (r *Registry) ListConnected() []string {
	r.mu.Lock()
	identities := make([]string, 0, len(r.conns))
	for identity := range r.conns {
		identities = append(identities, identity)
	}
	r.mu.Unlock()

	sort.Strings(identities)
	return identities
}

// GroupMembers returns the handles subscribed to a group.
func (r *Registry) GroupMembers(group string) []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return nil
	}
	handles := make([]*Handle, 0, len(members))
	for _, h := range members {
		handles = append(handles, h)
	}
	return handles
}

// Len returns the number of connected identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
