// Package buffer implements the pull-mode fallback: a bounded per-user ring
// of recent events for clients that cannot hold a persistent connection.
//
// Delivery through the buffer is at most once per entry: draining is
// destructive and there is no acknowledgment protocol. The buffer is not
// synchronized with the push path's per-connection state.
package buffer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/milanbhuyan7/FeedbackMangement/internal/event"
	"github.com/milanbhuyan7/FeedbackMangement/internal/metrics"
)

// ringCapacity bounds how many events a disconnected user can accumulate.
const ringCapacity = 100

// Entry is one buffered notification.
type Entry struct {
	Type      event.Type
	Payload   json.RawMessage
	Timestamp time.Time
}

// ring is a fixed-capacity FIFO. Entries are stored in insertion order, so
// timestamps are nondecreasing from the head.
type ring struct {
	entries [ringCapacity]Entry
	head    int
	size    int
}

func (r *ring) push(e Entry) (evicted bool) {
	if r.size == ringCapacity {
		r.entries[r.head] = e
		r.head = (r.head + 1) % ringCapacity
		return true
	}
	r.entries[(r.head+r.size)%ringCapacity] = e
	r.size++
	return false
}

func (r *ring) snapshot() []Entry {
	out := make([]Entry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.head+i)%ringCapacity]
	}
	return out
}

// dropOlderThan removes entries from the head while they are older than the
// cutoff. Returns the number removed.
func (r *ring) dropOlderThan(cutoff time.Time) int {
	removed := 0
	for r.size > 0 && !r.entries[r.head].Timestamp.After(cutoff) {
		r.entries[r.head] = Entry{}
		r.head = (r.head + 1) % ringCapacity
		r.size--
		removed++
	}
	return removed
}

// Store holds one ring per user.
type Store struct {
	mu    sync.Mutex
	rings map[string]*ring
	clock clockwork.Clock
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		rings: make(map[string]*ring),
		clock: clock,
	}
}

// Push appends an event to the user's ring. Always succeeds; if the ring is
// full the oldest unread entry is silently dropped.
func (s *Store) Push(identity string, t event.Type, payload json.RawMessage) {
	entry := Entry{Type: t, Payload: payload, Timestamp: s.clock.Now()}

	s.mu.Lock()
	r, ok := s.rings[identity]
	if !ok {
		r = &ring{}
		s.rings[identity] = r
	}
	evicted := r.push(entry)
	s.mu.Unlock()

	if evicted {
		metrics.BufferEvictionsTotal.Inc()
	}
}

// Drain returns all buffered entries for the identity in insertion order and
// clears the ring. A second drain with no intervening pushes returns nothing.
func (s *Store) Drain(identity string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rings[identity]
	if !ok {
		return nil
	}
	out := r.snapshot()
	delete(s.rings, identity)
	return out
}

// Len returns the number of buffered entries for the identity.
func (s *Store) Len(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rings[identity]
	if !ok {
		return 0
	}
	return r.size
}

// Sweep removes entries older than maxAge across all users and returns the
// number removed. Empty rings are dropped entirely.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := s.clock.Now().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for identity, r := range s.rings {
		removed += r.dropOlderThan(cutoff)
		if r.size == 0 {
			delete(s.rings, identity)
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		metrics.BufferSweptTotal.Add(float64(removed))
	}
	return removed
}
