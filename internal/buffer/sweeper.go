package buffer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sweeper periodically evicts aged entries from a Store. It replaces the
// detached daemon-thread cleanup with a loop scoped to the process lifetime:
// cancel the context and Run returns.
type Sweeper struct {
	store    *Store
	interval time.Duration
	maxAge   time.Duration
	clock    clockwork.Clock
}

func NewSweeper(store *Store, interval, maxAge time.Duration, clock clockwork.Clock) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		clock:    clock,
	}
}

// Run sweeps on a fixed period independent of push/drain traffic. It blocks
// until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := s.store.Sweep(s.maxAge); removed > 0 {
				slog.Debug("Event buffer sweep removed aged entries", "removed", removed, "max_age", s.maxAge)
			}
		}
	}
}
