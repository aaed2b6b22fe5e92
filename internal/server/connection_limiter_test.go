package server

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(3)

	// Acquire 3 slots (at limit)
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// 4th acquire should fail
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// Release one slot
	limiter.Release()
	assert.Equal(t, int64(2), limiter.Current())

	// Now acquire should succeed
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(100)
	var successCount, failCount int64

	// Barrier to ensure all goroutines try to acquire at roughly the same time
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start // Wait for signal
			if limiter.Acquire() {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
		}()
	}

	// Release all goroutines at once
	close(start)
	wg.Wait()

	// Should have exactly 100 successes and 100 failures
	assert.Equal(t, int64(100), atomic.LoadInt64(&successCount))
	assert.Equal(t, int64(100), atomic.LoadInt64(&failCount))
	assert.Equal(t, int64(100), limiter.Current())
}

func TestIPConnectionLimiter_PerIPIsolation(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)

	assert.True(t, limiter.Acquire("10.0.0.1"))
	assert.True(t, limiter.Acquire("10.0.0.1"))
	assert.False(t, limiter.Acquire("10.0.0.1"))

	// Other IPs are unaffected
	assert.True(t, limiter.Acquire("10.0.0.2"))

	limiter.Release("10.0.0.1")
	assert.True(t, limiter.Acquire("10.0.0.1"))
}

func TestIPConnectionLimiter_ReleaseCleansUpMap(t *testing.T) {
	limiter := NewIPConnectionLimiter(4)

	limiter.Acquire("10.0.0.1")
	limiter.Release("10.0.0.1")
	assert.Equal(t, 0, limiter.Count("10.0.0.1"))

	// Release on an unknown IP must not underflow
	limiter.Release("10.0.0.9")
	assert.Equal(t, 0, limiter.Count("10.0.0.9"))
}

func TestConnectionRateLimiter_BurstThenThrottle(t *testing.T) {
	limiter := NewConnectionRateLimiter(1, 3)

	// Burst of 3 allowed immediately
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))

	// Bucket exhausted
	assert.False(t, limiter.Allow("10.0.0.1"))

	// Separate bucket per IP
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestConnectionLimits_RollbackOnPerIPRejection(t *testing.T) {
	limits := NewConnectionLimits(100, 1, 1000, 1000)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	assert.Empty(t, string(reason))

	// Second connection from the same IP hits the per-IP cap; the global
	// slot taken during the attempt must be rolled back.
	ok, reason = limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	assert.Equal(t, int64(1), limits.Current())
}

func TestConnectionLimits_GlobalCeiling(t *testing.T) {
	limits := NewConnectionLimits(2, 10, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok)
}

func TestConnectionLimits_RateRejection(t *testing.T) {
	limits := NewConnectionLimits(100, 10, 1, 1)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}
