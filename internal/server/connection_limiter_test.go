package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerLimits_GlobalCap(t *testing.T) {
	limits := NewListenerLimits(2, 10, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	// Releasing frees a slot for a new listener.
	limits.Release("10.0.0.1")
	ok, _ = limits.Acquire("10.0.0.3")
	assert.True(t, ok)
}

func TestListenerLimits_PerIPCap(t *testing.T) {
	limits := NewListenerLimits(100, 2, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	// A rejected per-IP acquire must not leak a global slot.
	assert.Equal(t, int64(2), limits.CurrentGlobal())

	// Other IPs are unaffected.
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)
}

func TestListenerLimits_RateLimit(t *testing.T) {
	limits := NewListenerLimits(100, 100, 1, 2)

	ok, _ := limits.Acquire("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("10.0.0.1")
	assert.True(t, ok)

	// Burst exhausted; the next connection in the same instant is rejected
	// before any slot is held.
	ok, reason := limits.Acquire("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
	assert.Equal(t, int64(2), limits.CurrentGlobal())
}

func TestListenerLimits_RateLimitIsPerIP(t *testing.T) {
	limits := NewListenerLimits(100, 100, 1, 1)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	ok, reason := limits.Acquire("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, LimitReasonRate, reason)

	// A fresh IP has its own bucket.
	ok, _ = limits.Acquire("10.0.0.2")
	assert.True(t, ok)
}

func TestListenerLimits_ReleaseCleansUpIdleIPs(t *testing.T) {
	limits := NewListenerLimits(100, 2, 1000, 1000)

	ok, _ := limits.Acquire("10.0.0.1")
	require.True(t, ok)
	limits.Release("10.0.0.1")

	assert.Empty(t, limits.perIP.ips)
	assert.Equal(t, int64(0), limits.CurrentGlobal())
}

func TestListenerLimits_ConcurrentGlobalCap(t *testing.T) {
	limits := NewListenerLimits(50, 1000, 100000, 100000)
	var success atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		ip := fmt.Sprintf("10.0.0.%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, _ := limits.Acquire(ip); ok {
				success.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(50), success.Load())
	assert.Equal(t, int64(50), limits.CurrentGlobal())
}
