package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// globalListenerLimiter caps total concurrent listener connections for this
// instance. Lock-free counting.
type globalListenerLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalListenerLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalListenerLimiter) release() {
	l.current.Add(-1)
}

// ipListenerLimiter caps concurrent listener connections per IP address,
// protecting against a single misbehaving source.
type ipListenerLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func (l *ipListenerLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipListenerLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 0 {
		l.ips[ip] = count - 1
		if l.ips[ip] == 0 {
			delete(l.ips, ip)
		}
	}
}

// connectionRateLimiter limits the rate of new connections per IP using a
// token bucket per source.
type connectionRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *connectionRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		l.cleanup()
		l.cleanupAt = time.Now().Add(5 * time.Minute)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(l.rate, l.burst),
		}
		l.limiters[ip] = entry
	}

	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// cleanup removes buckets idle for 10 minutes. Must be called with mu held.
func (l *connectionRateLimiter) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// LimitReason describes why a listener connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ListenerLimits combines the global cap, per-IP cap, and per-IP connection
// rate limit applied to new listener connections.
type ListenerLimits struct {
	global *globalListenerLimiter
	perIP  *ipListenerLimiter
	rate   *connectionRateLimiter
}

func NewListenerLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int) *ListenerLimits {
	return &ListenerLimits{
		global: &globalListenerLimiter{max: globalMax},
		perIP:  &ipListenerLimiter{ips: make(map[string]int), maxPer: perIPMax},
		rate: &connectionRateLimiter{
			limiters:  make(map[string]*rateLimiterEntry),
			rate:      rate.Limit(connectionsPerSecond),
			burst:     burst,
			cleanupAt: time.Now().Add(5 * time.Minute),
		},
	}
}

// Acquire attempts all three limits for the given IP. On rejection the
// returned reason names the limit that fired and nothing is held.
func (l *ListenerLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.allow(ip) {
		return false, LimitReasonRate
	}
	if !l.global.acquire() {
		return false, LimitReasonGlobal
	}
	if !l.perIP.acquire(ip) {
		l.global.release()
		return false, LimitReasonPerIP
	}
	return true, ""
}

// Release releases the slots held for the given IP.
func (l *ListenerLimits) Release(ip string) {
	l.perIP.release(ip)
	l.global.release()
}

// CurrentGlobal returns the number of currently held listener slots.
func (l *ListenerLimits) CurrentGlobal() int64 {
	return l.global.current.Load()
}
