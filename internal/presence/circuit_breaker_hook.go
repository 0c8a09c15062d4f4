package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/andriawan/siaran/internal/metrics"
)

// CircuitBreakerHook implements redis.Hook to protect all Redis operations
// with a circuit breaker. When Redis becomes unavailable the breaker opens
// and commands fail fast instead of piling up on a dead connection; reads of
// the listener count fall back to the last value observed while the
// connection was healthy.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]

	mu         sync.RWMutex
	lastCounts map[string]cachedCount
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type cachedCount struct {
	value     int64
	timestamp time.Time
}

const countCacheTTL = 5 * time.Minute

// NewCircuitBreakerHook creates a circuit breaker hook that opens at a 60%
// failure rate over at least 5 requests in a 10s rolling window, waits 30s
// before probing half-open, and closes again after one success.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	cb := circuitbreaker.Builder[any]().
		WithFailureRateThreshold(60, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("redis", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &CircuitBreakerHook{
		cb:         cb,
		lastCounts: make(map[string]cachedCount),
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// DialHook wraps connection establishment with the circuit breaker.
func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

// ProcessHook wraps command execution with the circuit breaker. Successful
// GET results are retained so count reads still answer while the circuit is
// open.
func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return h.handleFallback(cmd)
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
		} else {
			h.cb.RecordSuccess()
		}

		if err == nil {
			h.cacheResult(cmd)
		}

		if err != nil {
			return fmt.Errorf("circuit breaker process failed: %w", err)
		}
		return nil
	}
}

// ProcessPipelineHook wraps pipeline execution with the circuit breaker.
func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}

		err := next(ctx, cmds)
		if err != nil {
			h.cb.RecordError(err)
			return fmt.Errorf("circuit breaker pipeline failed: %w", err)
		}
		h.cb.RecordSuccess()
		return nil
	}
}

// handleFallback serves the last observed count for reads while the circuit
// is open. Counter mutations cannot be replayed later, so they fail fast.
func (h *CircuitBreakerHook) handleFallback(cmd goredis.Cmder) error {
	switch cmd.Name() {
	case "get":
		if value, ok := h.getCached(cmd); ok {
			slog.Debug("Circuit breaker open, serving last observed count",
				"args", cmd.Args(),
			)
			if c, ok := cmd.(*goredis.StringCmd); ok {
				c.SetVal(strconv.FormatInt(value, 10))
				return nil
			}
		}
		return fmt.Errorf("redis circuit breaker open and no cached count: %w", circuitbreaker.ErrOpen)

	case "incr", "decr", "set", "del":
		slog.Warn("Circuit breaker open for presence write",
			"command", cmd.Name(),
			"args", cmd.Args(),
		)
		return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)

	default:
		return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
	}
}

func (h *CircuitBreakerHook) cacheResult(cmd goredis.Cmder) {
	args := cmd.Args()
	if len(args) < 2 {
		return
	}
	key := fmt.Sprintf("%v", args[1])

	var value int64
	switch cmd.Name() {
	case "get":
		c, ok := cmd.(*goredis.StringCmd)
		if !ok {
			return
		}
		parsed, err := strconv.ParseInt(c.Val(), 10, 64)
		if err != nil {
			return
		}
		value = parsed
	case "incr", "decr":
		c, ok := cmd.(*goredis.IntCmd)
		if !ok {
			return
		}
		value = c.Val()
	default:
		return
	}

	h.mu.Lock()
	h.lastCounts[key] = cachedCount{value: value, timestamp: time.Now()}
	h.mu.Unlock()
}

func (h *CircuitBreakerHook) getCached(cmd goredis.Cmder) (int64, bool) {
	args := cmd.Args()
	if len(args) < 2 {
		return 0, false
	}
	key := fmt.Sprintf("%v", args[1])

	h.mu.RLock()
	defer h.mu.RUnlock()

	cached, ok := h.lastCounts[key]
	if !ok || time.Since(cached.timestamp) > countCacheTTL {
		return 0, false
	}
	return cached.value, true
}

// State returns the current circuit breaker state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
