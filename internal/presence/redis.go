package presence

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/andriawan/siaran/internal/domain"
	"github.com/andriawan/siaran/internal/metrics"
)

const listenerCountKey = "siaran:listeners"

// RedisStore keeps the listener count in a single Redis key so it is visible
// to external tooling and survives restarts of anything but Redis itself.
type RedisStore struct {
	rdb *goredis.Client
}

var _ domain.PresenceStore = (*RedisStore)(nil)

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) IncrListeners(ctx context.Context) (int64, error) {
	n, err := s.rdb.Incr(ctx, listenerCountKey).Result()
	observeOp("incr", err)
	if err != nil {
		return 0, fmt.Errorf("failed to increment listener count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) DecrListeners(ctx context.Context) (int64, error) {
	n, err := s.rdb.Decr(ctx, listenerCountKey).Result()
	observeOp("decr", err)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement listener count: %w", err)
	}
	// A negative count means a decrement raced a Reset; clamp rather than
	// letting the skew accumulate.
	if n < 0 {
		if err := s.rdb.Set(ctx, listenerCountKey, 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("failed to clamp listener count: %w", err)
		}
		return 0, nil
	}
	return n, nil
}

func (s *RedisStore) ListenerCount(ctx context.Context) (int64, error) {
	n, err := s.rdb.Get(ctx, listenerCountKey).Int64()
	if errors.Is(err, goredis.Nil) {
		observeOp("get", nil)
		return 0, nil
	}
	observeOp("get", err)
	if err != nil {
		return 0, fmt.Errorf("failed to read listener count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	err := s.rdb.Del(ctx, listenerCountKey).Err()
	observeOp("reset", err)
	if err != nil {
		return fmt.Errorf("failed to reset listener count: %w", err)
	}
	return nil
}

func observeOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PresenceOpsTotal.WithLabelValues(op, status).Inc()
}
