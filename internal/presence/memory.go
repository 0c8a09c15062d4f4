package presence

import (
	"context"
	"sync"

	"github.com/andriawan/siaran/internal/domain"
)

// MemoryStore provides an in-process listener count for single-instance mode
// without Redis.
type MemoryStore struct {
	mu    sync.Mutex
	count int64
}

var _ domain.PresenceStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) IncrListeners(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return s.count, nil
}

func (s *MemoryStore) DecrListeners(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
	}
	return s.count, nil
}

func (s *MemoryStore) ListenerCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	return nil
}
