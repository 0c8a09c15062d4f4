package presence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrDecr(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.IncrListeners(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrListeners(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.DecrListeners(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := store.ListenerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_DecrNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.DecrListeners(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.IncrListeners(ctx)
	require.NoError(t, err)
	_, err = store.IncrListeners(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	count, err := store.ListenerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.IncrListeners(ctx)
		}()
	}
	wg.Wait()

	count, err := store.ListenerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
}
