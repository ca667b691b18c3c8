package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "user:alice", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "user:alice", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)

	count, _, err = store.IncrementWithTTL(ctx, "user:bob", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	now = now.Add(time.Minute)
	count, _, err = store.IncrementWithTTL(ctx, "user:alice", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "a new window starts once the previous one elapsed")
	require.Equal(t, 2, store.Len())
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = store.IncrementWithTTL(context.Background(), "shared", time.Minute)
		}()
	}
	wg.Wait()

	count, _, err := store.IncrementWithTTL(context.Background(), "shared", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 51, count)
}
