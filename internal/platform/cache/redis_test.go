package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type manifestStub struct {
	BatchID string `json:"batch_id"`
	Members int    `json:"members"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "batch:ENV-20260828-0930-01", manifestStub{BatchID: "ENV-20260828-0930-01", Members: 3}))

	var got manifestStub
	require.NoError(t, c.GetJSON(ctx, "batch:ENV-20260828-0930-01", &got))
	require.Equal(t, "ENV-20260828-0930-01", got.BatchID)
	require.Equal(t, 3, got.Members)
}

func TestCacheMissAndInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var got manifestStub
	require.ErrorIs(t, c.GetJSON(ctx, "absent", &got), ErrMiss)

	require.NoError(t, c.SetJSON(ctx, "k", manifestStub{Members: 1}))
	require.NoError(t, c.Invalidate(ctx, "k"))
	require.ErrorIs(t, c.GetJSON(ctx, "k", &got), ErrMiss)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	require.ErrorIs(t, c.GetJSON(ctx, "k", nil), ErrMiss)
	require.NoError(t, c.SetJSON(ctx, "k", manifestStub{}))
	require.NoError(t, c.Invalidate(ctx, "k"))
}
