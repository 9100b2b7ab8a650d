package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "unit:SN1:snapshots")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "unit:SN1:snapshots", []byte(`[]`), time.Minute))
	require.True(t, mr.Exists("wipbox:unit:SN1:snapshots"))

	b, ok, err := c.Get(ctx, "unit:SN1:snapshots")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`[]`), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "unit:SN1:snapshots")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	require.NoError(t, c.Delete(ctx))
	require.False(t, mr.Exists("wipbox:a"))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestRateLimiter_AllowPerMinute_NewWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	now := time.Date(2024, 3, 4, 9, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ctx := context.Background()
	ok, _, err := rl.AllowPerMinute(ctx, "trigger", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("wipbox:rl:trigger:202403040900"))

	ok, _, _ = rl.AllowPerMinute(ctx, "trigger", 1)
	require.False(t, ok)

	now = now.Add(time.Minute)
	ok, n, _ := rl.AllowPerMinute(ctx, "trigger", 1)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
