package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMemoryCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryClock(clk.now))

	require.NoError(t, mc.Set(ctx, "r:2330", payload{"2330", 71}, time.Minute))
	var got payload
	require.NoError(t, mc.Get(ctx, "r:2330", &got))
	assert.Equal(t, payload{"2330", 71}, got)

	clk.t = clk.t.Add(time.Minute)
	assert.ErrorIs(t, mc.Get(ctx, "r:2330", &got), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, "1", s)
}

func TestMemoryCache_MGetTyped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	require.NoError(t, mc.MSet(ctx, map[string]interface{}{
		"x": payload{"x", 1},
		"y": payload{"y", 2},
		"z": "not json",
	}, time.Hour))

	got, err := MGetTyped[payload](ctx, mc, "x", "y", "z", "missing")
	require.NoError(t, err)
	assert.Equal(t, map[string]payload{"x": {"x", 1}, "y": {"y", 2}}, got)
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	ok, err := mc.TryLock(ctx, "run:2024-01-02", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "run:2024-01-02", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "run:2024-01-02"))
	ok, _ = mc.TryLock(ctx, "run:2024-01-02", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCache_ReadsThroughToRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, 10, time.Minute)

	require.NoError(t, remote.Set(ctx, "k", payload{"k", 3}, time.Hour))

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 3.0, got.Score)
	assert.Equal(t, 1, lc.local.Len())

	require.NoError(t, lc.Set(ctx, "n", payload{"n", 4}, time.Hour))
	raw, err := lc.MGet(ctx, "k", "n", "none")
	require.NoError(t, err)
	assert.Len(t, raw, 2)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, remote.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "result:2330:2024-01-02", Key("result", "2330", "2024-01-02"))
	assert.Len(t, HashKey("plan"), 32)
}
