package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/pdf360/planview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerCache_NewMarkerCache(t *testing.T) {
	cache := NewMarkerCache()

	require.NotNil(t, cache)
	assert.NotNil(t, cache.plans)
}

func TestMarkerCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMarkerCache()

	require.NoError(t, cache.Set(ctx, 3, []core.Marker{{ID: 1, PlanID: 3, XPercent: 0.5, YPercent: 0.5}}))

	got, ok, err := cache.Get(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok, "expected to find plan 3")
	require.Len(t, got, 1)
	assert.Equal(t, uint(1), got[0].ID)
}

func TestMarkerCache_Get_NotFound(t *testing.T) {
	cache := NewMarkerCache()

	_, ok, err := cache.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, ok, "expected not to find plan 999")
}

func TestMarkerCache_EmptyListIsAHit(t *testing.T) {
	ctx := context.Background()
	cache := NewMarkerCache()

	require.NoError(t, cache.Set(ctx, 1, nil))
	_, ok, _ := cache.Get(ctx, 1)
	assert.True(t, ok, "a plan without markers is still cached")
}

func TestMarkerCache_CopiesOnSetAndGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMarkerCache()

	markers := []core.Marker{{ID: 1, Title: "Icon_1"}}
	require.NoError(t, cache.Set(ctx, 1, markers))
	markers[0].Title = "changed"

	got, _, _ := cache.Get(ctx, 1)
	got[0].XPercent = 0.9

	again, _, _ := cache.Get(ctx, 1)
	assert.Equal(t, "Icon_1", again[0].Title)
	assert.Equal(t, 0.0, again[0].XPercent)
}

func TestMarkerCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMarkerCache()

	require.NoError(t, cache.Set(ctx, 1, []core.Marker{{ID: 1}}))
	require.NoError(t, cache.Set(ctx, 2, []core.Marker{{ID: 2}}))

	require.NoError(t, cache.Invalidate(ctx, 1))
	require.NoError(t, cache.Invalidate(ctx, 42))

	_, ok, _ := cache.Get(ctx, 1)
	assert.False(t, ok, "expected plan 1 to be invalidated")
	_, ok, _ = cache.Get(ctx, 2)
	assert.True(t, ok, "expected plan 2 to still exist")
}

func TestMarkerCache_Reset(t *testing.T) {
	ctx := context.Background()
	cache := NewMarkerCache()

	require.NoError(t, cache.Set(ctx, 1, nil))
	require.NoError(t, cache.Set(ctx, 2, nil))
	cache.Reset()

	_, ok, _ := cache.Get(ctx, 1)
	assert.False(t, ok, "expected plan 1 to be cleared after reset")

	require.NoError(t, cache.Set(ctx, 3, nil))
	_, ok, _ = cache.Get(ctx, 3)
	assert.True(t, ok, "expected to find plan 3 after reset")
}

func TestMarkerCache_ConcurrentReadWrite(t *testing.T) {
	ctx := context.Background()
	cache := NewMarkerCache()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(3)

		go func(id int) {
			defer wg.Done()
			_ = cache.Set(ctx, uint(id%5), []core.Marker{{ID: uint(id)}})
		}(i)

		go func(id int) {
			defer wg.Done()
			_, _, _ = cache.Get(ctx, uint(id%5))
		}(i)

		go func(id int) {
			defer wg.Done()
			_ = cache.Invalidate(ctx, uint(id%5))
		}(i)
	}

	wg.Wait()
}

func TestNop(t *testing.T) {
	var c MarkerLists = Nop{}
	require.NoError(t, c.Set(context.Background(), 1, []core.Marker{{ID: 1}}))
	_, ok, err := c.Get(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, ok)
}
