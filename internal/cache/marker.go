package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/pdf360/planview/pkg/core"
)

// MarkerCache keeps marker lists in process memory
type MarkerCache struct {
	mu    sync.RWMutex
	plans map[uint][]core.Marker
}

// NewMarkerCache creates a new MarkerCache
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{
		plans: make(map[uint][]core.Marker),
	}
}

// Get retrieves a copy of the plan's markers
func (c *MarkerCache) Get(_ context.Context, planID uint) ([]core.Marker, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	markers, ok := c.plans[planID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(markers), true, nil
}

// Set stores a copy of the plan's markers
func (c *MarkerCache) Set(_ context.Context, planID uint, markers []core.Marker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[planID] = slices.Clone(markers)
	return nil
}

// Invalidate drops the plan's markers
func (c *MarkerCache) Invalidate(_ context.Context, planID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.plans, planID)
	return nil
}

// Reset clears all plans from the cache
func (c *MarkerCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = make(map[uint][]core.Marker)
}
