// Package cache holds per-plan marker lists so repeated loads skip the store.
package cache

import (
	"context"

	"github.com/pdf360/planview/pkg/core"
)

// MarkerLists caches the marker list of each plan
type MarkerLists interface {
	// Get returns the cached list. ok is false on a miss.
	Get(ctx context.Context, planID uint) (markers []core.Marker, ok bool, err error)
	Set(ctx context.Context, planID uint, markers []core.Marker) error
	Invalidate(ctx context.Context, planID uint) error
}

// Nop caches nothing
type Nop struct{}

func (Nop) Get(context.Context, uint) ([]core.Marker, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, uint, []core.Marker) error         { return nil }
func (Nop) Invalidate(context.Context, uint) error                 { return nil }
