// Package board holds the markers shown on the current plan.
// Readers get immutable snapshots; every change goes through Apply.
package board

import (
	"slices"
	"sync"

	"github.com/pdf360/planview/pkg/core"
)

// Snapshot is a read-only view of the board at one instant
type Snapshot struct {
	PlanID  uint
	Markers []core.Marker
}

// Find returns the marker with the given id
func (s Snapshot) Find(id uint) (core.Marker, bool) {
	for _, m := range s.Markers {
		if m.ID == id {
			return m, true
		}
	}
	return core.Marker{}, false
}

// Action is a change to the board
type Action interface {
	apply(b *state) bool
}

type state struct {
	planID  uint
	markers []core.Marker
}

func (s *state) index(id uint) int {
	return slices.IndexFunc(s.markers, func(m core.Marker) bool { return m.ID == id })
}

// Replace swaps in a freshly loaded marker list
type Replace struct {
	PlanID  uint
	Markers []core.Marker
}

func (a Replace) apply(s *state) bool {
	s.planID = a.PlanID
	s.markers = slices.Clone(a.Markers)
	return true
}

// Add appends a marker
type Add struct {
	Marker core.Marker
}

func (a Add) apply(s *state) bool {
	if s.index(a.Marker.ID) >= 0 {
		return false
	}
	s.markers = append(s.markers, a.Marker)
	return true
}

// Move repositions a marker locally and flags it unsaved
type Move struct {
	ID   uint
	X, Y float64
}

func (a Move) apply(s *state) bool {
	i := s.index(a.ID)
	if i < 0 {
		return false
	}
	m := &s.markers[i]
	if m.XPercent == a.X && m.YPercent == a.Y && m.Unsaved {
		return false
	}
	m.XPercent, m.YPercent, m.Unsaved = a.X, a.Y, true
	return true
}

// Saved confirms a persisted position. The unsaved flag is only cleared when the marker
// still sits where it was saved, so a newer local move stays flagged.
type Saved struct {
	ID   uint
	X, Y float64
}

func (a Saved) apply(s *state) bool {
	i := s.index(a.ID)
	if i < 0 {
		return false
	}
	m := &s.markers[i]
	if !m.Unsaved || m.XPercent != a.X || m.YPercent != a.Y {
		return false
	}
	m.Unsaved = false
	return true
}

// Remove drops a marker
type Remove struct {
	ID uint
}

func (a Remove) apply(s *state) bool {
	i := s.index(a.ID)
	if i < 0 {
		return false
	}
	s.markers = slices.Delete(s.markers, i, i+1)
	return true
}

// Board is safe for concurrent use. Change listeners run after the lock is released.
type Board struct {
	mu        sync.Mutex
	st        state
	nextID    uint64
	listeners map[uint64]func(Snapshot)
}

// New creates an empty board
func New() *Board {
	return &Board{listeners: make(map[uint64]func(Snapshot))}
}

// Snapshot returns a copy of the current state
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Apply applies a and reports whether the board changed
func (b *Board) Apply(a Action) bool {
	b.mu.Lock()
	changed := a.apply(&b.st)
	var snap Snapshot
	var ls []func(Snapshot)
	if changed {
		snap = b.snapshotLocked()
		for _, l := range b.listeners {
			ls = append(ls, l)
		}
	}
	b.mu.Unlock()

	for _, l := range ls {
		l(snap)
	}
	return changed
}

// OnChange registers fn to receive the board after every change
func (b *Board) OnChange(fn func(Snapshot)) (dispose func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = fn
	return sync.OnceFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	})
}

func (b *Board) snapshotLocked() Snapshot {
	return Snapshot{PlanID: b.st.planID, Markers: slices.Clone(b.st.markers)}
}
