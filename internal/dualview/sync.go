// Package dualview links two panorama viewports so the one the user is steering
// drives the framing of the other.
package dualview

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pdf360/planview/internal/camera"
	"github.com/pdf360/planview/internal/geo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pane is a camera and the orbit controls steering it
type Pane interface {
	Camera() *camera.Perspective
	Controls() *camera.OrbitControls
}

// SyncFromTo mirrors the orbit target, viewing direction and field of view of src onto dst.
// dst keeps its own distance from the target.
func SyncFromTo(src, dst Pane) {
	srcCam, dstCam := src.Camera(), dst.Camera()
	srcCtrl, dstCtrl := src.Controls(), dst.Controls()

	dstRadius := r3.Norm(r3.Sub(dstCam.Position(), dstCtrl.Target()))

	target := srcCtrl.Target()
	dstCtrl.SetTarget(target)

	offset := r3.Sub(srcCam.Position(), target)
	spherical := geo.SphericalFromVec(offset).WithRadius(dstRadius)

	dstCam.SetPosition(r3.Add(target, spherical.Vec()))
	dstCam.LookAt(target)

	dstCam.SetFOV(srcCam.FOV())
	dstCam.UpdateProjectionMatrix()

	dstCtrl.Update()
}

// Sync binds two panes with a leader/follower protocol.
// Only the leading pane's "change" notifications propagate, so updates applied to the follower never echo back.
type Sync struct {
	left, right Pane
	logger      *slog.Logger

	mu       sync.Mutex
	leader   Leader
	closed   bool
	disposer []func()

	// syncMu is held while SyncFromTo runs. A change arriving meanwhile is the follower's
	// own echo or will be followed by another change, so it is dropped instead of waiting.
	syncMu sync.Mutex
	synced atomic.Uint64

	// OnSync, when set, is called after every propagated change
	OnSync func(from Side)
}

// Bind subscribes to both panes' controls and starts mirroring
func Bind(left, right Pane, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sync{left: left, right: right, logger: logger}

	for _, side := range []Side{SideLeft, SideRight} {
		side := side
		ctrl := s.pane(side).Controls()
		s.disposer = append(s.disposer,
			ctrl.On(camera.EventStart, func(camera.EventType) { s.start(side) }),
			ctrl.On(camera.EventEnd, func(camera.EventType) { s.end() }),
			ctrl.On(camera.EventChange, func(camera.EventType) { s.change(side) }),
		)
	}
	return s
}

// Leader returns the current leader
func (s *Sync) Leader() Leader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leader
}

// Synced returns the number of propagated changes
func (s *Sync) Synced() uint64 {
	return s.synced.Load()
}

// Close unsubscribes from both panes. The panes themselves are not disposed.
func (s *Sync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.leader = LeaderNone
	disposers := s.disposer
	s.disposer = nil
	s.mu.Unlock()

	for _, d := range disposers {
		d()
	}
}

func (s *Sync) pane(side Side) Pane {
	if side == SideLeft {
		return s.left
	}
	return s.right
}

func (s *Sync) start(side Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.leader = s.leader.onStart(side)
	s.logger.Debug("Comparison leader changed", "leader", s.leader)
}

func (s *Sync) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leader = s.leader.onEnd()
}

func (s *Sync) change(side Side) {
	s.mu.Lock()
	ok := !s.closed && s.leader.leads(side)
	s.mu.Unlock()
	if !ok {
		return
	}

	if !s.syncMu.TryLock() {
		return
	}
	SyncFromTo(s.pane(side), s.pane(side.Other()))
	s.syncMu.Unlock()

	s.synced.Add(1)
	if s.OnSync != nil {
		s.OnSync(side)
	}
}
