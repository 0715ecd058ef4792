package session

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pdf360/planview/internal/board"
	"github.com/pdf360/planview/internal/dispatcher"
	"github.com/pdf360/planview/internal/dualview"
	"github.com/pdf360/planview/internal/geo"
	"github.com/pdf360/planview/internal/pointer"
	"github.com/pdf360/planview/internal/viewport"
	"github.com/pdf360/planview/pkg/core"
	"github.com/pdf360/planview/pkg/streaming"
)

var (
	errNoPlan   = errors.New("no plan open")
	errNoMarker = errors.New("no marker open")
)

func (s *Session) register() {
	d := s.commands
	d.Register(streaming.TypeOpenPlan, s.handleOpenPlan, dispatcher.Logged())
	d.Register(streaming.TypeResize, s.handleResize)
	d.Register(streaming.TypeSurfaceOrigin, s.handleSurfaceOrigin)
	d.Register(streaming.TypeDeleteZone, s.handleDeleteZone)
	d.Register(streaming.TypeMarkerPointerDown, s.handleMarkerPointerDown, dispatcher.Logged())
	d.Register(streaming.TypePointerMove, s.handlePointerMove)
	d.Register(streaming.TypePointerUp, s.handlePointerUp)
	d.Register(streaming.TypeOpenMarker, s.handleOpenMarker, dispatcher.Logged())
	d.Register(streaming.TypeToggleImage, s.handleToggleImage, dispatcher.Logged())
	d.Register(streaming.TypeViewerOpen, s.handleViewerOpen, dispatcher.Logged())
	d.Register(streaming.TypeViewerGesture, s.handleViewerGesture)
	d.Register(streaming.TypeViewerResize, s.handleViewerResize)
	d.Register(streaming.TypeCompareClose, s.handleCompareClose, dispatcher.Logged())
}

func (s *Session) handleOpenPlan(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.OpenPlanPayload](e)
	if err != nil {
		return nil, err
	}
	if p.Width <= 0 {
		return nil, fmt.Errorf("invalid canvas width %d", p.Width)
	}

	ctx := context.Background()
	doc, data, err := s.deps.Catalog.OpenPlan(ctx, p.PlanID)
	if err != nil {
		s.status.Error("Could not open the plan", err)
		return nil, err
	}
	project, err := s.deps.Catalog.GetProject(ctx, doc.ProjectID)
	if err != nil {
		s.status.Error("Could not open the plan", err)
		return nil, err
	}
	list, err := s.deps.Markers.ListMarkers(ctx, doc.ID)
	if err != nil {
		s.status.Error("Could not load the markers", err)
		return nil, err
	}

	s.drag.Close()
	s.closeDetail()

	s.mu.Lock()
	s.planID = doc.ID
	s.mu.Unlock()
	s.deps.Workspace.SetPlan(&project, &doc)

	s.board.Apply(board.Replace{PlanID: doc.ID, Markers: list})

	if _, err := s.surface.Load(ctx, data, p.Width); err != nil {
		s.status.Error("Could not render the plan", err)
		return nil, err
	}
	s.status.Info(fmt.Sprintf("Plan %q opened", doc.Title))
	return doc, nil
}

func (s *Session) handleResize(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.ResizePayload](e)
	if err != nil {
		return nil, err
	}
	if p.Width <= 0 {
		return nil, fmt.Errorf("invalid canvas width %d", p.Width)
	}
	if s.currentPlan() == 0 {
		return nil, errNoPlan
	}
	s.surface.Resize(p.Width)
	return nil, nil
}

func (s *Session) handleSurfaceOrigin(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.SurfaceOriginPayload](e)
	if err != nil {
		return nil, err
	}
	s.surface.SetOrigin(geo.Point{X: p.Left, Y: p.Top})
	return nil, nil
}

func (s *Session) handleDeleteZone(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.DeleteZonePayload](e)
	if err != nil {
		return nil, err
	}
	var zone geo.Rect
	if p.Rect != nil {
		zone = geo.Rect{Left: p.Rect.Left, Top: p.Rect.Top, Width: p.Rect.Width, Height: p.Rect.Height}
	}
	s.mu.Lock()
	s.deleteZone = zone
	s.mu.Unlock()
	return nil, nil
}

func (s *Session) handleMarkerPointerDown(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.MarkerPointerDownPayload](e)
	if err != nil {
		return nil, err
	}
	if s.currentPlan() == 0 {
		return nil, errNoPlan
	}
	return nil, s.drag.BeginDrag(pointer.Event{ClientX: p.ClientX, ClientY: p.ClientY}, p.MarkerID)
}

func (s *Session) handlePointerMove(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.PointerPayload](e)
	if err != nil {
		return nil, err
	}
	s.hub.Move(pointer.Event{ClientX: p.ClientX, ClientY: p.ClientY})
	return nil, nil
}

func (s *Session) handlePointerUp(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.PointerPayload](e)
	if err != nil {
		return nil, err
	}
	s.hub.Up(pointer.Event{ClientX: p.ClientX, ClientY: p.ClientY})
	return nil, nil
}

func (s *Session) handleOpenMarker(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.OpenMarkerPayload](e)
	if err != nil {
		return nil, err
	}
	return nil, s.openMarker(p.MarkerID)
}

// openMarker shows a marker's panoramas. Any selection, comparison or viewer of the previous marker is dropped.
func (s *Session) openMarker(markerID uint) error {
	m, ok := s.board.Snapshot().Find(markerID)
	if !ok {
		return fmt.Errorf("marker %d is not on the open plan", markerID)
	}
	images, err := s.deps.Markers.ListMarkerImages(context.Background(), markerID)
	if err != nil {
		s.status.Error("Could not load the marker images", err)
		return err
	}

	s.closeDetail()
	s.mu.Lock()
	s.detail = &m
	s.images = images
	s.mu.Unlock()

	s.push(streaming.TypeMarkerDetail, streaming.MarkerDetailPayload{Marker: m, Images: images})
	s.pushSelection()
	return nil
}

// closeDetail resets the selection and tears down every viewer
func (s *Session) closeDetail() {
	s.selection.Reset()
	if err := s.comparator.Close(); err != nil {
		s.logger.Warn("Failed to close comparison", "error", err)
	}
	s.disposeViewer()

	s.mu.Lock()
	s.detail = nil
	s.images = nil
	s.mu.Unlock()
}

func (s *Session) image(id uint) (core.MarkerImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return core.MarkerImage{}, errNoMarker
	}
	for _, img := range s.images {
		if img.ID == id {
			return img, nil
		}
	}
	return core.MarkerImage{}, fmt.Errorf("image %d does not belong to marker %d", id, s.detail.ID)
}

func (s *Session) handleToggleImage(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.ToggleImagePayload](e)
	if err != nil {
		return nil, err
	}
	if _, err := s.image(p.ImageID); err != nil {
		return nil, err
	}

	ids := s.selection.Toggle(p.ImageID)
	if !s.selection.Complete() {
		if err := s.comparator.Close(); err != nil {
			s.logger.Warn("Failed to close comparison", "error", err)
		}
		s.pushSelection()
		return ids, nil
	}

	left, err := s.image(ids[0])
	if err != nil {
		return nil, err
	}
	right, err := s.image(ids[1])
	if err != nil {
		return nil, err
	}
	s.disposeViewer()
	if err := s.comparator.Open(left.URL, right.URL); err != nil {
		s.status.Error("Could not open the comparison", err)
		s.pushSelection()
		return nil, err
	}
	s.pushSelection()
	return ids, nil
}

func (s *Session) pushSelection() {
	s.push(streaming.TypeSelection, streaming.SelectionPayload{
		ImageIDs:  s.selection.IDs(),
		Comparing: s.comparator.Active(),
	})
}

func (s *Session) handleViewerOpen(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.ViewerOpenPayload](e)
	if err != nil {
		return nil, err
	}
	img, err := s.image(p.ImageID)
	if err != nil {
		return nil, err
	}
	if s.comparator.Active() {
		return nil, errors.New("a comparison is open")
	}

	size := viewport.Size{Width: p.Width, Height: p.Height}
	if size.Width <= 0 {
		s.mu.Lock()
		size = s.viewerSize
		s.mu.Unlock()
	}
	s.disposeViewer()
	v, err := viewport.New(size, img.URL, &frameRenderer{side: streaming.SideSingle, push: s.push}, s.viewerOptions())
	if err != nil {
		s.status.Error("Could not open the viewer", err)
		return nil, err
	}

	s.mu.Lock()
	s.viewer = v
	s.viewerSize = v.Size()
	s.mu.Unlock()
	return v.Snapshot(), nil
}

// viewportFor resolves the pane a gesture addresses
func (s *Session) viewportFor(side string) (*viewport.Viewport, error) {
	var v *viewport.Viewport
	switch side {
	case streaming.SideSingle, "":
		s.mu.Lock()
		v = s.viewer
		s.mu.Unlock()
	case streaming.SideLeft:
		v = s.comparator.Viewport(dualview.SideLeft)
	case streaming.SideRight:
		v = s.comparator.Viewport(dualview.SideRight)
	default:
		return nil, fmt.Errorf("unknown viewer side %q", side)
	}
	if v == nil {
		return nil, fmt.Errorf("no viewer open on side %q", side)
	}
	return v, nil
}

func (s *Session) handleViewerGesture(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.ViewerGesturePayload](e)
	if err != nil {
		return nil, err
	}
	v, err := s.viewportFor(p.Side)
	if err != nil {
		return nil, err
	}

	ctrl := v.Controls()
	switch p.Kind {
	case streaming.GestureStart:
		ctrl.Begin()
	case streaming.GestureEnd:
		ctrl.End()
	case streaming.GestureRotate:
		ctrl.Rotate(p.DX, p.DY, float64(v.Size().Height))
	case streaming.GesturePan:
		ctrl.Pan(r3.Vec{X: p.DX, Y: p.DY})
	case streaming.GestureDolly:
		ctrl.Dolly(p.Delta)
	case streaming.GestureWheel:
		return v.Wheel(p.Delta)
	default:
		return nil, fmt.Errorf("unknown gesture %q", p.Kind)
	}
	return nil, nil
}

func (s *Session) handleViewerResize(e dispatcher.Event) (any, error) {
	p, err := dispatcher.Decode[streaming.ViewerResizePayload](e)
	if err != nil {
		return nil, err
	}
	size := viewport.Size{Width: p.Width, Height: p.Height}

	s.mu.Lock()
	switch p.Side {
	case streaming.SideLeft, streaming.SideRight:
		s.compareSize = size
	case streaming.SideSingle, "":
		s.viewerSize = size
	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("unknown viewer side %q", p.Side)
	}
	s.mu.Unlock()

	v, err := s.viewportFor(p.Side)
	if err != nil {
		// remembered for the next viewer
		return nil, nil
	}
	v.Resize(size)
	return nil, nil
}

func (s *Session) handleCompareClose(dispatcher.Event) (any, error) {
	s.selection.Reset()
	if err := s.comparator.Close(); err != nil {
		return nil, err
	}
	s.pushSelection()
	return nil, nil
}
