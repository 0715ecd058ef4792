package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/pdf360/planview/internal/board"
	"github.com/pdf360/planview/internal/dispatcher"
	"github.com/pdf360/planview/internal/drag"
	"github.com/pdf360/planview/internal/dualview"
	"github.com/pdf360/planview/internal/geo"
	"github.com/pdf360/planview/internal/logging"
	"github.com/pdf360/planview/internal/markers"
	"github.com/pdf360/planview/internal/plan"
	"github.com/pdf360/planview/internal/pointer"
	"github.com/pdf360/planview/internal/status"
	"github.com/pdf360/planview/internal/viewport"
	"github.com/pdf360/planview/pkg/core"
	"github.com/pdf360/planview/pkg/streaming"
)

// Session is one client's canvas: the open plan, its markers, the drag controller and the panorama viewers.
type Session struct {
	id     string
	conn   *connection
	deps   Dependencies
	logger *slog.Logger

	commands   *dispatcher.Dispatcher
	status     *status.Reporter
	hub        *pointer.Hub
	board      *board.Board
	surface    *plan.Surface
	drag       *drag.Controller
	selection  dualview.Selection
	comparator *dualview.Comparator

	mu          sync.Mutex
	planID      uint
	deleteZone  geo.Rect
	detail      *core.Marker
	images      []core.MarkerImage
	viewer      *viewport.Viewport
	viewerSize  viewport.Size
	compareSize viewport.Size

	disposers []func()
	closeOnce sync.Once
}

func newSession(id string, conn *connection, deps Dependencies, logger *slog.Logger) (*Session, error) {
	dl := deps.DispatcherLogger
	if zl, ok := dl.(*logging.DispatcherLogger); ok {
		dl = zl.With("session", id)
	}
	commands, err := dispatcher.New(dl)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	s := &Session{
		id:       id,
		conn:     conn,
		deps:     deps,
		logger:   logger,
		commands: commands,
		status:   status.NewReporter(logger),
		hub:      pointer.NewHub(),
		board:    board.New(),
	}

	s.surface = plan.NewSurface(deps.Renderer, deps.Interaction.ResizeDebounce, logger)
	s.surface.OnRender = s.planRendered

	s.drag = drag.NewController(drag.Config{
		Surface:    s.surface.Bounds,
		DeleteZone: s.currentDeleteZone,
		Pointer:    s.hub,
		Snapshot:   s.board.Snapshot,
		Dispatch:   s.board.Apply,
		Markers:    &markers.Reporting{Service: deps.Markers, Status: s.status},
		OpenDetail: func(markerID uint) {
			if err := s.openMarker(markerID); err != nil {
				s.logger.Warn("Could not open marker detail", "marker", markerID, "error", err)
			}
		},
		Events:    s.dragEvent,
		LongPress: deps.Interaction.LongPress,
		Logger:    logger,
	})

	s.comparator = dualview.NewComparator(s.newComparisonViewport, logger)
	s.comparator.OnSync = func(from dualview.Side) {
		if s.deps.Telemetry != nil {
			s.deps.Telemetry.ViewSynced(from.String(), time.Now())
		}
	}

	s.disposers = append(s.disposers,
		s.status.Subscribe(func(m status.Message) {
			s.push(streaming.TypeStatus, m)
		}),
		s.board.OnChange(func(snap board.Snapshot) {
			s.push(streaming.TypeMarkers, streaming.MarkersPayload{PlanID: snap.PlanID, Markers: snap.Markers})
		}),
	)

	s.register()
	return s, nil
}

// quiet commands are only acknowledged when they fail
var quiet = map[string]bool{
	streaming.TypePointerMove:   true,
	streaming.TypeViewerGesture: true,
}

func (s *Session) run() {
	defer s.Close()

	for {
		data, err := s.conn.read()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				s.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		s.handle(data)
	}
}

func (s *Session) handle(data []byte) {
	var env streaming.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.ack("", fmt.Errorf("invalid envelope: %w", err))
		return
	}

	_, err := s.commands.Dispatch(dispatcher.Event{Command: env.Type, Payload: env.Payload})
	if err != nil || !quiet[env.Type] {
		s.ack(env.Type, err)
	}
}

func (s *Session) ack(msgType string, err error) {
	ack := streaming.AckMessage{Type: streaming.TypeAck, For: msgType}
	if err != nil {
		ack.Error = err.Error()
	}
	data, mErr := json.Marshal(ack)
	if mErr != nil {
		s.logger.Error("Failed to encode ack", "error", mErr)
		return
	}
	s.conn.send(data)
}

func (s *Session) push(msgType string, payload any) {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		s.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	s.conn.send(data)
}

// Close tears down the session. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.drag.Close()
		if err := s.comparator.Close(); err != nil {
			s.logger.Warn("Failed to close comparison", "error", err)
		}
		s.disposeViewer()
		s.surface.Close()
		for _, d := range s.disposers {
			d()
		}
		if err := s.commands.Close(); err != nil {
			s.logger.Warn("Failed to close dispatcher", "error", err)
		}
		_ = s.conn.close(ws.CloseNormalClosure, "")
	})
}

func (s *Session) currentDeleteZone() geo.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteZone
}

func (s *Session) currentPlan() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planID
}

// planRendered re-projects every marker of the open plan onto the new surface size
func (s *Session) planRendered(page plan.Page) {
	planID := s.currentPlan()
	positions := []streaming.MarkerPosition{}
	if snap := s.board.Snapshot(); snap.PlanID == planID {
		for _, m := range snap.Markers {
			p := s.surface.MarkerPoint(m.XPercent, m.YPercent)
			positions = append(positions, streaming.MarkerPosition{MarkerID: m.ID, X: p.X, Y: p.Y})
		}
	}
	s.push(streaming.TypePlanRendered, streaming.PlanRenderedPayload{
		PlanID:    planID,
		Width:     page.WidthPx,
		Height:    page.HeightPx,
		Positions: positions,
	})
}

func (s *Session) dragEvent(e drag.Event) {
	s.push(streaming.TypeDragEvent, e)
	if e.Kind == drag.EventDragEnded && s.deps.Telemetry != nil {
		s.deps.Telemetry.DragEnded(s.currentPlan(), e.MarkerID, e.Outcome, e.X, e.Y, time.Now())
	}
}

func (s *Session) viewerOptions() viewport.Options {
	opts := viewport.DefaultOptions()
	v := s.deps.Viewer
	if v.FrameInterval > 0 {
		opts.FrameInterval = v.FrameInterval
	}
	if v.RotateSpeed > 0 {
		opts.Orbit.RotateSpeed = v.RotateSpeed
	}
	opts.Orbit.EnableDamping = v.EnableDamping
	if v.DampingFactor > 0 {
		opts.Orbit.DampingFactor = v.DampingFactor
	}
	if v.MaxFOV > v.MinFOV && v.FOVStep > 0 {
		opts.Zoom = viewport.FovZoom{MinFOV: v.MinFOV, MaxFOV: v.MaxFOV, Step: v.FOVStep}
	}
	opts.Logger = s.logger
	return opts
}

func (s *Session) newComparisonViewport(side dualview.Side, imageSrc string) (*viewport.Viewport, error) {
	s.mu.Lock()
	size := s.compareSize
	s.mu.Unlock()
	return viewport.New(size, imageSrc, &frameRenderer{side: side.String(), push: s.push}, s.viewerOptions())
}

func (s *Session) disposeViewer() {
	s.mu.Lock()
	v := s.viewer
	s.viewer = nil
	s.mu.Unlock()
	if v != nil {
		if err := v.Dispose(); err != nil {
			s.logger.Warn("Failed to dispose viewer", "error", err)
		}
	}
}

// cameraFrame is a viewport frame tagged with the pane it belongs to
type cameraFrame struct {
	Side string `json:"side"`
	viewport.Frame
}

// frameRenderer forwards viewport frames to the client, skipping frames identical to the last one sent.
type frameRenderer struct {
	side string
	push func(msgType string, payload any)

	mu   sync.Mutex
	last viewport.Frame
	sent bool
}

func (r *frameRenderer) Render(f viewport.Frame) error {
	r.mu.Lock()
	cmp := f
	cmp.Seq = r.last.Seq
	if r.sent && cmp == r.last {
		r.mu.Unlock()
		return nil
	}
	r.last, r.sent = f, true
	r.mu.Unlock()

	r.push(streaming.TypeCameraFrame, cameraFrame{Side: r.side, Frame: f})
	return nil
}

func (r *frameRenderer) Close() error { return nil }
