// Package drag turns pointer gestures over a plan into marker moves, long-press deletes and clicks.
package drag

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pdf360/planview/internal/board"
	"github.com/pdf360/planview/internal/geo"
	"github.com/pdf360/planview/internal/pointer"
)

// DefaultLongPress is how long a marker must be held before the delete zone arms
const DefaultLongPress = 600 * time.Millisecond

// ErrUnknownMarker is returned by BeginDrag for a marker that is not on the board
var ErrUnknownMarker = errors.New("marker is not on the board")

// Markers persists marker changes. Implementations report failures to the user themselves.
type Markers interface {
	UpdateMarkerPosition(ctx context.Context, id uint, x, y float64) error
	DeleteMarker(ctx context.Context, id uint) error
}

// Timer is a pending one-shot callback
type Timer interface {
	Stop() bool
}

// Clock schedules the long-press timer
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Outcome is how a drag session ended
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeDelete
	OutcomeCommit
	OutcomeClick
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelete:
		return "delete"
	case OutcomeCommit:
		return "commit"
	case OutcomeClick:
		return "click"
	default:
		return "none"
	}
}

// EventKind names a drag notification for the UI
type EventKind string

const (
	EventDragStarted     EventKind = "drag_started"
	EventDeleteZoneArmed EventKind = "delete_zone_armed"
	EventDeleteZoneHover EventKind = "delete_zone_hover"
	EventDragEnded       EventKind = "drag_ended"
)

// Event describes a change in drag state
type Event struct {
	Kind     EventKind `json:"kind"`
	MarkerID uint      `json:"markerId"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Over     bool      `json:"over,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
}

// Config wires a Controller to its surroundings
type Config struct {
	// Surface returns the drop surface's current bounding rect in client coordinates
	Surface func() geo.Rect
	// DeleteZone returns the delete target's current bounding rect. Nil means there is no zone.
	DeleteZone func() geo.Rect
	Pointer    pointer.Subscriber

	Snapshot func() board.Snapshot
	Dispatch func(board.Action) bool

	Markers    Markers
	OpenDetail func(markerID uint)
	Events     func(Event)

	Clock     Clock
	LongPress time.Duration
	// Go runs persistence calls. Defaults to a new goroutine per call.
	Go     func(func())
	Logger *slog.Logger
}

type session struct {
	id       uint64
	markerID uint
	bounds   geo.Rect

	x, y     float64
	hasMoved bool
	armed    bool
	over     bool

	timer   Timer
	release func()
}

// Controller runs at most one drag session at a time
type Controller struct {
	cfg Config

	mu      sync.Mutex
	seq     uint64
	session *session
}

// NewController applies defaults to cfg and returns a controller
func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.LongPress <= 0 {
		cfg.LongPress = DefaultLongPress
	}
	if cfg.Go == nil {
		cfg.Go = func(f func()) { go f() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(board.Action) bool { return false }
	}
	return &Controller{cfg: cfg}
}

// BeginDrag starts a session for markerID. The drop surface bounds are captured now and used
// for the whole gesture. An orphaned session is discarded first.
func (c *Controller) BeginDrag(_ pointer.Event, markerID uint) error {
	x, y := 0.0, 0.0
	if c.cfg.Snapshot != nil {
		m, ok := c.cfg.Snapshot().Find(markerID)
		if !ok {
			return ErrUnknownMarker
		}
		x, y = m.XPercent, m.YPercent
	}

	c.mu.Lock()
	if old := c.session; old != nil {
		c.session = nil
		old.timer.Stop()
		old.release()
		c.cfg.Logger.Warn("Discarding orphaned drag session", "marker", old.markerID)
	}

	c.seq++
	s := &session{
		id:       c.seq,
		markerID: markerID,
		bounds:   c.cfg.Surface(),
		x:        x,
		y:        y,
	}
	id := s.id
	s.timer = c.cfg.Clock.AfterFunc(c.cfg.LongPress, func() { c.arm(id) })
	s.release = c.cfg.Pointer.Subscribe(c)
	c.session = s
	c.mu.Unlock()

	c.emit(Event{Kind: EventDragStarted, MarkerID: markerID, X: x, Y: y})
	return nil
}

// PointerMove tracks the dragged marker. Positions are clamped to the captured bounds.
func (c *Controller) PointerMove(e pointer.Event) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return
	}

	if !s.hasMoved {
		s.timer.Stop()
		s.hasMoved = true
	}

	x, y, err := geo.PercentIn(s.bounds, e.Point())
	moved := err == nil
	if moved {
		s.x, s.y = x, y
	}

	hoverChanged := false
	if s.armed {
		over := c.cfg.DeleteZone != nil && c.cfg.DeleteZone().Contains(e.Point())
		hoverChanged = over != s.over
		s.over = over
	}
	markerID, over := s.markerID, s.over
	c.mu.Unlock()

	if moved {
		c.cfg.Dispatch(board.Move{ID: markerID, X: x, Y: y})
	}
	if hoverChanged {
		c.emit(Event{Kind: EventDeleteZoneHover, MarkerID: markerID, X: x, Y: y, Over: over})
	}
}

// PointerUp ends the session
func (c *Controller) PointerUp(pointer.Event) {
	c.Finish()
}

// Finish ends the session and acts on it: delete beats commit beats click.
// Without an active session it does nothing.
func (c *Controller) Finish() Outcome {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return OutcomeNone
	}
	c.session = nil
	s.timer.Stop()
	c.mu.Unlock()

	s.release()

	var outcome Outcome
	switch {
	case s.over:
		outcome = OutcomeDelete
		c.remove(s.markerID)
	case s.hasMoved:
		outcome = OutcomeCommit
		c.commit(s.markerID, s.x, s.y)
	default:
		outcome = OutcomeClick
		if c.cfg.OpenDetail != nil {
			c.cfg.OpenDetail(s.markerID)
		}
	}

	c.emit(Event{Kind: EventDragEnded, MarkerID: s.markerID, X: s.x, Y: s.y, Outcome: outcome.String()})
	return outcome
}

// Active returns the dragged marker, if any
func (c *Controller) Active() (markerID uint, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, false
	}
	return c.session.markerID, true
}

// Close abandons any session without acting on it
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s != nil {
		s.timer.Stop()
		s.release()
	}
}

// arm runs on the timer goroutine. A timer from a finished session, or one that lost
// the race with the first move, does nothing.
func (c *Controller) arm(id uint64) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.id != id || s.hasMoved || s.armed {
		c.mu.Unlock()
		return
	}
	s.armed = true
	ev := Event{Kind: EventDeleteZoneArmed, MarkerID: s.markerID, X: s.x, Y: s.y}
	c.mu.Unlock()

	c.emit(ev)
}

func (c *Controller) commit(id uint, x, y float64) {
	c.cfg.Go(func() {
		if err := c.cfg.Markers.UpdateMarkerPosition(context.Background(), id, x, y); err != nil {
			c.cfg.Logger.Warn("Marker position not saved", "marker", id, "error", err)
			return
		}
		c.cfg.Dispatch(board.Saved{ID: id, X: x, Y: y})
	})
}

func (c *Controller) remove(id uint) {
	c.cfg.Go(func() {
		if err := c.cfg.Markers.DeleteMarker(context.Background(), id); err != nil {
			c.cfg.Logger.Warn("Marker not deleted", "marker", id, "error", err)
			return
		}
		c.cfg.Dispatch(board.Remove{ID: id})
	})
}

func (c *Controller) emit(e Event) {
	if c.cfg.Events != nil {
		c.cfg.Events(e)
	}
}
