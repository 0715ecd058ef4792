package plan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pdf360/planview/internal/geo"
)

// DefaultResizeDebounce is how long the surface waits for resizes to settle before re-rendering
const DefaultResizeDebounce = 150 * time.Millisecond

// ErrSuperseded is returned by a render that was replaced by a newer one
var ErrSuperseded = errors.New("render superseded")

// Surface is the drop surface a plan is drawn on. Its bounds are the rendered page's pixel size
// placed at the canvas origin in client coordinates.
type Surface struct {
	renderer PageRenderer
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	data    []byte
	origin  geo.Point
	page    *Page
	gen     uint64
	cancel  context.CancelFunc
	pending *time.Timer
	closed  bool

	// OnRender is called after each successful render
	OnRender func(Page)
}

// NewSurface creates an empty surface
func NewSurface(renderer PageRenderer, debounce time.Duration, logger *slog.Logger) *Surface {
	if debounce <= 0 {
		debounce = DefaultResizeDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{renderer: renderer, debounce: debounce, logger: logger}
}

// Load replaces the plan document and renders it at width
func (s *Surface) Load(ctx context.Context, data []byte, width int) (Page, error) {
	s.mu.Lock()
	s.data = data
	s.page = nil
	s.mu.Unlock()
	return s.Render(ctx, width)
}

// Render rasterizes the current document at width, cancelling any render still in flight
func (s *Surface) Render(ctx context.Context, width int) (Page, error) {
	if s.renderer == nil {
		return Page{}, ErrNoRenderer
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Page{}, context.Canceled
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	data := s.data
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	page, err := s.renderer.RenderPage(ctx, data, width)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return Page{}, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.mu.Unlock()
		return Page{}, err
	}
	s.page = &page
	onRender := s.OnRender
	s.mu.Unlock()

	if onRender != nil {
		onRender(page)
	}
	return page, nil
}

// Resize schedules a re-render at width once resizes stop arriving for the debounce period
func (s *Surface) Resize(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.debounce, func() {
		_, err := s.Render(context.Background(), width)
		if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
			s.logger.Error("Failed to re-render plan", "width", width, "error", err)
		}
	})
}

// SetOrigin records where the canvas sits in client coordinates
func (s *Surface) SetOrigin(p geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = p
}

// Bounds returns the drop surface rect. It is empty until a page has been rendered.
func (s *Surface) Bounds() geo.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return geo.Rect{Left: s.origin.X, Top: s.origin.Y}
	}
	return geo.Rect{
		Left:   s.origin.X,
		Top:    s.origin.Y,
		Width:  float64(s.page.WidthPx),
		Height: float64(s.page.HeightPx),
	}
}

// Page returns the last rendered page
func (s *Surface) Page() (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return Page{}, false
	}
	return *s.page, true
}

// MarkerPoint places fractional marker coordinates on the current bounds
func (s *Surface) MarkerPoint(x, y float64) geo.Point {
	return geo.FromPercent(s.Bounds(), x, y)
}

// Close cancels pending work. Later renders fail with context.Canceled.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
