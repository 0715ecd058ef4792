// Package pointer fans global pointer events out to whoever currently holds a subscription.
package pointer

import (
	"sync"

	"github.com/pdf360/planview/internal/geo"
)

// Event is a pointer position in client (viewport) coordinates
type Event struct {
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
}

// Point returns the event position as a geo point
func (e Event) Point() geo.Point {
	return geo.Point{X: e.ClientX, Y: e.ClientY}
}

// Handler receives global pointer notifications
type Handler interface {
	PointerMove(Event)
	PointerUp(Event)
}

// Subscriber is the subscribe half of a Hub
type Subscriber interface {
	Subscribe(h Handler) (dispose func())
}

// Hub delivers window-level pointer events. Handlers are called outside the hub lock,
// so a handler may dispose its own subscription.
type Hub struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]Handler
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{handlers: make(map[uint64]Handler)}
}

// Subscribe registers h. The returned disposer is safe to call more than once.
func (h *Hub) Subscribe(handler Handler) (dispose func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.handlers[id] = handler

	return sync.OnceFunc(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handlers, id)
	})
}

// Len returns the number of live subscriptions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// Move broadcasts a pointer-move
func (h *Hub) Move(e Event) {
	for _, handler := range h.snapshot() {
		handler.PointerMove(e)
	}
}

// Up broadcasts a pointer-up
func (h *Hub) Up(e Event) {
	for _, handler := range h.snapshot() {
		handler.PointerUp(e)
	}
}

func (h *Hub) snapshot() []Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		out = append(out, handler)
	}
	return out
}
