package camera

import (
	"math"
	"sync"

	"github.com/pdf360/planview/internal/geo"
	"gonum.org/v1/gonum/spatial/r3"
)

// EventType identifies an orbit-controls notification
type EventType string

const (
	// EventStart fires when a user interaction begins
	EventStart EventType = "start"
	// EventChange fires whenever Update moves the camera
	EventChange EventType = "change"
	// EventEnd fires when a user interaction ends
	EventEnd EventType = "end"
)

// changeEPS is the squared-distance / direction threshold below which Update reports no movement.
const changeEPS = 1e-6

// Listener receives controls notifications. It is called without any controls lock held.
type Listener func(EventType)

// OrbitOptions tunes the orbit controls
type OrbitOptions struct {
	RotateSpeed   float64
	ZoomSpeed     float64
	EnableZoom    bool
	EnablePan     bool
	EnableDamping bool
	DampingFactor float64
	MinDistance   float64
	MaxDistance   float64
	MinPolarAngle float64
	MaxPolarAngle float64
}

// DefaultOrbitOptions matches the panorama viewer setup
func DefaultOrbitOptions() OrbitOptions {
	return OrbitOptions{
		RotateSpeed:   0.5,
		ZoomSpeed:     0.6,
		EnableZoom:    true,
		EnablePan:     false,
		DampingFactor: 0.05,
		MinDistance:   0,
		MaxDistance:   math.Inf(1),
		MinPolarAngle: 0,
		MaxPolarAngle: math.Pi,
	}
}

// OrbitControls rotates a camera around a target point on a sphere.
// User gestures accumulate deltas that Update applies; Update reports "change" when the camera moved.
type OrbitControls struct {
	mu sync.Mutex

	camera *Perspective
	opts   OrbitOptions

	target         r3.Vec
	sphericalDelta geo.Spherical
	panOffset      r3.Vec
	scale          float64
	zoomChanged    bool

	lastPosition  r3.Vec
	lastDirection r3.Vec

	nextID    uint64
	listeners map[EventType]map[uint64]Listener
}

// NewOrbitControls attaches controls to a camera orbiting the origin
func NewOrbitControls(cam *Perspective, opts OrbitOptions) *OrbitControls {
	c := &OrbitControls{
		camera:    cam,
		opts:      opts,
		scale:     1,
		listeners: make(map[EventType]map[uint64]Listener),
	}
	c.lastPosition = cam.Position()
	c.lastDirection = cam.Direction()
	return c
}

// Camera returns the controlled camera
func (c *OrbitControls) Camera() *Perspective {
	return c.camera
}

// Target returns the orbit pivot
func (c *OrbitControls) Target() r3.Vec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget moves the orbit pivot. The camera is not touched until Update.
func (c *OrbitControls) SetTarget(t r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
}

// On registers a listener and returns its disposer
func (c *OrbitControls) On(kind EventType, l Listener) (dispose func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.listeners[kind] == nil {
		c.listeners[kind] = make(map[uint64]Listener)
	}
	c.listeners[kind][id] = l

	return sync.OnceFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[kind], id)
	})
}

// ListenerCount returns the number of registered listeners of a kind
func (c *OrbitControls) ListenerCount(kind EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[kind])
}

// Begin marks the start of a user interaction
func (c *OrbitControls) Begin() {
	c.emit(EventStart)
}

// End marks the end of a user interaction
func (c *OrbitControls) End() {
	c.emit(EventEnd)
}

// Rotate applies a pointer drag of (dx, dy) pixels over an element clientHeight pixels tall, then updates.
func (c *OrbitControls) Rotate(dx, dy, clientHeight float64) {
	if clientHeight <= 0 {
		return
	}
	c.mu.Lock()
	c.sphericalDelta.Theta -= 2 * math.Pi * dx / clientHeight * c.opts.RotateSpeed
	c.sphericalDelta.Phi -= 2 * math.Pi * dy / clientHeight * c.opts.RotateSpeed
	c.mu.Unlock()

	c.Update()
}

// Dolly moves the camera towards (deltaY < 0) or away from (deltaY > 0) the target, then updates.
func (c *OrbitControls) Dolly(deltaY float64) {
	c.mu.Lock()
	if !c.opts.EnableZoom || deltaY == 0 {
		c.mu.Unlock()
		return
	}
	zoomScale := math.Pow(0.95, c.opts.ZoomSpeed*math.Abs(deltaY*0.01))
	if deltaY < 0 {
		c.scale *= zoomScale
	} else {
		c.scale /= zoomScale
	}
	c.zoomChanged = true
	c.mu.Unlock()

	c.Update()
}

// Pan shifts the target in the camera plane. No-op unless panning is enabled.
func (c *OrbitControls) Pan(offset r3.Vec) {
	c.mu.Lock()
	if !c.opts.EnablePan {
		c.mu.Unlock()
		return
	}
	c.panOffset = r3.Add(c.panOffset, offset)
	c.mu.Unlock()

	c.Update()
}

// Update re-derives the controls state from the camera, applies pending deltas,
// repositions the camera and fires "change" if it moved. It reports whether the camera moved.
func (c *OrbitControls) Update() bool {
	c.mu.Lock()

	position := c.camera.Position()
	offset := r3.Sub(position, c.target)
	spherical := geo.SphericalFromVec(offset)

	if c.opts.EnableDamping {
		spherical.Theta += c.sphericalDelta.Theta * c.opts.DampingFactor
		spherical.Phi += c.sphericalDelta.Phi * c.opts.DampingFactor
	} else {
		spherical.Theta += c.sphericalDelta.Theta
		spherical.Phi += c.sphericalDelta.Phi
	}

	spherical.Phi = geo.Clamp(spherical.Phi, c.opts.MinPolarAngle, c.opts.MaxPolarAngle)
	spherical = spherical.MakeSafe()
	spherical.Radius = geo.Clamp(spherical.Radius*c.scale, c.opts.MinDistance, c.opts.MaxDistance)

	if c.opts.EnableDamping {
		c.target = r3.Add(c.target, r3.Scale(c.opts.DampingFactor, c.panOffset))
	} else {
		c.target = r3.Add(c.target, c.panOffset)
	}

	position = r3.Add(c.target, spherical.Vec())
	c.camera.SetPosition(position)
	c.camera.LookAt(c.target)
	direction := c.camera.Direction()

	if c.opts.EnableDamping {
		c.sphericalDelta.Theta *= 1 - c.opts.DampingFactor
		c.sphericalDelta.Phi *= 1 - c.opts.DampingFactor
		c.panOffset = r3.Scale(1-c.opts.DampingFactor, c.panOffset)
	} else {
		c.sphericalDelta = geo.Spherical{}
		c.panOffset = r3.Vec{}
	}
	c.scale = 1

	moved := c.zoomChanged ||
		r3.Norm2(r3.Sub(c.lastPosition, position)) > changeEPS ||
		8*(1-r3.Dot(c.lastDirection, direction)) > changeEPS
	if moved {
		c.lastPosition = position
		c.lastDirection = direction
		c.zoomChanged = false
	}
	c.mu.Unlock()

	if moved {
		c.emit(EventChange)
	}
	return moved
}

func (c *OrbitControls) emit(kind EventType) {
	c.mu.Lock()
	ls := make([]Listener, 0, len(c.listeners[kind]))
	for _, l := range c.listeners[kind] {
		ls = append(ls, l)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(kind)
	}
}
