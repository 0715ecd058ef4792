// Package viewport owns one panorama view: a camera inside a textured sphere,
// its orbit controls, a wheel field-of-view zoom and the per-frame render loop.
package viewport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdf360/planview/internal/camera"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDisposed is returned by operations on a disposed viewport
var ErrDisposed = errors.New("viewport disposed")

// ErrNoImage is returned when a viewport is created without a panorama source
var ErrNoImage = errors.New("viewport needs an image source")

// Size is a container size in CSS pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the container cannot be rendered into yet
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Frame is the camera state pushed to a render surface on every tick
type Frame struct {
	Seq        uint64      `json:"seq"`
	ImageSrc   string      `json:"imageSrc"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Position   r3.Vec      `json:"position"`
	Target     r3.Vec      `json:"target"`
	Direction  r3.Vec      `json:"direction"`
	FOV        float64     `json:"fov"`
	Aspect     float64     `json:"aspect"`
	Projection [16]float64 `json:"projection"`
	Radius     float64     `json:"sphereRadius"`
}

// Renderer is the render surface a viewport draws into.
// Render is called from the render loop goroutine only.
type Renderer interface {
	Render(f Frame) error
	Close() error
}

// Options configures a viewport
type Options struct {
	FOV           float64
	Near          float64
	Far           float64
	SphereRadius  float64
	FrameInterval time.Duration
	Orbit         camera.OrbitOptions
	Zoom          FovZoom
	Logger        *slog.Logger
}

// DefaultOptions returns the panorama viewer defaults
func DefaultOptions() Options {
	return Options{
		FOV:           75,
		Near:          0.1,
		Far:           1000,
		SphereRadius:  50,
		FrameInterval: time.Second / 60,
		Orbit:         camera.DefaultOrbitOptions(),
		Zoom:          DefaultFovZoom(),
	}
}

// Viewport is a live panorama view
type Viewport struct {
	imageSrc string
	opts     Options
	logger   *slog.Logger

	camera   *camera.Perspective
	controls *camera.OrbitControls
	renderer Renderer

	mu          sync.Mutex
	size        Size
	ready       bool
	seq         uint64
	disposed    bool
	detachWheel func()
	wheel       func(deltaY float64) bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a viewport for imageSrc inside a container and starts its render loop.
// A container without a height gets half its width, the 2:1 ratio of an equirectangular panorama.
// A zero-sized container is accepted; rendering starts with the first non-empty Resize.
func New(container Size, imageSrc string, r Renderer, opts Options) (*Viewport, error) {
	if imageSrc == "" {
		return nil, ErrNoImage
	}
	if r == nil {
		return nil, fmt.Errorf("viewport %q: nil renderer", imageSrc)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultOptions().FrameInterval
	}

	cam := camera.NewPerspective(opts.FOV, 1, opts.Near, opts.Far)
	cam.SetPosition(r3.Vec{Z: 0.1})

	v := &Viewport{
		imageSrc: imageSrc,
		opts:     opts,
		logger:   opts.Logger.With("image", imageSrc),
		camera:   cam,
		controls: camera.NewOrbitControls(cam, opts.Orbit),
		renderer: r,
		done:     make(chan struct{}),
	}
	v.detachWheel = v.attachWheel(opts.Zoom)
	v.Resize(container)

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	go v.loop(ctx)

	return v, nil
}

// Camera returns the viewport camera
func (v *Viewport) Camera() *camera.Perspective { return v.camera }

// Controls returns the viewport orbit controls
func (v *Viewport) Controls() *camera.OrbitControls { return v.controls }

// ImageSrc returns the panorama shown by this viewport
func (v *Viewport) ImageSrc() string { return v.imageSrc }

// Size returns the current container size
func (v *Viewport) Size() Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// Ready reports whether the viewport has a non-empty container and is rendering
func (v *Viewport) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Resize adapts the camera to a new container size. An empty size pauses rendering.
func (v *Viewport) Resize(container Size) {
	if container.Height <= 0 && container.Width > 0 {
		container.Height = container.Width / 2
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return
	}

	v.size = container
	if container.Empty() {
		v.ready = false
		return
	}

	v.camera.SetAspect(float64(container.Width) / float64(container.Height))
	v.camera.UpdateProjectionMatrix()
	v.ready = true
}

// Wheel applies a mouse-wheel tick to the field of view. It reports whether the FOV changed.
func (v *Viewport) Wheel(deltaY float64) (bool, error) {
	v.mu.Lock()
	wheel := v.wheel
	disposed := v.disposed
	v.mu.Unlock()

	if disposed {
		return false, ErrDisposed
	}
	if wheel == nil {
		return false, nil
	}
	return wheel(deltaY), nil
}

// Dispose stops the render loop, detaches input handlers and releases the renderer.
// It blocks until the loop has exited and is safe to call more than once.
func (v *Viewport) Dispose() error {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return nil
	}
	v.disposed = true
	v.ready = false
	detach := v.detachWheel
	v.mu.Unlock()

	detach()
	v.cancel()
	<-v.done

	return v.renderer.Close()
}

// Done is closed once the render loop has exited
func (v *Viewport) Done() <-chan struct{} {
	return v.done
}

// Snapshot captures the current frame without rendering it
func (v *Viewport) Snapshot() Frame {
	v.mu.Lock()
	size := v.size
	seq := v.seq
	v.mu.Unlock()

	return Frame{
		Seq:        seq,
		ImageSrc:   v.imageSrc,
		Width:      size.Width,
		Height:     size.Height,
		Position:   v.camera.Position(),
		Target:     v.controls.Target(),
		Direction:  v.camera.Direction(),
		FOV:        v.camera.FOV(),
		Aspect:     v.camera.Aspect(),
		Projection: v.camera.ProjectionMatrix(),
		Radius:     v.opts.SphereRadius,
	}
}

func (v *Viewport) attachWheel(z FovZoom) (detach func()) {
	v.mu.Lock()
	v.wheel = func(deltaY float64) bool {
		return z.Apply(v.camera, deltaY)
	}
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		v.wheel = nil
		v.mu.Unlock()
	}
}

func (v *Viewport) loop(ctx context.Context) {
	defer close(v.done)

	ticker := time.NewTicker(v.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.tick()
		}
	}
}

func (v *Viewport) tick() {
	v.controls.Update()

	v.mu.Lock()
	if !v.ready || v.disposed {
		v.mu.Unlock()
		return
	}
	v.seq++
	v.mu.Unlock()

	if err := v.renderer.Render(v.Snapshot()); err != nil {
		v.logger.Debug("Render failed", "error", err)
	}
}
