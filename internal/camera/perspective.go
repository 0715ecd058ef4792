// Package camera models the perspective camera and orbit controls of a panorama viewport.
package camera

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Perspective is a pinhole camera looking from Position along its view direction.
// It is safe for concurrent use.
type Perspective struct {
	mu sync.RWMutex

	position  r3.Vec
	direction r3.Vec
	up        r3.Vec

	fov    float64 // vertical, degrees
	aspect float64
	near   float64
	far    float64

	projection *mat.Dense
}

// NewPerspective creates a camera at the origin looking down -Z
func NewPerspective(fov, aspect, near, far float64) *Perspective {
	c := &Perspective{
		direction: r3.Vec{Z: -1},
		up:        r3.Vec{Y: 1},
		fov:       fov,
		aspect:    aspect,
		near:      near,
		far:       far,
	}
	c.updateProjectionLocked()
	return c
}

// Position returns the camera position
func (c *Perspective) Position() r3.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// SetPosition moves the camera without changing its view direction
func (c *Perspective) SetPosition(p r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
}

// Direction returns the unit view direction
func (c *Perspective) Direction() r3.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.direction
}

// Up returns the camera's up vector
func (c *Perspective) Up() r3.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.up
}

// LookAt turns the camera towards target. A target at the camera position is ignored.
func (c *Perspective) LookAt(target r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := r3.Sub(target, c.position)
	if r3.Norm(d) == 0 {
		return
	}
	c.direction = r3.Unit(d)
}

// FOV returns the vertical field of view in degrees
func (c *Perspective) FOV() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fov
}

// SetFOV changes the field of view. Call UpdateProjectionMatrix afterwards.
func (c *Perspective) SetFOV(fov float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

// Aspect returns the width/height ratio
func (c *Perspective) Aspect() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aspect
}

// SetAspect changes the aspect ratio. Call UpdateProjectionMatrix afterwards.
func (c *Perspective) SetAspect(aspect float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

// Near returns the near clipping distance
func (c *Perspective) Near() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.near
}

// Far returns the far clipping distance
func (c *Perspective) Far() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.far
}

// UpdateProjectionMatrix recomputes the projection from fov, aspect, near and far
func (c *Perspective) UpdateProjectionMatrix() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateProjectionLocked()
}

// ProjectionMatrix returns a copy of the 4x4 projection matrix in row-major order
func (c *Perspective) ProjectionMatrix() [16]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = c.projection.At(i, j)
		}
	}
	return out
}

// Project maps a world point to normalized device coordinates.
// ok is false for points behind the camera.
func (c *Perspective) Project(p r3.Vec) (ndc r3.Vec, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := c.viewLocked()
	clip := mat.NewVecDense(4, nil)
	clip.MulVec(c.projection, mat.NewVecDense(4, []float64{
		r3.Dot(r3.Sub(p, c.position), view[0]),
		r3.Dot(r3.Sub(p, c.position), view[1]),
		r3.Dot(r3.Sub(p, c.position), view[2]),
		1,
	}))

	w := clip.AtVec(3)
	if w <= 0 {
		return r3.Vec{}, false
	}
	return r3.Vec{X: clip.AtVec(0) / w, Y: clip.AtVec(1) / w, Z: clip.AtVec(2) / w}, true
}

// viewLocked returns the camera basis: right, up and backward axes.
func (c *Perspective) viewLocked() [3]r3.Vec {
	back := r3.Scale(-1, c.direction)
	right := r3.Cross(c.up, back)
	if r3.Norm(right) == 0 {
		// looking straight along up; pick any perpendicular axis
		right = r3.Vec{X: 1}
	}
	right = r3.Unit(right)
	up := r3.Cross(back, right)
	return [3]r3.Vec{right, up, back}
}

func (c *Perspective) updateProjectionLocked() {
	top := c.near * math.Tan(c.fov*math.Pi/360)
	height := 2 * top
	width := c.aspect * height
	left := -width / 2
	bottom := top - height

	x := 2 * c.near / width
	y := 2 * c.near / height
	a := (2*left + width) / width
	b := (top + bottom) / height
	cc := -(c.far + c.near) / (c.far - c.near)
	d := -2 * c.far * c.near / (c.far - c.near)

	c.projection = mat.NewDense(4, 4, []float64{
		x, 0, a, 0,
		0, y, b, 0,
		0, 0, cc, d,
		0, 0, -1, 0,
	})
}
