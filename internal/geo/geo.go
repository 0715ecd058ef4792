package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// PLANE GEOMETRY
// Client coordinates are CSS pixels with the origin at the top-left of the viewport and Y growing downwards.
// Marker positions are stored as fractions of the plan's rendered bounding box so they survive resizes.

// ErrEmptyRect is returned when a rectangle has no area to project into
var ErrEmptyRect = errors.New("rectangle has zero width or height")

// Point is a position in client coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in client coordinates, shaped like a DOM bounding client rect
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0)
}

// Envelope returns the rectangle as a simplefeatures envelope. Non-finite edges are an error.
func (r Rect) Envelope() (geom.Envelope, error) {
	return geom.NewEnvelope([]geom.XY{
		{X: r.Left, Y: r.Top},
		{X: r.Right(), Y: r.Bottom()},
	})
}

// Contains reports whether p lies inside r, edges included.
// An empty rect or one with non-finite edges contains nothing.
func (r Rect) Contains(p Point) bool {
	if r.Empty() {
		return false
	}
	env, err := r.Envelope()
	if err != nil {
		return false
	}
	return env.Contains(geom.XY{X: p.X, Y: p.Y})
}

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PercentIn converts a client point into fractions of r, clamped to [0,1] on both axes.
// An empty rect yields ErrEmptyRect and (0, 0).
func PercentIn(r Rect, p Point) (x, y float64, err error) {
	if r.Empty() {
		return 0, 0, ErrEmptyRect
	}
	x = Clamp((p.X-r.Left)/r.Width, 0, 1)
	y = Clamp((p.Y-r.Top)/r.Height, 0, 1)
	return x, y, nil
}

// FromPercent projects fractional coordinates back onto r
func FromPercent(r Rect, x, y float64) Point {
	return Point{
		X: r.Left + Clamp(x, 0, 1)*r.Width,
		Y: r.Top + Clamp(y, 0, 1)*r.Height,
	}
}
