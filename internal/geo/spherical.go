package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SphericalEPS keeps the polar angle away from the poles, where the azimuth is undefined.
const SphericalEPS = 1e-6

// Spherical is an offset expressed as radius, polar angle from +Y (Phi) and azimuth around Y from +Z (Theta).
type Spherical struct {
	Radius float64
	Phi    float64
	Theta  float64
}

// SphericalFromVec converts a cartesian offset to spherical coordinates.
// The zero vector maps to the zero Spherical.
func SphericalFromVec(v r3.Vec) Spherical {
	radius := r3.Norm(v)
	if radius == 0 {
		return Spherical{}
	}
	return Spherical{
		Radius: radius,
		Theta:  math.Atan2(v.X, v.Z),
		Phi:    math.Acos(Clamp(v.Y/radius, -1, 1)),
	}
}

// Vec converts back to a cartesian offset
func (s Spherical) Vec() r3.Vec {
	sinPhiRadius := math.Sin(s.Phi) * s.Radius
	return r3.Vec{
		X: sinPhiRadius * math.Sin(s.Theta),
		Y: math.Cos(s.Phi) * s.Radius,
		Z: sinPhiRadius * math.Cos(s.Theta),
	}
}

// MakeSafe restricts Phi to (0, π)
func (s Spherical) MakeSafe() Spherical {
	s.Phi = Clamp(s.Phi, SphericalEPS, math.Pi-SphericalEPS)
	return s
}

// WithRadius returns a copy of s at a different radius
func (s Spherical) WithRadius(radius float64) Spherical {
	s.Radius = radius
	return s
}
