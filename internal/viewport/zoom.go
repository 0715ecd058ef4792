package viewport

import (
	"math"

	"github.com/pdf360/planview/internal/camera"
	"github.com/pdf360/planview/internal/geo"
)

// FovZoom changes a camera's field of view in fixed steps per wheel tick
type FovZoom struct {
	MinFOV float64
	MaxFOV float64
	Step   float64
}

// DefaultFovZoom is 1.5° per tick between 30° and 90°
func DefaultFovZoom() FovZoom {
	return FovZoom{MinFOV: 30, MaxFOV: 90, Step: 1.5}
}

// Apply moves the FOV one step in the direction of deltaY (down widens, up narrows)
// and recomputes the projection. It reports whether the FOV changed.
func (z FovZoom) Apply(cam *camera.Perspective, deltaY float64) bool {
	dir := sign(deltaY)
	if dir == 0 {
		return false
	}

	fov := cam.FOV()
	next := geo.Clamp(fov+dir*z.Step, z.MinFOV, z.MaxFOV)
	if next == fov {
		return false
	}

	cam.SetFOV(next)
	cam.UpdateProjectionMatrix()
	return true
}

func sign(v float64) float64 {
	switch {
	case math.IsNaN(v), v == 0:
		return 0
	case v > 0:
		return 1
	default:
		return -1
	}
}
