package markers

import (
	"context"
	"fmt"

	"github.com/pdf360/planview/internal/drag"
	"github.com/pdf360/planview/internal/status"
)

var _ drag.Markers = (*Reporting)(nil)

// Reporting persists drag outcomes through a Service and turns each result into a status line.
type Reporting struct {
	Service *Service
	Status  *status.Reporter
}

func (r *Reporting) UpdateMarkerPosition(ctx context.Context, id uint, x, y float64) error {
	if err := r.Service.UpdateMarkerPosition(ctx, id, x, y); err != nil {
		r.Status.Error("Could not save the marker position", err)
		return err
	}
	r.Status.Success("Marker position saved")
	return nil
}

func (r *Reporting) DeleteMarker(ctx context.Context, id uint) error {
	if err := r.Service.DeleteMarker(ctx, id); err != nil {
		r.Status.Error("Could not delete the marker", err)
		return err
	}
	r.Status.Success(fmt.Sprintf("Marker %d deleted", id))
	return nil
}
