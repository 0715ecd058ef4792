// pkg/core/marker.go
package core

import "time"

// Marker is an annotation point placed on a plan.
// XPercent and YPercent are relative to the plan's rendered bounding box and stay in [0,1].
type Marker struct {
	ID       uint    `json:"id"`
	PlanID   uint    `json:"planId"`
	XPercent float64 `json:"xPercent"`
	YPercent float64 `json:"yPercent"`
	ImageURL string  `json:"imageUrl"`
	Title    string  `json:"title"`

	// Unsaved is set while a locally moved position has not been confirmed by the store.
	Unsaved bool `json:"unsaved,omitempty"`
}

// MarkerImage links a marker to one panorama file
type MarkerImage struct {
	ID        uint      `json:"id"`
	MarkerID  uint      `json:"markerId"`
	FileName  string    `json:"fileName"`
	URL       string    `json:"url"` // document-store path of the panorama
	CreatedAt time.Time `json:"createdAt"`
}

// DefaultMarkerPosition is where new markers are placed on a plan.
const DefaultMarkerPosition = 0.5
