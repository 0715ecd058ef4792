package streaming

import (
	"encoding/json"

	"github.com/pdf360/planview/pkg/core"
)

// Client to server message types.
const (
	TypeOpenPlan          = "open_plan"
	TypeResize            = "resize"
	TypeSurfaceOrigin     = "surface_origin"
	TypeDeleteZone        = "delete_zone"
	TypeMarkerPointerDown = "marker_pointer_down"
	TypePointerMove       = "pointer_move"
	TypePointerUp         = "pointer_up"
	TypeOpenMarker        = "open_marker"
	TypeToggleImage       = "toggle_image"
	TypeViewerOpen        = "viewer_open"
	TypeViewerGesture     = "viewer_gesture"
	TypeViewerResize      = "viewer_resize"
	TypeCompareClose      = "compare_close"
)

// Server to client message types.
const (
	TypeMarkers      = "markers"
	TypeDragEvent    = "drag_event"
	TypeStatus       = "status"
	TypePlanRendered = "plan_rendered"
	TypeMarkerDetail = "marker_detail"
	TypeSelection    = "selection"
	TypeCameraFrame  = "camera_frame"
	TypeAck          = "ack"
)

// Gesture kinds carried by viewer_gesture.
const (
	GestureStart  = "start"
	GestureRotate = "rotate"
	GesturePan    = "pan"
	GestureDolly  = "dolly"
	GestureEnd    = "end"
	GestureWheel  = "wheel"
)

// Viewer sides. A single viewer uses SideSingle.
const (
	SideSingle = "single"
	SideLeft   = "left"
	SideRight  = "right"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's answer to every client message.
type AckMessage struct {
	Type  string `json:"type"` // always "ack"
	For   string `json:"for"`  // the message type being acknowledged
	Error string `json:"error,omitempty"`
}

// Rect is a client-space rectangle.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OpenPlanPayload loads a plan into the session canvas.
type OpenPlanPayload struct {
	PlanID uint `json:"planId"`
	Width  int  `json:"width"`
}

// ResizePayload reports a new canvas width.
type ResizePayload struct {
	Width int `json:"width"`
}

// SurfaceOriginPayload reports where the canvas sits in client coordinates.
type SurfaceOriginPayload struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// DeleteZonePayload reports the delete target's rect. A nil rect removes the zone.
type DeleteZonePayload struct {
	Rect *Rect `json:"rect"`
}

// MarkerPointerDownPayload starts a drag.
type MarkerPointerDownPayload struct {
	MarkerID uint    `json:"markerId"`
	ClientX  float64 `json:"clientX"`
	ClientY  float64 `json:"clientY"`
}

// PointerPayload is a window-level pointer position.
type PointerPayload struct {
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
}

// OpenMarkerPayload asks for a marker's detail.
type OpenMarkerPayload struct {
	MarkerID uint `json:"markerId"`
}

// ToggleImagePayload adds or removes an image from the comparison selection.
type ToggleImagePayload struct {
	ImageID uint `json:"imageId"`
}

// ViewerOpenPayload opens the single viewer on one image.
type ViewerOpenPayload struct {
	ImageID uint `json:"imageId"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
}

// ViewerGesturePayload is one orbit-control gesture step.
type ViewerGesturePayload struct {
	Side  string  `json:"side"`
	Kind  string  `json:"kind"`
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	Delta float64 `json:"delta"`
}

// ViewerResizePayload reports a new viewer container size.
type ViewerResizePayload struct {
	Side   string `json:"side"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MarkersPayload is the full marker list of the open plan.
type MarkersPayload struct {
	PlanID  uint          `json:"planId"`
	Markers []core.Marker `json:"markers"`
}

// PlanRenderedPayload announces a new drop-surface size and where the markers now sit on it.
type PlanRenderedPayload struct {
	PlanID    uint             `json:"planId"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Positions []MarkerPosition `json:"positions"`
}

// MarkerPosition is a marker projected onto the drop surface, in client coordinates.
type MarkerPosition struct {
	MarkerID uint    `json:"markerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// MarkerDetailPayload is a marker with its panoramas.
type MarkerDetailPayload struct {
	Marker core.Marker        `json:"marker"`
	Images []core.MarkerImage `json:"images"`
}

// SelectionPayload is the comparison selection in toggle order.
type SelectionPayload struct {
	ImageIDs  []uint `json:"imageIds"`
	Comparing bool   `json:"comparing"`
}

// Marshal builds an envelope for payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
