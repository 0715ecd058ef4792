package session

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdf360/planview/internal/catalog"
	"github.com/pdf360/planview/internal/config"
	"github.com/pdf360/planview/internal/files"
	"github.com/pdf360/planview/internal/markers"
	"github.com/pdf360/planview/internal/status"
	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/internal/storage/memory"
	"github.com/pdf360/planview/pkg/core"
	"github.com/pdf360/planview/pkg/streaming"
)

const readTimeout = 5 * time.Second

type harness struct {
	store   *memory.Backend
	markers *markers.Service
	srv     *Server
	http    *httptest.Server

	plan   core.Plan
	marker core.Marker
	images []core.MarkerImage
}

// newHarness seeds a 200x100 plan with one marker carrying two panoramas
func newHarness(t *testing.T, interaction config.InteractionConfig) *harness {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	fs := files.New(afero.NewMemMapFs(), "/docs")
	cat := catalog.New(catalog.Dependencies{Store: store, Files: fs})
	svc := markers.New(markers.Dependencies{Store: store, Files: fs})

	project, err := cat.CreateProject(ctx, "Site A", "")
	require.NoError(t, err)
	plan, err := cat.AddPlan(ctx, project.ID, "Ground", "", catalog.Document{
		FileName: "ground.png",
		Content:  bytes.NewReader(planPNG(t, 200, 100)),
	})
	require.NoError(t, err)
	m, err := svc.AddMarker(ctx, plan.ID, "", markers.Upload{FileName: "a.jpg", Content: strings.NewReader("a")})
	require.NoError(t, err)
	_, err = svc.AddMarkerImage(ctx, m.ID, markers.Upload{FileName: "b.jpg", Content: strings.NewReader("b")})
	require.NoError(t, err)
	images, err := svc.ListMarkerImages(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)

	srv := NewServer(Dependencies{
		Catalog:     cat,
		Markers:     svc,
		Interaction: interaction,
		Viewer:      config.ViewerConfig{FrameInterval: 5 * time.Millisecond},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		hs.Close()
	})

	return &harness{store: store, markers: svc, srv: srv, http: hs, plan: plan, marker: m, images: images}
}

func planPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// frame is any server message: acks carry For and Error, everything else a payload
type frame struct {
	Type    string          `json:"type"`
	For     string          `json:"for"`
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	t    *testing.T
	conn *ws.Conn
}

func (h *harness) dial(t *testing.T) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(msgType string, payload any) {
	c.t.Helper()
	data, err := streaming.Marshal(msgType, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(ws.TextMessage, data))
}

func (c *client) read() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	return f
}

// until reads up to and including the ack for msgType and returns everything received
func (c *client) until(msgType string) (ack frame, received []frame) {
	c.t.Helper()
	for {
		f := c.read()
		if f.Type == streaming.TypeAck && f.For == msgType {
			return f, received
		}
		received = append(received, f)
	}
}

// call sends a command and requires a successful ack
func (c *client) call(msgType string, payload any) []frame {
	c.t.Helper()
	c.send(msgType, payload)
	ack, received := c.until(msgType)
	require.Empty(c.t, ack.Error, msgType)
	return received
}

// next reads until a message of msgType matching ok arrives
func (c *client) next(msgType string, ok func(json.RawMessage) bool) json.RawMessage {
	c.t.Helper()
	for {
		f := c.read()
		if f.Type == msgType && (ok == nil || ok(f.Payload)) {
			return f.Payload
		}
	}
}

func find(frames []frame, msgType string) (json.RawMessage, bool) {
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == msgType {
			return frames[i].Payload, true
		}
	}
	return nil, false
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func statusText(text string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var m status.Message
		return json.Unmarshal(raw, &m) == nil && m.Text == text
	}
}

func dragEnded(raw json.RawMessage) bool {
	var e struct {
		Kind string `json:"kind"`
	}
	return json.Unmarshal(raw, &e) == nil && e.Kind == "drag_ended"
}

func (c *client) openPlan(h *harness, width int) []frame {
	c.t.Helper()
	c.call(streaming.TypeSurfaceOrigin, streaming.SurfaceOriginPayload{})
	return c.call(streaming.TypeOpenPlan, streaming.OpenPlanPayload{PlanID: h.plan.ID, Width: width})
}

func TestOpenPlan_PushesMarkersAndSurface(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)

	received := c.openPlan(h, 400)

	raw, ok := find(received, streaming.TypeMarkers)
	require.True(t, ok)
	list := decode[streaming.MarkersPayload](t, raw)
	assert.Equal(t, h.plan.ID, list.PlanID)
	require.Len(t, list.Markers, 1)
	assert.Equal(t, 0.5, list.Markers[0].XPercent)
	assert.Equal(t, h.images[0].URL, list.Markers[0].ImageURL)

	raw, ok = find(received, streaming.TypePlanRendered)
	require.True(t, ok)
	rendered := decode[streaming.PlanRenderedPayload](t, raw)
	assert.Equal(t, streaming.PlanRenderedPayload{
		PlanID:    h.plan.ID,
		Width:     400,
		Height:    200,
		Positions: []streaming.MarkerPosition{{MarkerID: h.marker.ID, X: 200, Y: 100}},
	}, rendered)

	raw, ok = find(received, streaming.TypeStatus)
	require.True(t, ok)
	assert.Equal(t, `Plan "Ground" opened`, decode[status.Message](t, raw).Text)
}

func TestResize_ReprojectsMarkers(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)
	c.openPlan(h, 400)

	c.call(streaming.TypeSurfaceOrigin, streaming.SurfaceOriginPayload{Left: 10, Top: 20})
	received := c.call(streaming.TypeResize, streaming.ResizePayload{Width: 1000})

	isWide := func(raw json.RawMessage) bool {
		var p streaming.PlanRenderedPayload
		return json.Unmarshal(raw, &p) == nil && p.Width == 1000
	}
	raw, ok := find(received, streaming.TypePlanRendered)
	if !ok || !isWide(raw) {
		raw = c.next(streaming.TypePlanRendered, isWide)
	}

	rendered := decode[streaming.PlanRenderedPayload](t, raw)
	assert.Equal(t, 500, rendered.Height)
	assert.Equal(t, []streaming.MarkerPosition{{MarkerID: h.marker.ID, X: 510, Y: 270}}, rendered.Positions)
}

func TestDrag_CommitsPosition(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)
	c.openPlan(h, 1000) // 1000x500 surface

	c.call(streaming.TypeMarkerPointerDown, streaming.MarkerPointerDownPayload{MarkerID: h.marker.ID, ClientX: 500, ClientY: 250})
	c.send(streaming.TypePointerMove, streaming.PointerPayload{ClientX: 100, ClientY: 400})
	received := c.call(streaming.TypePointerUp, streaming.PointerPayload{ClientX: 100, ClientY: 400})

	var outcome string
	for _, f := range received {
		if f.Type == streaming.TypeDragEvent && dragEnded(f.Payload) {
			outcome = decode[struct {
				Outcome string `json:"outcome"`
			}](t, f.Payload).Outcome
		}
	}
	assert.Equal(t, "commit", outcome)

	c.next(streaming.TypeStatus, statusText("Marker position saved"))

	m, err := h.store.GetMarker(context.Background(), h.marker.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, m.XPercent, 1e-9)
	assert.InDelta(t, 0.8, m.YPercent, 1e-9)
}

func TestDrag_LongPressDeletes(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: 20 * time.Millisecond})
	c := h.dial(t)
	c.openPlan(h, 1000)
	c.call(streaming.TypeDeleteZone, streaming.DeleteZonePayload{Rect: &streaming.Rect{Left: 0, Top: 0, Width: 50, Height: 50}})

	c.call(streaming.TypeMarkerPointerDown, streaming.MarkerPointerDownPayload{MarkerID: h.marker.ID, ClientX: 500, ClientY: 250})
	c.next(streaming.TypeDragEvent, func(raw json.RawMessage) bool {
		var e struct {
			Kind string `json:"kind"`
		}
		return json.Unmarshal(raw, &e) == nil && e.Kind == "delete_zone_armed"
	})

	c.send(streaming.TypePointerMove, streaming.PointerPayload{ClientX: 10, ClientY: 10})
	c.call(streaming.TypePointerUp, streaming.PointerPayload{ClientX: 10, ClientY: 10})

	c.next(streaming.TypeMarkers, func(raw json.RawMessage) bool {
		var p streaming.MarkersPayload
		return json.Unmarshal(raw, &p) == nil && len(p.Markers) == 0
	})

	_, err := h.store.GetMarker(context.Background(), h.marker.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClick_OpensMarkerDetail(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)
	c.openPlan(h, 1000)

	c.call(streaming.TypeMarkerPointerDown, streaming.MarkerPointerDownPayload{MarkerID: h.marker.ID, ClientX: 500, ClientY: 250})
	received := c.call(streaming.TypePointerUp, streaming.PointerPayload{ClientX: 500, ClientY: 250})

	raw, ok := find(received, streaming.TypeMarkerDetail)
	require.True(t, ok)
	detail := decode[streaming.MarkerDetailPayload](t, raw)
	assert.Equal(t, h.marker.ID, detail.Marker.ID)
	assert.Len(t, detail.Images, 2)

	raw, ok = find(received, streaming.TypeSelection)
	require.True(t, ok)
	assert.Empty(t, decode[streaming.SelectionPayload](t, raw).ImageIDs)

	m, err := h.store.GetMarker(context.Background(), h.marker.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.XPercent)
}

type cameraFramePayload struct {
	Side      string  `json:"side"`
	FOV       float64 `json:"fov"`
	Direction struct {
		X, Y, Z float64
	} `json:"direction"`
}

func cameraOn(side string, ok func(cameraFramePayload) bool) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var f cameraFramePayload
		if json.Unmarshal(raw, &f) != nil || f.Side != side {
			return false
		}
		return ok == nil || ok(f)
	}
}

func TestCompare_FollowerMirrorsLeader(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)
	c.openPlan(h, 1000)
	c.call(streaming.TypeOpenMarker, streaming.OpenMarkerPayload{MarkerID: h.marker.ID})

	received := c.call(streaming.TypeToggleImage, streaming.ToggleImagePayload{ImageID: h.images[0].ID})
	raw, ok := find(received, streaming.TypeSelection)
	require.True(t, ok)
	assert.False(t, decode[streaming.SelectionPayload](t, raw).Comparing)

	received = c.call(streaming.TypeToggleImage, streaming.ToggleImagePayload{ImageID: h.images[1].ID})
	raw, ok = find(received, streaming.TypeSelection)
	require.True(t, ok)
	sel := decode[streaming.SelectionPayload](t, raw)
	assert.True(t, sel.Comparing)
	assert.Equal(t, []uint{h.images[0].ID, h.images[1].ID}, sel.ImageIDs)

	c.call(streaming.TypeViewerResize, streaming.ViewerResizePayload{Side: streaming.SideLeft, Width: 400, Height: 200})
	c.call(streaming.TypeViewerResize, streaming.ViewerResizePayload{Side: streaming.SideRight, Width: 400, Height: 200})
	first := decode[cameraFramePayload](t, c.next(streaming.TypeCameraFrame, cameraOn(streaming.SideRight, nil)))

	c.send(streaming.TypeViewerGesture, streaming.ViewerGesturePayload{Side: streaming.SideLeft, Kind: streaming.GestureStart})
	c.send(streaming.TypeViewerGesture, streaming.ViewerGesturePayload{Side: streaming.SideLeft, Kind: streaming.GestureRotate, DX: 40, DY: 10})
	c.send(streaming.TypeViewerGesture, streaming.ViewerGesturePayload{Side: streaming.SideLeft, Kind: streaming.GestureEnd})

	c.next(streaming.TypeCameraFrame, cameraOn(streaming.SideRight, func(f cameraFramePayload) bool {
		return f.Direction != first.Direction
	}))

	received = c.call(streaming.TypeCompareClose, nil)
	raw, ok = find(received, streaming.TypeSelection)
	require.True(t, ok)
	sel = decode[streaming.SelectionPayload](t, raw)
	assert.False(t, sel.Comparing)
	assert.Empty(t, sel.ImageIDs)
}

func TestSingleViewer_WheelZoom(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)
	c.openPlan(h, 1000)
	c.call(streaming.TypeOpenMarker, streaming.OpenMarkerPayload{MarkerID: h.marker.ID})
	c.call(streaming.TypeViewerOpen, streaming.ViewerOpenPayload{ImageID: h.images[0].ID, Width: 400, Height: 200})

	c.next(streaming.TypeCameraFrame, cameraOn(streaming.SideSingle, func(f cameraFramePayload) bool {
		return f.FOV == 75
	}))
	c.send(streaming.TypeViewerGesture, streaming.ViewerGesturePayload{Kind: streaming.GestureWheel, Delta: 100})
	c.next(streaming.TypeCameraFrame, cameraOn(streaming.SideSingle, func(f cameraFramePayload) bool {
		return f.FOV == 76.5
	}))
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)

	tests := []struct {
		name    string
		msgType string
		payload any
		want    string
	}{
		{"unknown command", "bogus", nil, "unknown command: bogus"},
		{"missing payload", streaming.TypeOpenPlan, nil, "missing payload"},
		{"drag without plan", streaming.TypeMarkerPointerDown, streaming.MarkerPointerDownPayload{MarkerID: 1}, errNoPlan.Error()},
		{"toggle without marker", streaming.TypeToggleImage, streaming.ToggleImagePayload{ImageID: 1}, errNoMarker.Error()},
		{"gesture without viewer", streaming.TypeViewerGesture, streaming.ViewerGesturePayload{Kind: streaming.GestureWheel}, "no viewer open"},
		{"unknown plan", streaming.TypeOpenPlan, streaming.OpenPlanPayload{PlanID: 999, Width: 100}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.send(tt.msgType, tt.payload)
			ack, _ := c.until(tt.msgType)
			assert.Contains(t, ack.Error, tt.want)
		})
	}

	require.NoError(t, c.conn.WriteMessage(ws.TextMessage, []byte("{not json")))
	ack, _ := c.until("")
	assert.Contains(t, ack.Error, "invalid envelope")
}

func TestServerClose_EndsSessions(t *testing.T) {
	h := newHarness(t, config.InteractionConfig{LongPress: time.Hour})
	c := h.dial(t)

	require.Eventually(t, func() bool { return h.srv.Len() == 1 }, readTimeout, 5*time.Millisecond)
	require.NoError(t, h.srv.Close())
	assert.Equal(t, 0, h.srv.Len())

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "got %v", err)
			break
		}
	}
}
