package plan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/pdf360/planview/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRasterRenderer_ScalesToWidth(t *testing.T) {
	page, err := RasterRenderer{}.RenderPage(context.Background(), pngBytes(t, 200, 100), 1000)
	require.NoError(t, err)

	assert.Equal(t, 1000, page.WidthPx)
	assert.Equal(t, 500, page.HeightPx)
	assert.Equal(t, image.Rect(0, 0, 1000, 500), page.Bitmap.Bounds())
}

func TestRasterRenderer_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := RasterRenderer{}.RenderPage(ctx, []byte("%PDF-1.7"), 100)
	assert.Error(t, err)

	_, err = RasterRenderer{}.RenderPage(ctx, pngBytes(t, 10, 10), 0)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = RasterRenderer{}.RenderPage(cancelled, pngBytes(t, 10, 10), 100)
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingRenderer waits for its context unless released
type blockingRenderer struct {
	mu      sync.Mutex
	started chan int
	widths  []int
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{started: make(chan int, 16)}
}

func (r *blockingRenderer) RenderPage(ctx context.Context, _ []byte, width int) (Page, error) {
	r.mu.Lock()
	r.widths = append(r.widths, width)
	r.mu.Unlock()
	r.started <- width
	if width%2 == 1 {
		<-ctx.Done()
		return Page{}, ctx.Err()
	}
	return Page{WidthPx: width, HeightPx: width / 2}, nil
}

func (r *blockingRenderer) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.widths...)
}

func TestSurface_BoundsFollowRenderedPage(t *testing.T) {
	s := NewSurface(newBlockingRenderer(), 0, nil)
	defer s.Close()

	assert.True(t, s.Bounds().Empty())

	s.SetOrigin(geo.Point{X: 20, Y: 60})
	_, err := s.Load(context.Background(), []byte("plan"), 1000)
	require.NoError(t, err)

	assert.Equal(t, geo.Rect{Left: 20, Top: 60, Width: 1000, Height: 500}, s.Bounds())
	assert.Equal(t, geo.Point{X: 120, Y: 460}, s.MarkerPoint(0.1, 0.8))
}

func TestSurface_NewRenderCancelsInFlight(t *testing.T) {
	r := newBlockingRenderer()
	s := NewSurface(r, 0, nil)
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background(), []byte("plan"), 801)
		errCh <- err
	}()
	require.Equal(t, 801, <-r.started)

	page, err := s.Render(context.Background(), 600)
	require.NoError(t, err)
	assert.Equal(t, 600, page.WidthPx)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("in-flight render was not cancelled")
	}

	got, ok := s.Page()
	require.True(t, ok)
	assert.Equal(t, 600, got.WidthPx)
}

func TestSurface_ResizeDebounces(t *testing.T) {
	r := newBlockingRenderer()
	s := NewSurface(r, 20*time.Millisecond, nil)
	defer s.Close()

	var mu sync.Mutex
	var rendered []int
	s.OnRender = func(p Page) {
		mu.Lock()
		rendered = append(rendered, p.WidthPx)
		mu.Unlock()
	}

	s.Resize(400)
	s.Resize(500)
	s.Resize(600)
	s.Resize(700)
	s.Resize(800)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rendered) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []int{800}, r.calls())
	assert.Equal(t, 400.0, s.Bounds().Height)
}

func TestSurface_NoRenderer(t *testing.T) {
	s := NewSurface(nil, 0, nil)
	_, err := s.Render(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoRenderer)
}

func TestSurface_CloseCancels(t *testing.T) {
	r := newBlockingRenderer()
	s := NewSurface(r, 0, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Render(context.Background(), 301)
		errCh <- err
	}()
	<-r.started
	s.Close()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("render not cancelled by Close")
	}

	_, err := s.Render(context.Background(), 300)
	assert.ErrorIs(t, err, context.Canceled)
}
