// Package plan rasterizes plan documents and tracks the drop surface they are drawn on.
package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrNoRenderer is returned when a surface has nothing to rasterize with
var ErrNoRenderer = errors.New("no page renderer configured")

// Page is one rasterized plan page
type Page struct {
	Bitmap   image.Image
	WidthPx  int
	HeightPx int
}

// PageRenderer rasterizes the first page of a plan document at targetWidth pixels.
// Implementations must return promptly once ctx is cancelled.
type PageRenderer interface {
	RenderPage(ctx context.Context, data []byte, targetWidth int) (Page, error)
}

// RasterRenderer handles plans delivered as PNG or JPEG images
type RasterRenderer struct {
	// Scaler defaults to Catmull-Rom
	Scaler draw.Scaler
}

// RenderPage decodes data and scales it to targetWidth, keeping the aspect ratio
func (r RasterRenderer) RenderPage(ctx context.Context, data []byte, targetWidth int) (Page, error) {
	if targetWidth <= 0 {
		return Page{}, fmt.Errorf("invalid target width %d", targetWidth)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Page{}, fmt.Errorf("error decoding plan image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Page{}, fmt.Errorf("plan image is empty")
	}
	height := max(1, int(float64(targetWidth)*float64(b.Dy())/float64(b.Dx())+0.5))

	scaler := r.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, height))
	scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	return Page{Bitmap: dst, WidthPx: targetWidth, HeightPx: height}, nil
}
