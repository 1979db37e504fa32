// Package raster lays out resolved template markup at a fixed page width and
// renders it to an opaque bitmap.
//
// Two backends implement Rasterizer: Text, a pure Go layout engine over the
// layout package's block model, and chrome.Rasterizer, which screenshots the
// markup in headless Chrome. Both render at PageWidth logical pixels and
// DeviceScale device pixels per logical pixel, so a bitmap is always
// PageWidth*DeviceScale pixels wide and twice its natural height tall.
package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"time"
)

const (
	// PageWidth is the logical width of an A4 page at 96 DPI.
	PageWidth = 794
	// DeviceScale is the device pixel ratio used for rendering.
	DeviceScale = 2
	// Padding is the logical padding around the content.
	Padding = 40
	// DefaultMaxHeight caps a bitmap's device height (about thirteen A4 pages).
	DefaultMaxHeight = 30000
	// DefaultResourceTimeout bounds every external resource fetch.
	DefaultResourceTimeout = 15 * time.Second
)

// Errors reported by rasterizers.
var (
	ErrTooTall  = errors.New("raster: content exceeds maximum height")
	ErrResource = errors.New("raster: resource unavailable")
)

// Bitmap is a rendered page strip. Image is always fully opaque.
type Bitmap struct {
	Image *image.RGBA
	// Logical size in CSS pixels; the image is DeviceScale times larger.
	Width, Height int
}

// Bounds returns the device pixel size of the bitmap.
func (b *Bitmap) Bounds() image.Rectangle {
	return b.Image.Bounds()
}

// Rasterizer renders resolved markup to a bitmap. Implementations must be
// safe for concurrent use.
type Rasterizer interface {
	Rasterize(ctx context.Context, markup string) (*Bitmap, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, markup string) (*Bitmap, error)

// Rasterize calls f(ctx, markup).
func (f RasterizerFunc) Rasterize(ctx context.Context, markup string) (*Bitmap, error) {
	return f(ctx, markup)
}

// NewBitmap allocates an opaque white bitmap for the given logical size.
func NewBitmap(width, height int) *Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, width*DeviceScale, height*DeviceScale))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return &Bitmap{Image: img, Width: width, Height: height}
}

// FromImage flattens src onto white and wraps it as a bitmap. Its logical
// size is the device size divided by DeviceScale, rounded up.
func FromImage(src image.Image) *Bitmap {
	b := src.Bounds()
	w := (b.Dx() + DeviceScale - 1) / DeviceScale
	h := (b.Dy() + DeviceScale - 1) / DeviceScale
	bm := NewBitmap(w, h)
	draw.Draw(bm.Image, image.Rect(0, 0, b.Dx(), b.Dy()), src, b.Min, draw.Over)
	return bm
}
