// Package imaging provides the pixel buffer type and the pure
// buffer→buffer preprocessing stages: upscaling, sharpening, blurring and
// color-mode reduction. Every stage produces a new buffer; inputs are
// never mutated.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
)

// AlphaVisible is the alpha floor below which a pixel is treated as
// transparent for statistics and labeling.
const AlphaVisible = 128

// PixelBuffer is an interleaved RGBA image, row-major, 4 bytes per pixel.
// Once handed to a pipeline stage it must be treated as immutable.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// FromImage copies an image.Image into a PixelBuffer.
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	return &PixelBuffer{Width: w, Height: h, Pix: nrgba.Pix}
}

// Validate rejects buffers the pipeline cannot process.
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("nil pixel buffer")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("zero-dimension buffer %dx%d", b.Width, b.Height)
	}
	if len(b.Pix) != b.Width*b.Height*4 {
		return fmt.Errorf("pixel data length %d does not match %dx%d", len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// Clone returns an independent copy.
func (b *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Offset returns the byte index of pixel (x, y).
func (b *PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * 4
}

// RGBA returns the channels of pixel (x, y).
func (b *PixelBuffer) RGBA(x, y int) (r, g, bl, a byte) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

// NRGBA wraps the buffer as an image.NRGBA sharing the same pixel data.
func (b *PixelBuffer) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Strip copies the row range [y0, y1) into a new buffer.
func (b *PixelBuffer) Strip(y0, y1 int) *PixelBuffer {
	out := NewPixelBuffer(b.Width, y1-y0)
	copy(out.Pix, b.Pix[y0*b.Width*4:y1*b.Width*4])
	return out
}

// StripColumns copies the column range [x0, x1) into a new buffer.
func (b *PixelBuffer) StripColumns(x0, x1 int) *PixelBuffer {
	w := x1 - x0
	out := NewPixelBuffer(w, b.Height)
	for y := 0; y < b.Height; y++ {
		src := b.Offset(x0, y)
		dst := y * w * 4
		copy(out.Pix[dst:dst+w*4], b.Pix[src:src+w*4])
	}
	return out
}
