// Package opencv implements the preprocessing stages on gocv. It is an
// optional acceleration backend; the engine falls back to the pure-Go
// imaging package when construction or any operation fails.
package opencv

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"snapvec/internal/imaging"
)

// Preprocessor runs upscale, sharpen, blur and color-mode reduction
// through OpenCV.
type Preprocessor struct{}

// New probes the native library with a tiny allocation so a broken
// OpenCV install surfaces at construction instead of mid-trace.
func New() (*Preprocessor, error) {
	probe := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC4)
	defer probe.Close()
	if probe.Empty() {
		return nil, fmt.Errorf("opencv mat allocation failed")
	}
	return &Preprocessor{}, nil
}

// Upscale resizes by an integer factor with bicubic interpolation.
func (p *Preprocessor) Upscale(ctx context.Context, src *imaging.PixelBuffer, factor int) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if factor <= 1 {
		return src.Clone(), nil
	}

	in, err := fromBuffer(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	dst := gocv.NewMat()
	out := newSafeMat(dst)
	defer out.Close()

	gocv.Resize(in.mat, &out.mat, image.Pt(src.Width*factor, src.Height*factor), 0, 0, gocv.InterpolationCubic)
	return toBuffer(out)
}

// Sharpen applies a cross Laplacian kernel scaled by strength. The
// kernel sums to one so flat areas and alpha pass through unchanged.
func (p *Preprocessor) Sharpen(ctx context.Context, src *imaging.PixelBuffer, strength float64) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strength <= 0 {
		return src.Clone(), nil
	}

	in, err := fromBuffer(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	s := float32(strength)
	kernel.SetFloatAt(0, 1, -s)
	kernel.SetFloatAt(1, 0, -s)
	kernel.SetFloatAt(1, 1, 1+4*s)
	kernel.SetFloatAt(1, 2, -s)
	kernel.SetFloatAt(2, 1, -s)

	dst := gocv.NewMat()
	out := newSafeMat(dst)
	defer out.Close()

	gocv.Filter2D(in.mat, &out.mat, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderReplicate)
	return toBuffer(out)
}

// Blur applies a box blur of the given radius.
func (p *Preprocessor) Blur(ctx context.Context, src *imaging.PixelBuffer, radius int) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if radius <= 0 {
		return src.Clone(), nil
	}

	in, err := fromBuffer(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	dst := gocv.NewMat()
	out := newSafeMat(dst)
	defer out.Close()

	k := radius*2 + 1
	gocv.Blur(in.mat, &out.mat, image.Pt(k, k))
	return toBuffer(out)
}

// Reduce collapses the color space. Grayscale runs through OpenCV;
// binary thresholding stays on the pure path since its threshold is
// derived from a sparse luma sample, not a per-pixel pass.
func (p *Preprocessor) Reduce(ctx context.Context, src *imaging.PixelBuffer, mode imaging.Mode) (*imaging.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mode != imaging.ModeGrayscale {
		return imaging.ReduceColorMode(ctx, src, mode)
	}

	in, err := fromBuffer(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	gray := gocv.NewMat()
	grayMat := newSafeMat(gray)
	defer grayMat.Close()
	gocv.CvtColor(in.mat, &grayMat.mat, gocv.ColorRGBAToGray)

	data, err := grayMat.mat.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("gray mat to bytes: %w", err)
	}
	if len(data) != src.Width*src.Height {
		return nil, fmt.Errorf("gray plane size %d does not match %dx%d", len(data), src.Width, src.Height)
	}

	// Rebuild RGBA, keeping the source alpha channel.
	out := imaging.NewPixelBuffer(src.Width, src.Height)
	for i, v := range data {
		off := i * 4
		out.Pix[off] = v
		out.Pix[off+1] = v
		out.Pix[off+2] = v
		out.Pix[off+3] = src.Pix[off+3]
	}
	return out, nil
}
