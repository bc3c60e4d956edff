package imaging

import (
	"context"

	xdraw "golang.org/x/image/draw"
)

// Upscale resamples the buffer to factor× its size using Catmull-Rom
// interpolation. Factor 1 returns a copy so callers may always own the
// result.
func Upscale(ctx context.Context, src *PixelBuffer, factor int) (*PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if factor <= 1 {
		return src.Clone(), nil
	}

	dst := NewPixelBuffer(src.Width*factor, src.Height*factor)
	xdraw.CatmullRom.Scale(dst.NRGBA(), dst.NRGBA().Rect, src.NRGBA(), src.NRGBA().Rect, xdraw.Src, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dst, nil
}

// SharpenStrength returns the recommended sharpen blend for a sampling
// level: upscaled buffers lose edge contrast that the Laplacian restores.
func SharpenStrength(sampling int) float64 {
	switch {
	case sampling >= 4:
		return 0.7
	case sampling == 2:
		return 0.4
	default:
		return 0
	}
}
