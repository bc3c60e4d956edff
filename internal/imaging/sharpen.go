package imaging

import "context"

// sharpenChunkRows bounds the work done between cancellation checks.
const sharpenChunkRows = 64

// Sharpen applies a 4-neighbor Laplacian kernel (center 5, N/S/E/W −1)
// and blends the result with the original by strength in [0, 1]. Border
// pixels pass through unchanged.
func Sharpen(ctx context.Context, src *PixelBuffer, strength float64) (*PixelBuffer, error) {
	if strength <= 0 {
		return src.Clone(), nil
	}
	if strength > 1 {
		strength = 1
	}

	w, h := src.Width, src.Height
	dst := src.Clone()
	if w < 3 || h < 3 {
		return dst, nil
	}

	for y := 1; y < h-1; y++ {
		if y%sharpenChunkRows == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		for x := 1; x < w-1; x++ {
			i := src.Offset(x, y)
			for c := 0; c < 3; c++ {
				center := float64(src.Pix[i+c])
				lap := 5*center -
					float64(src.Pix[i-4+c]) -
					float64(src.Pix[i+4+c]) -
					float64(src.Pix[i-w*4+c]) -
					float64(src.Pix[i+w*4+c])
				blended := center*(1-strength) + lap*strength
				dst.Pix[i+c] = clampByte(blended)
			}
		}
	}
	return dst, nil
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}
