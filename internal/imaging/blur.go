package imaging

import "context"

const blurChunkRows = 128

// BoxBlur applies a separable box blur of the given radius, horizontal
// pass then vertical. Radius 0 is a no-op copy. All four channels are
// blurred so soft alpha edges stay soft.
func BoxBlur(ctx context.Context, src *PixelBuffer, radius int) (*PixelBuffer, error) {
	if radius <= 0 {
		return src.Clone(), nil
	}

	w, h := src.Width, src.Height
	tmp := NewPixelBuffer(w, h)
	dst := NewPixelBuffer(w, h)

	// Horizontal pass with a sliding window sum per row.
	for y := 0; y < h; y++ {
		if y%blurChunkRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := y * w * 4
		var sum [4]int
		count := 0
		for x := -radius; x <= radius; x++ {
			if x >= 0 && x < w {
				for c := 0; c < 4; c++ {
					sum[c] += int(src.Pix[row+x*4+c])
				}
				count++
			}
		}
		for x := 0; x < w; x++ {
			for c := 0; c < 4; c++ {
				tmp.Pix[row+x*4+c] = byte((sum[c] + count/2) / count)
			}
			enter := x + radius + 1
			leave := x - radius
			if enter < w {
				for c := 0; c < 4; c++ {
					sum[c] += int(src.Pix[row+enter*4+c])
				}
				count++
			}
			if leave >= 0 {
				for c := 0; c < 4; c++ {
					sum[c] -= int(src.Pix[row+leave*4+c])
				}
				count--
			}
		}
	}

	// Vertical pass over the horizontal result.
	for x := 0; x < w; x++ {
		if x%blurChunkRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var sum [4]int
		count := 0
		for y := -radius; y <= radius; y++ {
			if y >= 0 && y < h {
				i := (y*w + x) * 4
				for c := 0; c < 4; c++ {
					sum[c] += int(tmp.Pix[i+c])
				}
				count++
			}
		}
		for y := 0; y < h; y++ {
			i := (y*w + x) * 4
			for c := 0; c < 4; c++ {
				dst.Pix[i+c] = byte((sum[c] + count/2) / count)
			}
			enter := y + radius + 1
			leave := y - radius
			if enter < h {
				j := (enter*w + x) * 4
				for c := 0; c < 4; c++ {
					sum[c] += int(tmp.Pix[j+c])
				}
				count++
			}
			if leave >= 0 {
				j := (leave*w + x) * 4
				for c := 0; c < 4; c++ {
					sum[c] -= int(tmp.Pix[j+c])
				}
				count--
			}
		}
	}

	return dst, nil
}
