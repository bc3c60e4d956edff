// Package quantize clusters an RGBA buffer into a bounded palette and
// produces a per-pixel label map. Clustering is deterministic: a fixed
// LCG seed drives both sampling and k-means++ initialization.
package quantize

import (
	"context"

	"snapvec/internal/imaging"
)

// BackgroundLabel is the sentinel marking excluded pixels in a label map.
const BackgroundLabel = 0xFF

// MaxColors bounds the requested palette size.
const MaxColors = 64

const (
	rngSeed        = 20853
	maxIterations  = 8
	initCandidates = 10
	sampleFloor    = 2000
	sampleCeil     = 4000
	labelChunkRows = 256
)

// Centroid is the mean RGB color of one cluster.
type Centroid struct {
	R, G, B uint8
}

// Result pairs the label map with the palette that produced it.
type Result struct {
	Labels    []byte
	Centroids []Centroid
}

// Options controls a quantization run.
type Options struct {
	Colors      int        // requested cluster count, clamped to [2, MaxColors]
	Binary      bool       // force k=2
	PaletteLock []Centroid // fixed palette; skips clustering when non-empty
}

// Quantize assigns every pixel of buf to its nearest cluster centroid.
// Pixels with alpha below the visibility threshold map to
// BackgroundLabel. A fully transparent buffer yields an empty palette
// and an all-sentinel label map rather than an error.
func Quantize(ctx context.Context, buf *imaging.PixelBuffer, opts Options) (*Result, error) {
	centroids, err := pickCentroids(buf, opts)
	if err != nil {
		return nil, err
	}

	labels, err := labelPixels(ctx, buf, centroids)
	if err != nil {
		return nil, err
	}
	return &Result{Labels: labels, Centroids: centroids}, nil
}

func pickCentroids(buf *imaging.PixelBuffer, opts Options) ([]Centroid, error) {
	if len(opts.PaletteLock) > 0 {
		locked := opts.PaletteLock
		if len(locked) > MaxColors {
			locked = locked[:MaxColors]
		}
		return locked, nil
	}

	samples := samplePixels(buf)
	if len(samples) == 0 {
		return nil, nil
	}

	k := opts.Colors
	if opts.Binary {
		k = 2
	}
	if k < 2 {
		k = 2
	}
	if k > MaxColors {
		k = MaxColors
	}
	if distinct := distinctColors(samples); k > distinct {
		k = distinct
	}

	return lloyd(samples, k), nil
}

type sample struct {
	r, g, b float64
}

// samplePixels draws a bounded, stride-spaced sample of visible pixels.
// Small images sample densely; the stride grows with the pixel count so
// the sample stays in the [sampleFloor, sampleCeil] band.
func samplePixels(buf *imaging.PixelBuffer) []sample {
	total := buf.Width * buf.Height
	step := total / sampleCeil
	if step < 1 {
		step = 1
	}

	out := make([]sample, 0, sampleCeil)
	for p := 0; p < total; p += step {
		i := p * 4
		if buf.Pix[i+3] < imaging.AlphaVisible {
			continue
		}
		out = append(out, sample{
			r: float64(buf.Pix[i]),
			g: float64(buf.Pix[i+1]),
			b: float64(buf.Pix[i+2]),
		})
	}

	// Sparse alpha coverage can starve the sample; fall back to a denser
	// walk until the floor is met or every pixel was considered.
	if len(out) < sampleFloor && step > 1 {
		out = out[:0]
		for p := 0; p < total; p++ {
			i := p * 4
			if buf.Pix[i+3] < imaging.AlphaVisible {
				continue
			}
			out = append(out, sample{
				r: float64(buf.Pix[i]),
				g: float64(buf.Pix[i+1]),
				b: float64(buf.Pix[i+2]),
			})
			if len(out) >= sampleCeil {
				break
			}
		}
	}
	return out
}

func distinctColors(samples []sample) int {
	seen := make(map[uint32]struct{}, len(samples))
	for _, s := range samples {
		key := uint32(s.r)<<16 | uint32(s.g)<<8 | uint32(s.b)
		seen[key] = struct{}{}
	}
	return len(seen)
}

func sqDist(s sample, c sample) float64 {
	dr := s.r - c.r
	dg := s.g - c.g
	db := s.b - c.b
	return dr*dr + dg*dg + db*db
}

// lloyd runs k-means++ initialization followed by at most maxIterations
// Lloyd passes over the sample set.
func lloyd(samples []sample, k int) []Centroid {
	rng := newLCG(rngSeed)

	centers := make([]sample, 0, k)
	centers = append(centers, samples[rng.intn(len(samples))])

	// k-means++ with a bounded candidate pool: each new center is the
	// best of initCandidates draws by min squared distance to the
	// existing centers.
	for len(centers) < k {
		var best sample
		bestScore := -1.0
		for c := 0; c < initCandidates; c++ {
			cand := samples[rng.intn(len(samples))]
			minD := sqDist(cand, centers[0])
			for _, ctr := range centers[1:] {
				if d := sqDist(cand, ctr); d < minD {
					minD = d
				}
			}
			if minD > bestScore {
				bestScore = minD
				best = cand
			}
		}
		centers = append(centers, best)
	}

	assign := make([]int, len(samples))
	for iter := 0; iter < maxIterations; iter++ {
		for i, s := range samples {
			bestJ := 0
			bestD := sqDist(s, centers[0])
			for j := 1; j < len(centers); j++ {
				if d := sqDist(s, centers[j]); d < bestD {
					bestD = d
					bestJ = j
				}
			}
			assign[i] = bestJ
		}

		sums := make([]sample, len(centers))
		counts := make([]int, len(centers))
		for i, s := range samples {
			j := assign[i]
			sums[j].r += s.r
			sums[j].g += s.g
			sums[j].b += s.b
			counts[j]++
		}

		maxMove := 0.0
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			next := sample{
				r: sums[j].r / float64(counts[j]),
				g: sums[j].g / float64(counts[j]),
				b: sums[j].b / float64(counts[j]),
			}
			move := maxAbs(next.r-centers[j].r, next.g-centers[j].g, next.b-centers[j].b)
			if move > maxMove {
				maxMove = move
			}
			centers[j] = next
		}
		if maxMove <= 1 {
			break
		}
	}

	out := make([]Centroid, len(centers))
	for j, c := range centers {
		out[j] = Centroid{R: roundByte(c.r), G: roundByte(c.g), B: roundByte(c.b)}
	}
	return out
}

func maxAbs(vals ...float64) float64 {
	m := 0.0
	for _, v := range vals {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

func roundByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// labelPixels assigns every pixel (not just samples) to its nearest
// centroid in chunked row passes with cancellation checks between
// chunks.
func labelPixels(ctx context.Context, buf *imaging.PixelBuffer, centroids []Centroid) ([]byte, error) {
	labels := make([]byte, buf.Width*buf.Height)
	if len(centroids) == 0 {
		for i := range labels {
			labels[i] = BackgroundLabel
		}
		return labels, nil
	}

	for y0 := 0; y0 < buf.Height; y0 += labelChunkRows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		y1 := y0 + labelChunkRows
		if y1 > buf.Height {
			y1 = buf.Height
		}
		for p := y0 * buf.Width; p < y1*buf.Width; p++ {
			i := p * 4
			if buf.Pix[i+3] < imaging.AlphaVisible {
				labels[p] = BackgroundLabel
				continue
			}
			r := int(buf.Pix[i])
			g := int(buf.Pix[i+1])
			b := int(buf.Pix[i+2])
			bestJ := 0
			bestD := 1 << 30
			for j, c := range centroids {
				dr := r - int(c.R)
				dg := g - int(c.G)
				db := b - int(c.B)
				d := dr*dr + dg*dg + db*db
				if d < bestD {
					bestD = d
					bestJ = j
				}
			}
			labels[p] = byte(bestJ)
		}
	}
	return labels, nil
}
