package imaging

import (
	"context"
	"fmt"
)

// Mode selects the color reduction applied before quantization.
type Mode string

const (
	ModeColor     Mode = "color"
	ModeGrayscale Mode = "grayscale"
	ModeBinary    Mode = "binary"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeColor, ModeGrayscale, ModeBinary:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown color mode %q", s)
}

// binarySampleTarget bounds the sparse sample used for the global
// threshold so huge images do not pay a full statistics pass.
const binarySampleTarget = 10000

// ReduceColorMode converts the buffer according to mode. Grayscale
// replaces RGB with luma; binary maps every pixel to pure black or white
// around a global mean-luma threshold computed from a sparse sample of
// visible pixels. Alpha is preserved in all modes.
func ReduceColorMode(ctx context.Context, src *PixelBuffer, mode Mode) (*PixelBuffer, error) {
	if mode == ModeColor || mode == "" {
		return src.Clone(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := src.Clone()
	switch mode {
	case ModeGrayscale:
		for i := 0; i < len(dst.Pix); i += 4 {
			y := luma(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = y, y, y
		}
	case ModeBinary:
		threshold := meanLumaThreshold(src)
		for i := 0; i < len(dst.Pix); i += 4 {
			y := luma(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
			v := byte(0)
			if y >= threshold {
				v = 255
			}
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = v, v, v
		}
	default:
		return nil, fmt.Errorf("unknown color mode %q", mode)
	}
	return dst, nil
}

// meanLumaThreshold samples visible pixels on a fixed stride and returns
// their mean luma. Fully transparent images fall back to mid-gray.
func meanLumaThreshold(b *PixelBuffer) byte {
	total := b.Width * b.Height
	step := total / binarySampleTarget
	if step < 1 {
		step = 1
	}
	sum, n := 0, 0
	for p := 0; p < total; p += step {
		i := p * 4
		if b.Pix[i+3] < AlphaVisible {
			continue
		}
		sum += int(luma(b.Pix[i], b.Pix[i+1], b.Pix[i+2]))
		n++
	}
	if n == 0 {
		return 128
	}
	return byte(sum / n)
}

func luma(r, g, b byte) byte {
	return byte(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b) + 0.5)
}
