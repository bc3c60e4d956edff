package tracer

import (
	"fmt"
	"strings"

	"snapvec/internal/imaging"
	"snapvec/internal/quantize"
)

// Supported sampling levels. Level 1 traces at source resolution; 2 and
// 4 upscale first for sub-pixel precision.
var SamplingLevels = []int{1, 2, 4}

// Params is the full, immutable parameter value for one trace run. A
// run is keyed by its complete value; two runs with equal Params (and
// the same source) produce byte-identical output.
type Params struct {
	// Colors is the palette size target, clamped to [2, 64].
	Colors int
	// Fitting 0–100: path fitting strength, higher hugs the boundary.
	Fitting int
	// Corner 0–100: corner sharpness threshold.
	Corner int
	// Noise 0–100: minimum loop area in px² at 1× sampling.
	Noise int
	// BlurRadius is the pre-blur radius in source pixels; scaled by the
	// sampling factor before application.
	BlurRadius int
	// Sampling is the upscale level: 1, 2 or 4.
	Sampling int
	// RemoveBackground enables background suppression.
	RemoveBackground bool
	// BackgroundColor optionally pins the background color as "#rrggbb".
	// Empty means "detect from the image border".
	BackgroundColor string
	// SmartBackground uses a border flood fill instead of a blanket
	// label match, preserving enclosed background-colored regions.
	SmartBackground bool
	// Mode selects full color, grayscale or binary reduction.
	Mode imaging.Mode
	// AntiAlias runs the majority filter over the label map.
	AntiAlias bool
	// PaletteLock fixes the palette to the given "#rrggbb" colors,
	// skipping clustering.
	PaletteLock []string
}

// DefaultParams mirrors the defaults of the original tracing engine.
func DefaultParams() Params {
	return Params{
		Colors:          16,
		Fitting:         70,
		Corner:          60,
		Noise:           4,
		Sampling:        1,
		Mode:            imaging.ModeColor,
		AntiAlias:       true,
		SmartBackground: true,
	}
}

// Normalize applies the documented clamp policies and returns the
// clamped copy. Only color count, noise and corner values clamp; other
// violations are validation errors.
func (p Params) Normalize() Params {
	if p.Colors < 2 {
		p.Colors = 2
	}
	if p.Colors > quantize.MaxColors {
		p.Colors = quantize.MaxColors
	}
	p.Fitting = clamp100(p.Fitting)
	p.Corner = clamp100(p.Corner)
	p.Noise = clamp100(p.Noise)
	if p.Sampling == 0 {
		p.Sampling = 1
	}
	if p.Mode == "" {
		p.Mode = imaging.ModeColor
	}
	return p
}

func clamp100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Validate rejects parameter values outside the documented ranges.
func (p Params) Validate() error {
	ok := false
	for _, level := range SamplingLevels {
		if p.Sampling == level {
			ok = true
		}
	}
	if !ok {
		return &InputError{Field: "sampling", Reason: fmt.Sprintf("level %d not in {1, 2, 4}", p.Sampling)}
	}
	if p.BlurRadius < 0 {
		return &InputError{Field: "blur_radius", Reason: "negative radius"}
	}
	if _, err := imaging.ParseMode(string(p.Mode)); err != nil {
		return &InputError{Field: "mode", Reason: err.Error()}
	}
	if p.BackgroundColor != "" {
		if _, err := ParseHex(p.BackgroundColor); err != nil {
			return &InputError{Field: "background_color", Reason: err.Error()}
		}
	}
	for _, hex := range p.PaletteLock {
		if _, err := ParseHex(hex); err != nil {
			return &InputError{Field: "palette_lock", Reason: err.Error()}
		}
	}
	return nil
}

// Key serializes the full parameter value for run keying and caching.
func (p Params) Key() string {
	return fmt.Sprintf("c%d f%d k%d n%d b%d s%d bg%t:%s:%t m%s aa%t pl%s",
		p.Colors, p.Fitting, p.Corner, p.Noise, p.BlurRadius, p.Sampling,
		p.RemoveBackground, p.BackgroundColor, p.SmartBackground,
		p.Mode, p.AntiAlias, strings.Join(p.PaletteLock, ","))
}

// QuantizeKey covers only the parameters that influence the label map,
// so path-only parameter edits can reuse a cached quantization.
func (p Params) QuantizeKey() string {
	return fmt.Sprintf("c%d n%d b%d s%d bg%t:%s:%t m%s aa%t pl%s",
		p.Colors, p.Noise, p.BlurRadius, p.Sampling,
		p.RemoveBackground, p.BackgroundColor, p.SmartBackground,
		p.Mode, p.AntiAlias, strings.Join(p.PaletteLock, ","))
}

// lockedPalette parses PaletteLock into centroids.
func (p Params) lockedPalette() ([]quantize.Centroid, error) {
	if len(p.PaletteLock) == 0 {
		return nil, nil
	}
	out := make([]quantize.Centroid, 0, len(p.PaletteLock))
	for _, hex := range p.PaletteLock {
		c, err := ParseHex(hex)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
