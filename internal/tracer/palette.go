package tracer

import (
	"fmt"
	"sort"

	"snapvec/internal/quantize"
)

// PaletteItem is one output palette entry.
type PaletteItem struct {
	Hex        string
	R, G, B    uint8
	PixelCount int
	// Ratio is PixelCount over the total non-background pixel count.
	Ratio float64
}

// HexOf formats a color as "#rrggbb".
func HexOf(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// ParseHex parses "#rrggbb" (leading '#' optional).
func ParseHex(s string) (quantize.Centroid, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return quantize.Centroid{}, fmt.Errorf("hex color %q must be 6 digits", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return quantize.Centroid{}, fmt.Errorf("hex color %q: %w", s, err)
	}
	return quantize.Centroid{R: r, G: g, B: b}, nil
}

// buildPalette counts label occupancy and returns palette entries sorted
// by descending pixel count. Labels with zero pixels are dropped.
func buildPalette(labels []byte, centroids []quantize.Centroid) []PaletteItem {
	counts := make([]int, len(centroids))
	total := 0
	for _, l := range labels {
		if l == quantize.BackgroundLabel || int(l) >= len(centroids) {
			continue
		}
		counts[l]++
		total++
	}

	items := make([]PaletteItem, 0, len(centroids))
	for i, c := range centroids {
		if counts[i] == 0 {
			continue
		}
		ratio := 0.0
		if total > 0 {
			ratio = float64(counts[i]) / float64(total)
		}
		items = append(items, PaletteItem{
			Hex:        HexOf(c.R, c.G, c.B),
			R:          c.R,
			G:          c.G,
			B:          c.B,
			PixelCount: counts[i],
			Ratio:      ratio,
		})
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].PixelCount > items[b].PixelCount
	})
	return items
}

// MergePalettes sums pixel counts per hex across shard palettes and
// recomputes ratios over the merged total.
func MergePalettes(palettes ...[]PaletteItem) []PaletteItem {
	merged := make(map[string]PaletteItem)
	order := make([]string, 0)
	total := 0
	for _, palette := range palettes {
		for _, item := range palette {
			existing, ok := merged[item.Hex]
			if !ok {
				order = append(order, item.Hex)
				existing = PaletteItem{Hex: item.Hex, R: item.R, G: item.G, B: item.B}
			}
			existing.PixelCount += item.PixelCount
			merged[item.Hex] = existing
			total += item.PixelCount
		}
	}

	out := make([]PaletteItem, 0, len(merged))
	for _, hex := range order {
		item := merged[hex]
		if total > 0 {
			item.Ratio = float64(item.PixelCount) / float64(total)
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].PixelCount > out[b].PixelCount
	})
	return out
}
