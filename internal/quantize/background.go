package quantize

// backgroundDistance is the RGB radius within which a centroid counts as
// background-colored.
const backgroundDistance = 30

// BackgroundOptions controls background suppression.
type BackgroundOptions struct {
	// Target is the background color to match. Nil means "use the
	// dominant color along the image border".
	Target *Centroid
	// Smart restricts suppression to pixels reachable from the border by
	// a flood fill, so background-colored regions fully enclosed inside
	// the subject survive.
	Smart bool
}

// SuppressBackground rewrites background pixels in the label map to
// BackgroundLabel. Candidate labels are the centroids within
// backgroundDistance of the target color. The label map is modified in
// place and returned.
func SuppressBackground(res *Result, w, h int, opts BackgroundOptions) []byte {
	labels := res.Labels
	if len(res.Centroids) == 0 {
		return labels
	}

	target := opts.Target
	if target == nil {
		target = edgeDominantColor(res, w, h)
	}
	if target == nil {
		return labels
	}

	candidate := make([]bool, len(res.Centroids))
	any := false
	for i, c := range res.Centroids {
		dr := int(c.R) - int(target.R)
		dg := int(c.G) - int(target.G)
		db := int(c.B) - int(target.B)
		if dr*dr+dg*dg+db*db <= backgroundDistance*backgroundDistance {
			candidate[i] = true
			any = true
		}
	}
	if !any {
		return labels
	}

	if !opts.Smart {
		for i, l := range labels {
			if l != BackgroundLabel && candidate[l] {
				labels[i] = BackgroundLabel
			}
		}
		return labels
	}

	floodFromBorder(labels, w, h, candidate)
	return labels
}

// edgeDominantColor returns the centroid most frequent among border
// pixels, or nil when the whole border is transparent.
func edgeDominantColor(res *Result, w, h int) *Centroid {
	var counts [MaxColors]int
	tally := func(p int) {
		if l := res.Labels[p]; l != BackgroundLabel {
			counts[l]++
		}
	}
	for x := 0; x < w; x++ {
		tally(x)
		tally((h-1)*w + x)
	}
	for y := 1; y < h-1; y++ {
		tally(y * w)
		tally(y*w + w - 1)
	}

	best, bestCount := -1, 0
	for i := range res.Centroids {
		if counts[i] > bestCount {
			bestCount = counts[i]
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	c := res.Centroids[best]
	return &c
}

// floodFromBorder runs a multi-seed BFS from every candidate-labeled
// border pixel, recoloring reachable candidate pixels to the sentinel.
// 4-connectivity keeps diagonal pinholes from leaking into enclosed
// regions.
func floodFromBorder(labels []byte, w, h int, candidate []bool) {
	isCand := func(p int) bool {
		l := labels[p]
		return l != BackgroundLabel && candidate[l]
	}

	queue := make([]int, 0, 2*(w+h))
	push := func(p int) {
		if isCand(p) {
			labels[p] = BackgroundLabel
			queue = append(queue, p)
		}
	}

	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 1; y < h-1; y++ {
		push(y * w)
		push(y*w + w - 1)
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		x, y := p%w, p/w
		if x > 0 {
			push(p - 1)
		}
		if x < w-1 {
			push(p + 1)
		}
		if y > 0 {
			push(p - w)
		}
		if y < h-1 {
			push(p + w)
		}
	}
}

// VisibleCount returns the number of pixels not mapped to the sentinel.
func VisibleCount(labels []byte) int {
	n := 0
	for _, l := range labels {
		if l != BackgroundLabel {
			n++
		}
	}
	return n
}
