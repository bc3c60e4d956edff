package quantize

// Label-map cleanup filters. Both are 3×3 mode filters over the label
// map; they move labels, never centroids.

// MajorityFilter smooths jagged cluster boundaries. A pixel's label is
// replaced when a single neighbor label strictly outnumbers it with at
// least quorum of the 8 neighbors. Runs for the given number of
// iterations (anti-alias default is 2).
func MajorityFilter(labels []byte, w, h, iterations int) []byte {
	const quorum = 5
	current := labels
	for it := 0; it < iterations; it++ {
		current = modePass(current, w, h, quorum)
	}
	return current
}

// Denoise is a single, stricter mode pass. The quorum tightens from 6 to
// 5 neighbors as the noise parameter (0–100) increases.
func Denoise(labels []byte, w, h, noise int) []byte {
	quorum := 6
	if noise >= 50 {
		quorum = 5
	}
	return modePass(labels, w, h, quorum)
}

func modePass(labels []byte, w, h, quorum int) []byte {
	out := make([]byte, len(labels))
	copy(out, labels)

	var counts [MaxColors]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := labels[y*w+x]
			if center == BackgroundLabel {
				continue
			}

			seen := make([]byte, 0, 8)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					l := labels[ny*w+nx]
					if l == BackgroundLabel {
						continue
					}
					if counts[l] == 0 {
						seen = append(seen, l)
					}
					counts[l]++
				}
			}

			best := center
			bestCount := 0
			for _, l := range seen {
				if counts[l] > bestCount {
					bestCount = counts[l]
					best = l
				}
				counts[l] = 0
			}

			if best != center && bestCount >= quorum {
				out[y*w+x] = best
			}
		}
	}
	return out
}
