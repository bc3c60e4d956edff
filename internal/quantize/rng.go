package quantize

// lcg is a small linear-congruential generator. Clustering must be
// reproducible across runs and across worker shards, so we avoid
// math/rand and its per-process seeding entirely.
type lcg struct {
	state uint32
}

func newLCG(seed uint32) *lcg {
	return &lcg{state: seed}
}

func (r *lcg) next() uint32 {
	// Numerical Recipes constants.
	r.state = r.state*1664525 + 1013904223
	return r.state
}

// intn returns a value in [0, n).
func (r *lcg) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint32(n))
}
