package vision

// Stabilizer smooths a noisy 2D tracking signal with an exponential moving
// average, independently per axis. The first Update after construction or
// Reset returns the raw input and seeds the state.
type Stabilizer struct {
	alpha  float64
	prevX  float64
	prevY  float64
	seeded bool
}

// NewStabilizer creates a stabilizer with smoothing factor alpha in (0,1].
// Lower alpha is smoother but laggier.
func NewStabilizer(alpha float64) *Stabilizer {
	return &Stabilizer{alpha: alpha}
}

// Update feeds raw coordinates and returns the smoothed pair.
// S_t = alpha*raw_t + (1-alpha)*S_{t-1}.
func (s *Stabilizer) Update(x, y float64) (float64, float64) {
	if !s.seeded {
		s.prevX = x
		s.prevY = y
		s.seeded = true
		return x, y
	}

	s.prevX = s.alpha*x + (1-s.alpha)*s.prevX
	s.prevY = s.alpha*y + (1-s.alpha)*s.prevY
	return s.prevX, s.prevY
}

// Reset clears the state so the next Update seeds again.
func (s *Stabilizer) Reset() {
	s.seeded = false
}
