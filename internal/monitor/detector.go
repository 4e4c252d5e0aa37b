package monitor

// Detector tracks the rising edge of the per-window threshold comparison.
// Only the sampling loop calls Observe, so no locking is needed.
type Detector struct {
	minimum       float64
	previousAbove bool
}

// NewDetector creates a detector for the given minimum level.
func NewDetector(minimum float64) *Detector {
	return &Detector{minimum: minimum}
}

// Observe records one window peak and reports whether an event fires.
// An event fires only on the transition from below to at-or-above the
// minimum; the previous-window state is updated unconditionally.
func (d *Detector) Observe(peak float64) bool {
	above := peak >= d.minimum
	rising := above && !d.previousAbove
	d.previousAbove = above
	return rising
}
