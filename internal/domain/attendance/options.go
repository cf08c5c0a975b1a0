package attendance

import "time"

// Option configures the state machine.
type Option func(*Machine)

// WithAutoThreshold sets the confidence above which transitions apply
// without human review.
func WithAutoThreshold(t float64) Option {
	return func(m *Machine) {
		if t > 0 && t <= 1 {
			m.autoThreshold = t
		}
	}
}

// WithReviewThreshold sets the confidence below which detections are ignored.
func WithReviewThreshold(t float64) Option {
	return func(m *Machine) {
		if t > 0 && t <= 1 {
			m.reviewThreshold = t
		}
	}
}

// WithDuplicateWindow sets the per-person suppression window.
func WithDuplicateWindow(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.duplicateWindow = d
		}
	}
}

// WithDayBoundaries sets the clock offsets, from midnight UTC, at which the
// check-in window closes and the check-out window opens.
func WithDayBoundaries(morningEnd, eveningStart time.Duration) Option {
	return func(m *Machine) {
		if morningEnd > 0 && eveningStart > morningEnd {
			m.morningEnd = morningEnd
			m.eveningStart = eveningStart
		}
	}
}

// WithShift sets the nominal shift used for late and early-leave marking.
func WithShift(start, end time.Duration, grace time.Duration) Option {
	return func(m *Machine) {
		if start > 0 && end > start {
			m.shiftStart = start
			m.shiftEnd = end
		}
		if grace >= 0 {
			m.gracePeriod = grace
		}
	}
}
