package domain

import "time"

// ThrottleState is the stored fixed-window counter for one submitter.
// It expires once now - WindowStart exceeds the configured window.
type ThrottleState struct {
	SubmitterID string
	WindowStart time.Time
	Count       int64
}

// Expired reports whether the window has rolled over at the given instant.
func (s ThrottleState) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.WindowStart) > window
}

// ThrottleDecision is the outcome of a throttle check for one submitter.
// ResetTime is when a denied submitter's window opens again.
type ThrottleDecision struct {
	Allowed   bool
	Remaining int64
	ResetTime time.Time
}
