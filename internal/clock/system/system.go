// Package system provides a real clock implementation.
package system

import "time"

// Clock implements app.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time. The monotonic reading is kept so that
// Since measures elapsed time correctly across wall-clock adjustments.
func (Clock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since start.
func (Clock) Since(start time.Time) time.Duration {
	return time.Since(start)
}
