// Package system provides a real clock implementation.
package system

import "time"

// Clock implements clock.Clock using the standard library.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time, in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// After mirrors time.After while satisfying clock.Clock.
func (Clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Sleep blocks for at least d.
func (Clock) Sleep(d time.Duration) {
	time.Sleep(d)
}
