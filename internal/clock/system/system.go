// Package system provides the wall clock used to timestamp exchanges.
package system

import "time"

// Clock implements fetch.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC with the monotonic reading stripped,
// so timestamps compare and serialise consistently.
func (Clock) Now() time.Time {
	return time.Now().UTC().Round(0)
}

// Since returns the time elapsed since t.
func (c Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
