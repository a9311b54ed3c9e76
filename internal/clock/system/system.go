// Package system provides a real clock implementation.
package system

import "time"

// Clock implements the collector and pipeline Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC; run directories and GMT timestamps
// are derived from it.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
