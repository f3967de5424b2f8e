// Package system provides the wall-clock Clock implementation.
package system

import "time"

// Clock returns the current system time.
type Clock struct{}

// New constructs a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns time.Now in UTC.
func (c *Clock) Now() time.Time {
	return time.Now().UTC()
}
