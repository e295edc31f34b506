// Package system provides clock implementations for run dating.
package system

import "time"

// Clock implements auction.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Used to backfill a specific date.
type Fixed struct {
	At time.Time
}

// Now returns f.At in UTC.
func (f Fixed) Now() time.Time {
	return f.At.UTC()
}
