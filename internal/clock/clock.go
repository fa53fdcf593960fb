// Package clock supplies the wall-clock time stamped on each transaction.
//
// The engine reads the clock once per transaction and records the value in
// the journal, so replay hands every transaction the same instant it saw on
// first execution. Tests substitute testutil.ManualClock.
package clock

import "time"

// Clock returns the current execution time.
type Clock interface {
	Now() time.Time
}

// System is the machine clock, normalized to UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
