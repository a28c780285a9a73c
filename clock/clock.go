// Package clock abstracts the time source used by the session manager's refresh
// scheduler.
//
// [Real] delegates to the time package. [Fake] is a manually advanced clock for
// deterministic tests of expiry and refresh timing.
//
// # What this package must NOT do
//
//   - Import authsession or any sibling package.
//   - Start goroutines on its own (Fake runs callbacks on the goroutine calling Advance).
package clock

import "time"

// Timer is a cancelable pending callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Clock supplies the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
