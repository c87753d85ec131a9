// Package clock lets code that arms timers or reads the current time be
// driven deterministically in tests.
//
// Production wiring passes Real(). Tests pass a *Fake and move time with
// Advance; AfterFunc callbacks then run synchronously inside Advance, which
// makes timer-driven state machines step in lockstep with the test.
package clock

import "time"

// Clock is the subset of the time package the kiosk and the directory use.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can cancel
	// a call that has not happened yet.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a handle to a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. It reports false when the call already
// ran or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}
