// Package clock provides an injectable time source so that interval-driven
// code can be tested without waiting on the wall clock.
//
// Production code uses Real(). Tests use Fake() and drive time with Advance,
// calling WaitForTimers first to avoid racing the goroutine that registers
// the wait.
package clock

import "time"

// Clock abstracts the time operations used by the scheduler.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
