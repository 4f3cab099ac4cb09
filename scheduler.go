package promise

import "time"

type (
	// Scheduler is the deadline capability consumed by [WithTimeout].
	Scheduler interface {
		// ScheduleOnce runs fn once, after d elapses, returning a handle
		// that attempts to cancel the pending run.
		ScheduleOnce(d time.Duration, fn func()) CancelTimer
	}

	// CancelTimer cancels a scheduled run, reporting whether it prevented
	// the run from starting. Cancelling a timer that already fired is safe.
	CancelTimer func() bool

	systemScheduler struct{}
)

// SystemScheduler schedules on the runtime timer heap, via [time.AfterFunc].
var SystemScheduler Scheduler = systemScheduler{}

func (systemScheduler) ScheduleOnce(d time.Duration, fn func()) CancelTimer {
	return time.AfterFunc(d, fn).Stop
}
