package promise

import (
	"sync/atomic"
	"time"
	"unsafe"
)

// timeoutCell couples an output promise to an inner promise and a timer:
// whichever fires first settles the output.
type timeoutCell[T any] struct {
	out   *Promise[T]
	inner *Promise[T]
	after time.Duration
	fired atomic.Bool
	timer atomic.Pointer[CancelTimer]
}

// WithTimeout derives a promise that adopts inner's outcome if it completes
// within timeout, and otherwise fails with a [*TimeoutError] and cancels
// inner with interruption. Cancelling the returned promise also cancels
// inner, carrying the interruption flag through.
//
// Config may be nil for defaults; a nil scheduler means [SystemScheduler].
func WithTimeout[T any](config *Config, inner *Promise[T], timeout time.Duration, scheduler Scheduler) *Promise[T] {
	if inner == nil {
		panic(`promise: nil inner promise`)
	}
	if scheduler == nil {
		scheduler = SystemScheduler
	}
	c := &timeoutCell[T]{inner: inner, after: timeout}
	c.out = &Promise[T]{cfg: resolveConfig(config)}
	c.out.afterDone = c.afterDone
	ct := scheduler.ScheduleOnce(timeout, c.fire)
	c.timer.Store(&ct)
	// the timer may already have fired and settled the output, in which
	// case the delegation install simply loses the race
	c.out.setPromise(inner)
	return c.out
}

// fire is the timeout trigger. It is idempotent: only the first firing
// acts, and it acts exactly once. An inner promise that completed before
// the firing is adopted, even if the adoption propagation has not landed
// yet; only a genuinely incomplete inner promise produces the timeout
// failure, and only that transition cancels it.
func (c *timeoutCell[T]) fire() {
	if !c.fired.CompareAndSwap(false, true) {
		return
	}
	var fail *stateRecord[T]
	for {
		raw := helper.load(&c.out.state)
		if s := (*stateRecord[T])(raw); s != nil && s.kind != kindDelegated {
			return // the inner promise, or a cancellation, won
		}
		if c.inner.Done() {
			// beat the deadline; adopt rather than racing the propagation
			if helper.cas(&c.out.state, raw, unsafe.Pointer(c.inner.adoptionValue())) {
				c.out.complete()
				return
			}
			continue
		}
		if fail == nil {
			fail = &stateRecord[T]{kind: kindFailure, err: &TimeoutError{After: c.after}}
		}
		if helper.cas(&c.out.state, raw, unsafe.Pointer(fail)) {
			// cancel before waking waiters, so anyone unblocked by the
			// timeout observes the inner promise already cancelled
			c.inner.Cancel(true)
			c.out.complete()
			return
		}
	}
}

func (c *timeoutCell[T]) afterDone() {
	if ct := c.timer.Load(); ct != nil {
		(*ct)()
	}
}
