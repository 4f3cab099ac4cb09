package promise

import (
	"sync/atomic"
	"unsafe"
)

// waiter is one parked caller of [Promise.Get] or [Promise.TimedGet],
// linked intrusively into the cell's waiter stack. The woken flag stands in
// for the cleared thread slot: whichever side wins it (the waker closing
// ready, or the caller abandoning the record on timeout/context
// cancellation) owns the record's fate; the loser does nothing.
type waiter struct {
	ready chan struct{}
	next  unsafe.Pointer // *waiter
	woken atomic.Bool
}

func newWaiter() *waiter {
	return &waiter{ready: make(chan struct{})}
}

// wake unparks the waiter, once.
func (w *waiter) wake() {
	if w.woken.CompareAndSwap(false, true) {
		close(w.ready)
	}
}

// abandon clears the waiter's slot without waking anyone, marking it for
// unlink by the next removal pass or the final drain.
func (w *waiter) abandon() {
	w.woken.CompareAndSwap(false, true)
}

// pushWaiter links w onto the waiter stack, reporting false if the cell
// already completed (stack tombstoned), in which case the caller must not
// block.
func (p *Promise[T]) pushWaiter(w *waiter) bool {
	for {
		head := helper.load(&p.waiters)
		if head == tombstone {
			return false
		}
		helper.store(&w.next, head)
		if helper.cas(&p.waiters, head, unsafe.Pointer(w)) {
			return true
		}
	}
}

// removeWaiter unlinks every abandoned record in a single pass, restarting
// when a concurrent unlink of the immediately preceding node is detected.
// This only runs on the timeout/interruption path; a lost race defers
// cleanup to the next pass or to the final drain.
func (p *Promise[T]) removeWaiter(w *waiter) {
	w.abandon()
	for {
		head := helper.load(&p.waiters)
		if head == tombstone {
			return // completed; the drain owns the stack now
		}
		var (
			pred    *waiter
			curr    = (*waiter)(head)
			restart bool
		)
		for curr != nil {
			succ := (*waiter)(helper.load(&curr.next))
			if !curr.woken.Load() {
				pred = curr
			} else if pred != nil {
				helper.store(&pred.next, unsafe.Pointer(succ))
				if pred.woken.Load() {
					restart = true // pred was concurrently unlinked
					break
				}
			} else if !helper.cas(&p.waiters, unsafe.Pointer(curr), unsafe.Pointer(succ)) {
				restart = true
				break
			}
			curr = succ
		}
		if !restart {
			return
		}
	}
}

// releaseWaiters tombstones the stack and wakes everything on it. Only the
// winner of the terminal-state transition calls this, so no two goroutines
// ever drain concurrently.
func (p *Promise[T]) releaseWaiters() {
	head := helper.swap(&p.waiters, tombstone)
	if head == tombstone {
		panic(`promise: waiter stack drained twice`)
	}
	for w := (*waiter)(head); w != nil; w = (*waiter)(helper.load(&w.next)) {
		w.wake()
	}
}
