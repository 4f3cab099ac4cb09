package promise

import (
	"unsafe"
)

// listener is one registered completion callback, linked intrusively into
// the cell's listener stack. A record with del set is a delegation
// propagation hook rather than a user callback: it carries the delegation
// state record whose owner adopts this cell's outcome.
type listener[T any] struct {
	fn   func()
	ex   Executor
	del  *stateRecord[T]
	next unsafe.Pointer // *listener[T]
}

// pushListener links l onto the listener stack, reporting false if the
// cell already completed (stack tombstoned), in which case the caller
// falls through to immediate submission.
func (p *Promise[T]) pushListener(l *listener[T]) bool {
	for {
		head := helper.load(&p.listeners)
		if head == tombstone {
			return false
		}
		helper.store(&l.next, head)
		if helper.cas(&p.listeners, head, unsafe.Pointer(l)) {
			return true
		}
	}
}

// drainListeners tombstones the stack and returns the chain reversed into
// registration order. Only the completing goroutine calls this.
func (p *Promise[T]) drainListeners() *listener[T] {
	head := helper.swap(&p.listeners, tombstone)
	if head == tombstone {
		panic(`promise: listener stack drained twice`)
	}
	var reversed *listener[T]
	for l := (*listener[T])(head); l != nil; {
		next := (*listener[T])(helper.load(&l.next))
		helper.store(&l.next, unsafe.Pointer(reversed))
		reversed = l
		l = next
	}
	return reversed
}

// submitListener hands fn to ex, catching and logging anything the
// submission raises so one broken listener cannot corrupt its siblings or
// the completer.
func (p *Promise[T]) submitListener(fn func(), ex Executor) {
	defer func() {
		if r := recover(); r != nil {
			if log := p.config().logger; log != nil {
				log.Err().
					Interface(`panic`, r).
					Log(`promise: listener submission panicked`)
			}
		}
	}()
	if ex == nil {
		ex = Direct
	}
	ex.Execute(fn)
}
