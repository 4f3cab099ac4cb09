package promise

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"
)

// stateKind discriminates the terminal (and delegated) forms of a cell's
// state record. The pending state is the nil record, so a zero kind is
// never observed.
type stateKind uint8

const (
	kindValue stateKind = iota + 1
	kindFailure
	kindCancelled
	kindDelegated
)

// stateRecord is the single atomically-swapped state slot value of a
// [Promise]. Once a cell leaves pending (nil), its record never changes
// again, except that a kindDelegated record is replaced exactly once by the
// delegate's own terminal outcome.
type stateRecord[T any] struct {
	value       T
	err         error       // kindFailure: the error; kindCancelled: optional cause
	owner       *Promise[T] // kindDelegated: the delegating cell
	target      *Promise[T] // kindDelegated: the cell delegated to
	kind        stateKind
	interrupted bool
}

// Promise is a single-assignment result cell: a read-only view of a future
// value of type T. Exactly one of value, failure, or cancellation is ever
// observed as terminal, and it never changes once observed.
//
// The zero value is a pending promise that nothing can complete; obtain
// useful instances from [New], [NewTask], [NewAsyncTask], [WithTimeout], or
// the aggregate constructors.
//
// All methods are safe for concurrent use by any number of goroutines.
type Promise[T any] struct {
	state     unsafe.Pointer // *stateRecord[T]; nil while pending
	waiters   unsafe.Pointer // *waiter stack head; tombstone once completed
	listeners unsafe.Pointer // *listener[T] stack head; tombstone once completed
	cfg       *config
	interrupt func() // cancellation-with-interrupt hook; set before the cell escapes
	afterDone func() // post-completion hook; set before the cell escapes
}

func (p *Promise[T]) config() *config {
	if p.cfg != nil {
		return p.cfg
	}
	return &defaultResolvedConfig
}

func (p *Promise[T]) loadState() *stateRecord[T] {
	return (*stateRecord[T])(helper.load(&p.state))
}

// Done reports whether the promise reached a terminal state. A promise
// that delegated to another, still-pending promise is not done.
func (p *Promise[T]) Done() bool {
	s := p.loadState()
	return s != nil && s.kind != kindDelegated
}

// Cancelled reports whether the promise terminated by cancellation.
func (p *Promise[T]) Cancelled() bool {
	s := p.loadState()
	return s != nil && s.kind == kindCancelled
}

func (p *Promise[T]) wasInterrupted() bool {
	s := p.loadState()
	return s != nil && s.kind == kindCancelled && s.interrupted
}

// Get blocks until the promise completes, then returns its value, or an
// error: a [*CancelledError], a [*ExecutionError] wrapping the producing
// computation's failure, or ctx's error if the caller was asked to stop
// waiting (the promise itself is left untouched in that case).
//
// A nil ctx is treated as [context.Background].
func (p *Promise[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s := p.loadState(); s != nil && s.kind != kindDelegated {
		return p.report(s)
	}
	w := newWaiter()
	if !p.pushWaiter(w) {
		// lost the push race to a concurrent completion
		return p.report(p.loadState())
	}
	for {
		select {
		case <-w.ready:
		case <-ctx.Done():
			p.removeWaiter(w)
			return zero, ctx.Err()
		}
		// the wake follows the terminal transition, but re-check anyway
		if s := p.loadState(); s != nil && s.kind != kindDelegated {
			return p.report(s)
		}
	}
}

// TimedGet is [Promise.Get] bounded by a wait budget. It returns
// [ErrGetTimeout] once the budget is exhausted, without affecting the
// promise. Budgets at or below [Config.SpinWait] poll without parking,
// since parking has non-trivial wake latency; longer budgets park for the
// bulk of the wait and spin out the remainder.
func (p *Promise[T]) TimedGet(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s := p.loadState(); s != nil && s.kind != kindDelegated {
		return p.report(s)
	}
	deadline := time.Now().Add(timeout)
	spin := p.config().spin
	parkBudget := timeout
	if spin > 0 {
		parkBudget -= spin
	}
	if parkBudget > 0 {
		w := newWaiter()
		if !p.pushWaiter(w) {
			return p.report(p.loadState())
		}
		timer := time.NewTimer(parkBudget)
		defer timer.Stop()
	parked:
		for {
			select {
			case <-w.ready:
				if s := p.loadState(); s != nil && s.kind != kindDelegated {
					return p.report(s)
				}
			case <-ctx.Done():
				p.removeWaiter(w)
				return zero, ctx.Err()
			case <-timer.C:
				p.removeWaiter(w)
				break parked
			}
		}
	}
	if spin > 0 {
		for time.Now().Before(deadline) {
			if s := p.loadState(); s != nil && s.kind != kindDelegated {
				return p.report(s)
			}
			if err := ctx.Err(); err != nil {
				return zero, err
			}
			runtime.Gosched()
		}
	}
	// a race may have completed the cell during the final stretch
	if s := p.loadState(); s != nil && s.kind != kindDelegated {
		return p.report(s)
	}
	return zero, ErrGetTimeout
}

// report unwraps a terminal state record into the accessor result.
func (p *Promise[T]) report(s *stateRecord[T]) (T, error) {
	var zero T
	switch {
	case s == nil || s.kind == kindDelegated:
		panic(`promise: report of incomplete promise`)
	case s.kind == kindCancelled:
		return zero, &CancelledError{cause: s.err}
	case s.kind == kindFailure:
		return zero, &ExecutionError{cause: s.err}
	}
	return s.value, nil
}

// AddListener registers fn to run on ex once the promise completes, or
// submits it immediately if it already has. Listeners registered on a
// still-pending promise fire exactly once, in registration order. A nil ex
// means [Direct].
func (p *Promise[T]) AddListener(fn func(), ex Executor) {
	if fn == nil {
		panic(`promise: nil listener`)
	}
	if ex == nil {
		ex = Direct
	}
	l := &listener[T]{fn: fn, ex: ex}
	if !p.pushListener(l) {
		p.submitListener(fn, ex)
	}
}

// Cancel attempts to terminate a pending (or delegated) promise by
// cancellation, reporting whether this call's attempt won. Only the first
// caller to race the pending state wins; every later call returns false.
//
// When mayInterrupt is set, the winning call also requests best-effort
// interruption of the underlying computation, without blocking on it. If
// the promise had delegated, cancellation propagates down the chain,
// best-effort, reusing this call's cancellation record per hop.
func (p *Promise[T]) Cancel(mayInterrupt bool) bool {
	var (
		rec *stateRecord[T]
		won bool
	)
	for cur := p; cur != nil; {
		raw := helper.load(&cur.state)
		s := (*stateRecord[T])(raw)
		if s != nil && s.kind != kindDelegated {
			break // already terminal
		}
		if rec == nil {
			rec = &stateRecord[T]{kind: kindCancelled, interrupted: mayInterrupt}
			if cur.config().cancelCause {
				rec.err = errors.New(`promise: Cancel was called`)
			}
		}
		if !helper.cas(&cur.state, raw, unsafe.Pointer(rec)) {
			continue // lost the CAS; re-read this cell's state
		}
		if cur == p {
			won = true
		}
		if mayInterrupt && cur.interrupt != nil {
			cur.interrupt()
		}
		cur.complete()
		if s == nil {
			break
		}
		cur = s.target
	}
	return won
}

// set completes the cell with a value. Restricted to package internals and
// the exported completer types.
func (p *Promise[T]) set(value T) bool {
	return p.terminate(&stateRecord[T]{kind: kindValue, value: value})
}

// fail completes the cell with the producing computation's error.
func (p *Promise[T]) fail(err error) bool {
	if err == nil {
		panic(`promise: nil failure`)
	}
	return p.terminate(&stateRecord[T]{kind: kindFailure, err: err})
}

func (p *Promise[T]) terminate(rec *stateRecord[T]) bool {
	if !helper.cas(&p.state, nil, unsafe.Pointer(rec)) {
		return false
	}
	p.complete()
	return true
}

// setPromise delegates the cell's outcome to target: once target reaches a
// terminal state, this cell adopts it (with a delegate cancellation's
// interruption flag erased, since interruption cannot be attributed across
// the boundary). Reports whether the delegation was installed.
func (p *Promise[T]) setPromise(target *Promise[T]) bool {
	if target == nil {
		panic(`promise: nil delegate`)
	}
	rec := &stateRecord[T]{kind: kindDelegated, owner: p, target: target}
	if !helper.cas(&p.state, nil, unsafe.Pointer(rec)) {
		return false
	}
	l := &listener[T]{del: rec}
	if !target.pushListener(l) {
		// target already terminal; adopt directly, off the public accessor
		if helper.cas(&p.state, unsafe.Pointer(rec), unsafe.Pointer(target.adoptionValue())) {
			p.complete()
		}
	}
	return true
}

// adoptionValue translates the cell's terminal state for adoption by a
// delegating cell.
func (p *Promise[T]) adoptionValue() *stateRecord[T] {
	s := p.loadState()
	if s == nil || s.kind == kindDelegated {
		panic(`promise: adoption of incomplete delegate`)
	}
	if s.kind == kindCancelled && s.interrupted {
		return &stateRecord[T]{kind: kindCancelled, err: s.err}
	}
	return s
}

// complete wakes waiters, drains and submits listeners (in registration
// order), and runs the afterDone hook, for this cell and then iteratively
// for every delegating cell whose outcome this completion resolves. The
// iteration (rather than recursion) bounds stack depth under arbitrarily
// long delegation chains.
func (p *Promise[T]) complete() {
	var queue []*Promise[T]
	for cur := p; cur != nil; {
		cur.releaseWaiters()
		for l := cur.drainListeners(); l != nil; l = (*listener[T])(helper.load(&l.next)) {
			if d := l.del; d != nil {
				// d.owner delegated to cur; resolve it with cur's outcome,
				// unless something (i.e. cancellation) beat the adoption
				if helper.cas(&d.owner.state, unsafe.Pointer(d), unsafe.Pointer(cur.adoptionValue())) {
					queue = append(queue, d.owner)
				}
			} else {
				cur.submitListener(l.fn, l.ex)
			}
		}
		if cur.afterDone != nil {
			cur.afterDone()
		}
		if len(queue) == 0 {
			return
		}
		cur = queue[0]
		queue = queue[1:]
	}
}

// String renders a non-blocking diagnostic view of the promise.
func (p *Promise[T]) String() string {
	switch s := p.loadState(); {
	case s == nil:
		return `promise[pending]`
	case s.kind == kindDelegated:
		return `promise[delegated]`
	case s.kind == kindCancelled:
		return `promise[cancelled]`
	case s.kind == kindFailure:
		return fmt.Sprintf(`promise[failure: %v]`, s.err)
	default:
		return fmt.Sprintf(`promise[value: %v]`, s.value)
	}
}
