package promise

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Settled is one position of an [AllSettled] result. OK distinguishes a
// collected value from an absent one (the input failed or was cancelled).
type Settled[T any] struct {
	Value T
	OK    bool
}

// All derives a promise for the values of every input, in input order. The
// first input failure fails the output immediately without waiting for
// siblings (which are then cancelled); the first cancelled input cancels
// the output. Completes with an empty slice when called with no inputs.
func All[T any](config *Config, promises ...*Promise[T]) *Promise[[]T] {
	values := make([]T, len(promises))
	return newAggregate(config, true, promises,
		func(i int, v T, ok bool) {
			if ok {
				values[i] = v
			}
		},
		func() []T { return values })
}

// AllSettled derives a promise that completes once every input has, with
// one [Settled] per input position. It never fails or cancels on account of
// its inputs.
func AllSettled[T any](config *Config, promises ...*Promise[T]) *Promise[[]Settled[T]] {
	settled := make([]Settled[T], len(promises))
	return newAggregate(config, false, promises,
		func(i int, v T, ok bool) {
			settled[i] = Settled[T]{Value: v, OK: ok}
		},
		func() []Settled[T] { return settled })
}

// WhenAllSucceed is [All] without value collection: it completes once every
// input has succeeded, fails fast on the first input failure, and cancels
// on the first cancelled input.
func WhenAllSucceed[T any](config *Config, promises ...*Promise[T]) *Promise[struct{}] {
	return newAggregate[T, struct{}](config, true, promises, nil,
		func() struct{} { return struct{}{} })
}

// WhenAllComplete is [AllSettled] without value collection: it completes
// once every input has completed, however each of them did.
func WhenAllComplete[T any](config *Config, promises ...*Promise[T]) *Promise[struct{}] {
	return newAggregate[T, struct{}](config, false, promises, nil,
		func() struct{} { return struct{}{} })
}

// aggregate fans N input promises into one output. In fail-fast mode each
// input slot is collected by that input's listener before it decrements
// remaining, and the finisher only reads after remaining hits zero, so the
// counter carries the visibility edge for the collected values. In
// wait-for-all mode the final decrement does all the collecting itself.
type aggregate[T, O any] struct {
	out       *Promise[O]
	inputs    unsafe.Pointer // *[]*Promise[T]; released once the output completes
	remaining atomic.Int64
	seen      unsafe.Pointer // *errorSet; installed lazily on the first late failure
	collect   func(i int, v T, ok bool)
	finish    func() O
}

func newAggregate[T, O any](config *Config, allMustSucceed bool, promises []*Promise[T], collect func(int, T, bool), finish func() O) *Promise[O] {
	a := &aggregate[T, O]{
		out:     &Promise[O]{cfg: resolveConfig(config)},
		collect: collect,
		finish:  finish,
	}
	a.out.afterDone = a.afterDone
	if len(promises) == 0 {
		a.out.set(finish())
		return a.out
	}
	inputs := make([]*Promise[T], len(promises))
	for i, in := range promises {
		if in == nil {
			panic(`promise: nil aggregate input`)
		}
		inputs[i] = in
	}
	helper.store(&a.inputs, unsafe.Pointer(&inputs))
	a.remaining.Store(int64(len(inputs)))
	if allMustSucceed {
		for i, in := range inputs {
			in.AddListener(func() { a.handleOne(i, in) }, Direct)
		}
	} else {
		// one shared listener per aggregate; values are collected in a
		// single walk once the last input lands
		for _, in := range inputs {
			in.AddListener(a.handleAnyOrder, Direct)
		}
	}
	return a.out
}

// handleOne runs once per input of a fail-fast aggregate, on that input's
// completion. Failure causes are lifted from the input's state directly, so
// the output records the original cause rather than the input accessor's
// wrapper.
func (a *aggregate[T, O]) handleOne(i int, in *Promise[T]) {
	s := in.loadState()
	switch s.kind {
	case kindValue:
		if a.collect != nil {
			a.collect(i, s.value, true)
		}
	case kindFailure:
		if a.collect != nil {
			var zero T
			a.collect(i, zero, false)
		}
		a.handleFailure(s.err)
	case kindCancelled:
		if a.collect != nil {
			var zero T
			a.collect(i, zero, false)
		}
		a.out.Cancel(false)
	}
	if a.remaining.Add(-1) == 0 {
		a.out.set(a.finish())
	}
}

// handleAnyOrder is the shared wait-for-all listener. The final decrement
// collects every input's outcome, unless the output already completed (by
// external cancellation) and released the inputs.
func (a *aggregate[T, O]) handleAnyOrder() {
	if a.remaining.Add(-1) != 0 {
		return
	}
	if a.collect != nil {
		if raw := helper.load(&a.inputs); raw != nil {
			for i, in := range *(*[]*Promise[T])(raw) {
				if s := in.loadState(); s.kind == kindValue {
					a.collect(i, s.value, true)
				} else {
					var zero T
					a.collect(i, zero, false)
				}
			}
		}
	}
	a.out.set(a.finish())
}

// handleFailure installs err as the output's failure, or, when the output
// already completed, logs the late arrival. Late failures that only repeat
// already-reported cause chains log at debug (rate limited per message when
// a limiter is configured); anything carrying a new cause logs at error.
func (a *aggregate[T, O]) handleFailure(err error) {
	if a.out.fail(err) {
		return
	}
	cfg := a.out.config()
	if cfg.logger == nil {
		return
	}
	if a.seenSet().addChain(err) {
		cfg.logger.Err().
			Err(err).
			Log(`promise: aggregate input failed after completion`)
		return
	}
	if cfg.limiter != nil {
		if _, ok := cfg.limiter.Allow(err.Error()); !ok {
			return
		}
	}
	cfg.logger.Debug().
		Err(err).
		Log(`promise: aggregate input repeated an earlier failure`)
}

// seenSet returns the late-failure dedup set, installing it on first use,
// seeded with the failure that settled the output so an identical late
// arrival counts as a duplicate.
func (a *aggregate[T, O]) seenSet() *errorSet {
	for {
		if p := helper.load(&a.seen); p != nil {
			return (*errorSet)(p)
		}
		set := &errorSet{seen: make(map[string]struct{})}
		if s := a.out.loadState(); s != nil && s.kind == kindFailure {
			set.addChain(s.err)
		}
		if helper.cas(&a.seen, nil, unsafe.Pointer(set)) {
			return set
		}
	}
}

// afterDone releases the input slice and cancels whatever inputs are still
// outstanding, carrying the output's own interruption status through.
func (a *aggregate[T, O]) afterDone() {
	raw := helper.swap(&a.inputs, nil)
	if raw == nil {
		return
	}
	interrupt := a.out.wasInterrupted()
	for _, in := range *(*[]*Promise[T])(raw) {
		if !in.Done() {
			in.Cancel(interrupt)
		}
	}
}

// errorSet tracks failure cause chains by message. The mutex only guards
// the map itself; it is never held around completion or logging.
type errorSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// addChain records every link of err's unwrap chain, reporting whether any
// link was previously unseen.
func (s *errorSet) addChain(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added bool
	for e := err; e != nil; e = errors.Unwrap(e) {
		k := e.Error()
		if _, ok := s.seen[k]; !ok {
			s.seen[k] = struct{}{}
			added = true
		}
	}
	return added
}
