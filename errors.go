package promise

import (
	"errors"
	"fmt"
	"time"
)

// ErrGetTimeout is returned by [Promise.TimedGet] when the wait budget is
// exhausted before the promise completes. It reports only on the caller's
// wait; the promise itself is left untouched.
var ErrGetTimeout = errors.New(`promise: TimedGet timeout`)

// CancelledError is returned by the blocking accessors of a cancelled
// promise. Cause is only recorded when [Config.CancelCause] is enabled, or
// when the cancellation carried one across a delegation boundary.
type CancelledError struct {
	cause error
}

func (e *CancelledError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf(`promise: cancelled: %v`, e.cause)
	}
	return `promise: cancelled`
}

func (e *CancelledError) Unwrap() error { return e.cause }

// ExecutionError wraps the error that failed the producing computation. A
// fresh wrapper is allocated per accessor call; the underlying cause is
// shared, and reachable via [errors.Unwrap], [errors.Is], and [errors.As].
type ExecutionError struct {
	cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf(`promise: computation failed: %v`, e.cause)
}

func (e *ExecutionError) Unwrap() error { return e.cause }

// TimeoutError is the failure cause installed by [WithTimeout] when the
// timer fires before the inner promise completes. It surfaces from the
// accessors wrapped in an [ExecutionError].
type TimeoutError struct {
	// After is the configured timeout that elapsed.
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(`promise: timed out after %s`, e.After)
}

// PanicError captures a panic raised while running a task. It becomes the
// failure cause of the associated [TaskPromise].
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf(`promise: task panicked: %v`, e.Value)
}
