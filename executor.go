package promise

// Executor is the capability used to run listener callbacks. Submission is
// at-most-once per registration; no ordering is guaranteed across different
// executors. A panic raised by Execute itself is caught and logged by the
// cell, never propagated to the registrant.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the [Executor] interface.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// Direct runs callbacks inline, on the completing (or registering)
// goroutine. It is the default executor; callers accept the risk of running
// heavy work on the completer's goroutine.
var Direct Executor = ExecutorFunc(func(fn func()) { fn() })

// Goroutine runs each callback on its own new goroutine.
var Goroutine Executor = ExecutorFunc(func(fn func()) { go fn() })
