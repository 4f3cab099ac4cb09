// Package promise provides a lock-free, single-assignment completion cell
// ([Promise]), with blocking and asynchronous consumption, cancellation,
// delegation, timeout wrapping, and fan-in aggregation.
//
// # Architecture
//
// A [Promise] holds exactly one atomically-swapped state slot, plus two
// intrusive lock-free stacks: one of parked waiters (goroutines blocked in
// [Promise.Get] or [Promise.TimedGet]) and one of registered listeners
// ([Promise.AddListener]). Every mutating operation is a single
// compare-and-swap; there is no cell-wide lock, so unrelated listener
// registrations never serialize against unrelated completions.
//
// Completion is restricted: [Promise] itself only exposes the consumer
// surface. Producers hold a [Settable] (manual completion), a [TaskPromise]
// (completion fed by running a task), or one of the derived constructs
// ([WithTimeout], [All], [AllSettled], [WhenAllSucceed], [WhenAllComplete]).
//
// # Ordering and visibility
//
// Listeners fire in registration order relative to each other, after the
// single winning terminal-state transition. Anything a goroutine did before
// registering a listener, or before parking in a blocking accessor, is
// visible to the goroutine that later runs that listener or wakes that
// waiter.
//
// # Cancellation
//
// [Promise.Cancel] is idempotent; only the first caller to race the pending
// state wins. Cancelling with mayInterrupt set requests best-effort
// interruption of the underlying computation (for a [TaskPromise], the
// task's [context.Context] is cancelled), without ever blocking on it.
// Cancellation propagates through delegation chains iteratively, reusing a
// single cancellation record per call.
//
// # Logging
//
// Diagnostics (swallowed listener-submission panics, duplicate aggregate
// failures) are emitted through an injected logiface logger; see [Config].
// Without a configured logger, nothing is logged.
package promise
