package promise

// Settable is a promise whose outcome is supplied explicitly by the holder.
// Hand out the embedded [Promise] to consumers and keep the Settable with
// the producer.
type Settable[T any] struct {
	Promise[T]
}

// New initialises a pending [Settable]. Config may be nil for defaults, and
// is not retained.
func New[T any](config *Config) *Settable[T] {
	return &Settable[T]{Promise[T]{cfg: resolveConfig(config)}}
}

// Set completes the promise with value, reporting whether this call won the
// single assignment. A false return means the promise already completed, or
// already delegated via [Settable.SetPromise].
func (s *Settable[T]) Set(value T) bool {
	return s.set(value)
}

// Fail completes the promise with err, observable to accessors as a
// [*ExecutionError] wrapping err. Panics on a nil err.
func (s *Settable[T]) Fail(err error) bool {
	return s.fail(err)
}

// SetPromise forwards the promise's outcome to target: when target
// completes, this promise adopts the same value, failure, or cancellation,
// though the delegate's interruption flag never carries across. Cancelling
// this promise before target completes also cancels target, best-effort.
// Reports whether the delegation was installed.
func (s *Settable[T]) SetPromise(target *Promise[T]) bool {
	return s.setPromise(target)
}
