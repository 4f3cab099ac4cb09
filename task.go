package promise

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// runner state sentinels. A live session is a *runnerSession; the
// interrupting and done markers fence the interrupter against a concurrent
// retiring runner.
var (
	runnerInterrupting = unsafe.Pointer(new(int64))
	runnerDone         = unsafe.Pointer(new(int64))
)

// runnerSession is one execution of a task, holding the cancellation lever
// an interrupter pulls.
type runnerSession struct {
	cancel context.CancelFunc
}

// taskRunner runs a task at most once, with interruption delivered as
// cancellation of the context the task was handed. Exactly one of task and
// async is set.
type taskRunner[T any] struct {
	task  func(ctx context.Context) (T, error)
	async func(ctx context.Context) (*Promise[T], error)
	state unsafe.Pointer // nil | *runnerSession | runnerInterrupting | runnerDone
}

// interrupt cancels the running session's context, if one is running. An
// interrupter that wins the session owns delivering the cancellation, and
// publishes done when it has; everyone else returns immediately.
func (r *taskRunner[T]) interrupt() {
	for {
		raw := helper.load(&r.state)
		switch raw {
		case nil, runnerInterrupting, runnerDone:
			return
		}
		if helper.cas(&r.state, raw, runnerInterrupting) {
			(*runnerSession)(raw).cancel()
			helper.store(&r.state, runnerDone)
			return
		}
	}
}

// retire releases the session once the task has returned. If an interrupter
// holds the session, the delivery window is expected to be brief, so spin
// until it publishes done rather than park.
func (r *taskRunner[T]) retire(sess *runnerSession) {
	if helper.cas(&r.state, unsafe.Pointer(sess), runnerDone) {
		return
	}
	for helper.load(&r.state) != runnerDone {
		runtime.Gosched()
	}
}

// TaskPromise binds a [Promise] to the task that produces its outcome. The
// task does not run until [TaskPromise.Run] is called, typically handed to
// a worker pool or a goroutine. Cancelling the promise with interruption
// cancels the context of an in-flight task.
type TaskPromise[T any] struct {
	Promise[T]
	runner atomic.Pointer[taskRunner[T]]
}

// NewTask binds a pending promise to task. Config may be nil for defaults.
//
// When run, the task's return value or error completes the promise, a
// panic completes it with a [*PanicError] failure, and a task that returns
// after the promise was cancelled leaves the cancellation in place.
func NewTask[T any](config *Config, task func(ctx context.Context) (T, error)) *TaskPromise[T] {
	if task == nil {
		panic(`promise: nil task`)
	}
	return newTaskPromise(config, &taskRunner[T]{task: task})
}

// NewAsyncTask binds a pending promise to a task producing another promise:
// the bound promise delegates to the task's result, adopting its eventual
// outcome. A task returning a nil promise (with a nil error) fails the
// bound promise.
func NewAsyncTask[T any](config *Config, task func(ctx context.Context) (*Promise[T], error)) *TaskPromise[T] {
	if task == nil {
		panic(`promise: nil task`)
	}
	return newTaskPromise(config, &taskRunner[T]{async: task})
}

func newTaskPromise[T any](config *Config, r *taskRunner[T]) *TaskPromise[T] {
	t := &TaskPromise[T]{Promise: Promise[T]{cfg: resolveConfig(config)}}
	t.runner.Store(r)
	t.Promise.interrupt = func() {
		if r := t.runner.Load(); r != nil {
			r.interrupt()
		}
	}
	t.Promise.afterDone = func() {
		// drop the task closure, and with it anything it captured
		t.runner.Store(nil)
	}
	return t
}

// Run executes the bound task. The first call runs it; every later call,
// and any call after the promise completed (e.g. by cancellation), returns
// immediately without running anything.
func (t *TaskPromise[T]) Run() {
	r := t.runner.Load()
	if r == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := &runnerSession{cancel: cancel}
	if !helper.cas(&r.state, nil, unsafe.Pointer(sess)) {
		return
	}
	// a cancellation that landed before this point wins; skip the work
	if !t.Done() {
		t.runTask(ctx, r)
	}
	r.retire(sess)
}

func (t *TaskPromise[T]) runTask(ctx context.Context, r *taskRunner[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			t.fail(&PanicError{Value: rec})
		}
	}()
	if r.async != nil {
		target, err := r.async(ctx)
		switch {
		case err != nil:
			t.fail(err)
		case target == nil:
			t.fail(errors.New(`promise: async task returned a nil promise`))
		default:
			t.setPromise(target)
		}
		return
	}
	v, err := r.task(ctx)
	if err != nil {
		t.fail(err)
	} else {
		t.set(v)
	}
}
