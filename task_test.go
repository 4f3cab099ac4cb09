package promise

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTask_runCompletes(t *testing.T) {
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if p.Done() {
		t.Fatal(`should be pending before Run`)
	}
	p.Run()
	if v, err := p.Get(context.Background()); err != nil || v != 42 {
		t.Errorf(`unexpected result: %v, %v`, v, err)
	}
}

func TestNewTask_errorFails(t *testing.T) {
	cause := errors.New(`boom`)
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		return 0, cause
	})
	p.Run()
	_, err := p.Get(context.Background())
	if !errors.Is(err, cause) {
		t.Errorf(`expected the task's error, got %v`, err)
	}
}

func TestNewTask_panicBecomesFailure(t *testing.T) {
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		panic(`kaboom`)
	})
	p.Run()
	_, err := p.Get(context.Background())
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf(`expected *PanicError in the chain, got %v`, err)
	}
	if panicErr.Value != `kaboom` {
		t.Errorf(`unexpected panic value: %v`, panicErr.Value)
	}
}

func TestNewTask_runsAtMostOnce(t *testing.T) {
	var runs int
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		runs++
		return runs, nil
	})
	p.Run()
	p.Run()
	p.Run()
	if runs != 1 {
		t.Errorf(`expected exactly one run, got %d`, runs)
	}
	if v, _ := p.Get(context.Background()); v != 1 {
		t.Errorf(`unexpected value: %d`, v)
	}
}

func TestNewTask_preCancelledNeverRuns(t *testing.T) {
	var ran bool
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		ran = true
		return 0, nil
	})
	if !p.Cancel(false) {
		t.Fatal(`Cancel should win while pending`)
	}
	p.Run()
	if ran {
		t.Error(`the task must not run after cancellation`)
	}
	if _, err := p.Get(context.Background()); !errors.As(err, new(*CancelledError)) {
		t.Errorf(`expected cancellation, got %v`, err)
	}
}

func TestNewTask_interruptCancelsContext(t *testing.T) {
	started := make(chan struct{})
	observed := make(chan error, 1)
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
		return 0, ctx.Err()
	})
	go p.Run()
	<-started
	if !p.Cancel(true) {
		t.Fatal(`Cancel should win`)
	}
	select {
	case err := <-observed:
		if err != context.Canceled {
			t.Errorf(`unexpected context error: %v`, err)
		}
	case <-time.After(time.Second):
		t.Fatal(`the task never observed the interruption`)
	}
	// the cancellation won the cell; the task's late error loses
	if _, err := p.Get(context.Background()); !errors.As(err, new(*CancelledError)) {
		t.Errorf(`expected cancellation, got %v`, err)
	}
}

func TestNewTask_cancelWithoutInterruptLeavesContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	interrupted := make(chan bool, 1)
	p := NewTask(nil, func(ctx context.Context) (int, error) {
		close(started)
		<-release
		interrupted <- ctx.Err() != nil
		return 42, nil
	})
	go p.Run()
	<-started
	p.Cancel(false)
	close(release)
	if <-interrupted {
		t.Error(`Cancel(false) must not cancel the task's context`)
	}
	if !p.Cancelled() {
		t.Error(`the cell should still be cancelled`)
	}
}

func TestNewTask_nilTaskPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error(`expected panic`)
		}
	}()
	NewTask[int](nil, nil)
}

func TestNewAsyncTask_delegates(t *testing.T) {
	inner := New[int](nil)
	p := NewAsyncTask(nil, func(ctx context.Context) (*Promise[int], error) {
		return &inner.Promise, nil
	})
	p.Run()
	if p.Done() {
		t.Fatal(`should be waiting on the inner promise`)
	}
	inner.Set(42)
	if v, err := p.Get(context.Background()); err != nil || v != 42 {
		t.Errorf(`unexpected result: %v, %v`, v, err)
	}
}

func TestNewAsyncTask_errorFails(t *testing.T) {
	cause := errors.New(`boom`)
	p := NewAsyncTask(nil, func(ctx context.Context) (*Promise[int], error) {
		return nil, cause
	})
	p.Run()
	if _, err := p.Get(context.Background()); !errors.Is(err, cause) {
		t.Errorf(`expected the task's error, got %v`, err)
	}
}

func TestNewAsyncTask_nilPromiseFails(t *testing.T) {
	p := NewAsyncTask(nil, func(ctx context.Context) (*Promise[int], error) {
		return nil, nil
	})
	p.Run()
	_, err := p.Get(context.Background())
	if err == nil || !errors.As(err, new(*ExecutionError)) {
		t.Fatalf(`expected a failure, got %v`, err)
	}
}

func TestTaskPromise_runnerReleasedAfterDone(t *testing.T) {
	p := NewTask(nil, func(ctx context.Context) (int, error) { return 1, nil })
	p.Run()
	if p.runner.Load() != nil {
		t.Error(`the runner should be dropped once the cell completes`)
	}
}
