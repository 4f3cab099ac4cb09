package promise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"unsafe"
)

func TestSelectAtomicHelper_native(t *testing.T) {
	if _, ok := selectAtomicHelper().(nativeHelper); !ok {
		t.Error(`expected the native strategy on a supported target`)
	}
}

func TestLockedHelper_matchesNative(t *testing.T) {
	var (
		a  = unsafe.Pointer(new(int64))
		b  = unsafe.Pointer(new(int64))
		hs = []atomicHelper{nativeHelper{}, newLockedHelper()}
	)
	for _, h := range hs {
		var slot unsafe.Pointer
		if got := h.load(&slot); got != nil {
			t.Fatal(`expected nil initially`)
		}
		if !h.cas(&slot, nil, a) {
			t.Fatal(`CAS from nil should succeed`)
		}
		if h.cas(&slot, nil, b) {
			t.Fatal(`CAS with a stale expectation should fail`)
		}
		if got := h.swap(&slot, b); got != a {
			t.Fatal(`swap should return the previous value`)
		}
		h.store(&slot, nil)
		if got := h.load(&slot); got != nil {
			t.Fatal(`store should be observable`)
		}
	}
}

func TestLockedHelper_concurrentCAS(t *testing.T) {
	h := newLockedHelper()
	var (
		slot unsafe.Pointer
		wins int
		mu   sync.Mutex
		wg   sync.WaitGroup
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.cas(&slot, nil, unsafe.Pointer(new(int64))) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf(`expected exactly one winner, got %d`, wins)
	}
}

// the full lifecycle must behave identically under the fallback strategy
func TestLockedHelper_endToEnd(t *testing.T) {
	defer setAtomicHelper(newLockedHelper())()

	s := New[int](nil)
	var ran bool
	s.AddListener(func() { ran = true }, Direct)

	target := New[int](nil)
	s.SetPromise(&target.Promise)
	target.Set(42)
	if v, err := s.Get(context.Background()); err != nil || v != 42 {
		t.Fatalf(`unexpected result: %v, %v`, v, err)
	}
	if !ran {
		t.Error(`listener should have run`)
	}

	f := New[int](nil)
	cause := errors.New(`boom`)
	f.Fail(cause)
	if _, err := f.Get(context.Background()); !errors.Is(err, cause) {
		t.Errorf(`unexpected error: %v`, err)
	}

	c := New[int](nil)
	if !c.Cancel(true) || !c.Cancelled() {
		t.Error(`cancellation should behave identically`)
	}
}
