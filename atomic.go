package promise

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// atomicHelper is the pointer-update strategy shared by every cell in the
// process. It is selected exactly once, at package initialization, and
// abstracts the load/store/swap/CAS operations used for the state slot, the
// waiter and listener stack heads, and the intrusive next links.
//
// The native implementation delegates to sync/atomic. The locked
// implementation preserves the same externally observable CAS-style
// contract using narrow, per-bucket mutexes, and exists as a last resort
// for targets where the native probe fails.
type atomicHelper interface {
	load(addr *unsafe.Pointer) unsafe.Pointer
	store(addr *unsafe.Pointer, v unsafe.Pointer)
	swap(addr *unsafe.Pointer, v unsafe.Pointer) unsafe.Pointer
	cas(addr *unsafe.Pointer, old, v unsafe.Pointer) bool
}

var helper = selectAtomicHelper()

// tombstone marks a drained waiter or listener stack. It is distinct from
// nil, which means "still pending, empty".
var tombstone = unsafe.Pointer(new(int64))

type nativeHelper struct{}

func (nativeHelper) load(addr *unsafe.Pointer) unsafe.Pointer { return atomic.LoadPointer(addr) }

func (nativeHelper) store(addr *unsafe.Pointer, v unsafe.Pointer) { atomic.StorePointer(addr, v) }

func (nativeHelper) swap(addr *unsafe.Pointer, v unsafe.Pointer) unsafe.Pointer {
	return atomic.SwapPointer(addr, v)
}

func (nativeHelper) cas(addr *unsafe.Pointer, old, v unsafe.Pointer) bool {
	return atomic.CompareAndSwapPointer(addr, old, v)
}

// lockedHelper is the per-bucket synchronization fallback. Buckets are
// keyed by field address, so contention is confined to the (rare) case of
// distinct fields hashing to the same stripe.
type lockedHelper struct {
	locks [32]sync.Mutex
}

func newLockedHelper() *lockedHelper { return new(lockedHelper) }

func (h *lockedHelper) bucket(addr *unsafe.Pointer) *sync.Mutex {
	return &h.locks[(uintptr(unsafe.Pointer(addr))>>4)%uintptr(len(h.locks))]
}

func (h *lockedHelper) load(addr *unsafe.Pointer) unsafe.Pointer {
	mu := h.bucket(addr)
	mu.Lock()
	defer mu.Unlock()
	return *addr
}

func (h *lockedHelper) store(addr *unsafe.Pointer, v unsafe.Pointer) {
	mu := h.bucket(addr)
	mu.Lock()
	defer mu.Unlock()
	*addr = v
}

func (h *lockedHelper) swap(addr *unsafe.Pointer, v unsafe.Pointer) (old unsafe.Pointer) {
	mu := h.bucket(addr)
	mu.Lock()
	defer mu.Unlock()
	old = *addr
	*addr = v
	return old
}

func (h *lockedHelper) cas(addr *unsafe.Pointer, old, v unsafe.Pointer) bool {
	mu := h.bucket(addr)
	mu.Lock()
	defer mu.Unlock()
	if *addr != old {
		return false
	}
	*addr = v
	return true
}

// selectAtomicHelper probes the native pointer CAS once, falling back to
// per-bucket locking if the probe faults or misbehaves.
func selectAtomicHelper() (h atomicHelper) {
	defer func() {
		if r := recover(); r != nil {
			h = newLockedHelper()
		}
	}()
	var (
		slot  unsafe.Pointer
		probe = unsafe.Pointer(new(int64))
	)
	if !atomic.CompareAndSwapPointer(&slot, nil, probe) ||
		atomic.SwapPointer(&slot, nil) != probe ||
		atomic.LoadPointer(&slot) != nil {
		return newLockedHelper()
	}
	return nativeHelper{}
}

// for testing purposes
func setAtomicHelper(h atomicHelper) (restore func()) {
	prev := helper
	helper = h
	return func() { helper = prev }
}
