// Package heaptest provides a deterministic heap backend for allocator
// tests: a bump-pointer arena with an index of live allocations. It can
// skew every returned pointer off 16-byte boundaries and fail on demand,
// so alignment and exhaustion behavior are testable without a real heap.
package heaptest

import "unsafe"

const wordSize = unsafe.Sizeof(uintptr(0))

// Option configures an Arena.
type Option func(*Arena)

// WithSkew forces every returned pointer to the given residue mod 16.
// The residue must be a multiple of the word size; 8 yields pointers that
// are word-aligned but never 16-aligned.
func WithSkew(residue uintptr) Option {
	return func(a *Arena) { a.skew = (residue % 16) &^ (wordSize - 1) }
}

// WithPoison fills the arena's backing store with the given byte, so
// zero-fill behavior is observable instead of riding on Go's zeroed heap.
func WithPoison(b byte) Option {
	return func(a *Arena) {
		for i := range a.buf {
			a.buf[i] = b
		}
	}
}

// Arena is a fixed-capacity bump allocator implementing the heap Backend
// interface. Freed blocks are forgotten, never reused, which keeps every
// pointer ever handed out distinct.
type Arena struct {
	buf      []byte
	base     uintptr
	off      uintptr
	skew     uintptr
	useSkew  bool
	failNext int
	sizes    map[unsafe.Pointer]uintptr
	allocs   int
	badFrees int
}

// NewArena creates an arena of the given capacity.
func NewArena(capacity int, options ...Option) *Arena {
	if capacity < 64 {
		capacity = 64
	}

	// Backing store allocated as uint64s so the arena base is word aligned
	// regardless of how the Go heap places byte slices.
	words := make([]uint64, (capacity+7)/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), capacity)

	a := &Arena{
		buf:   buf,
		base:  uintptr(unsafe.Pointer(&buf[0])),
		sizes: make(map[unsafe.Pointer]uintptr),
		skew:  ^uintptr(0),
	}
	for _, opt := range options {
		opt(a)
	}

	a.useSkew = a.skew != ^uintptr(0)

	return a
}

// FailNext makes the next n calls to Alloc return nil.
func (a *Arena) FailNext(n int) { a.failNext = n }

// Alloc bump-allocates size bytes, word aligned, optionally skewed to the
// configured residue mod 16. Returns nil once the arena is exhausted or
// while a forced failure is pending.
func (a *Arena) Alloc(size uintptr) unsafe.Pointer {
	if a.failNext > 0 {
		a.failNext--

		return nil
	}

	if size == 0 {
		size = 1
	}

	off := (a.off + wordSize - 1) &^ (wordSize - 1)
	if a.useSkew {
		for (a.base+off)%16 != a.skew {
			off += wordSize
		}
	}

	if off+size > uintptr(len(a.buf)) {
		return nil
	}

	ptr := unsafe.Pointer(&a.buf[off])
	a.off = off + size
	a.sizes[ptr] = size
	a.allocs++

	return ptr
}

// Free drops ptr from the live index. Frees of unknown pointers are counted
// so tests can assert the allocator only ever frees what it was given.
func (a *Arena) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	if _, ok := a.sizes[ptr]; !ok {
		a.badFrees++

		return
	}

	delete(a.sizes, ptr)
}

// Size reports the recorded size of a live allocation, 0 for unknown
// pointers.
func (a *Arena) Size(ptr unsafe.Pointer) uintptr {
	return a.sizes[ptr]
}

// Live returns the number of live allocations.
func (a *Arena) Live() int { return len(a.sizes) }

// Allocs returns the number of successful allocations so far.
func (a *Arena) Allocs() int { return a.allocs }

// BadFrees returns the number of frees of pointers the arena never issued.
func (a *Arena) BadFrees() int { return a.badFrees }
