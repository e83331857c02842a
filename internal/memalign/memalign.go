// Package memalign implements fixed-minimum-alignment allocation on top of
// a raw heap backend that guarantees nothing beyond word alignment. Every
// block carries a hidden pointer-sized header immediately before the user
// pointer holding the backend's base address, so free and resize can always
// recover the allocation the backend actually knows about.
//
// Block layout:
//
//	base ............. pointer returned by the backend
//	padding .......... 0..alignment-1 bytes
//	header ........... one uintptr word, value == base
//	user ............. aligned pointer handed to the caller
package memalign

import (
	"sync/atomic"
	"unsafe"

	"github.com/orizon-lang/alignedheap/internal/heap"
)

const (
	// MinAlign is the alignment every returned pointer satisfies. 16 bytes
	// covers common SIMD register requirements.
	MinAlign uintptr = 16

	// headerSize is the hidden word stored at user - headerSize.
	headerSize = unsafe.Sizeof(uintptr(0))
)

// Status codes returned by AlignedAllocate, matching the C errno values the
// surface is shaped after.
const (
	StatusOK = 0
	ENOMEM   = 12
	EINVAL   = 22
)

// Stats is a snapshot of the allocator's own traffic. BytesInUse counts
// backend usable bytes, so it includes padding and header overhead.
// HeapPages estimates the page footprint using the backend page size; it is
// bookkeeping only.
type Stats struct {
	AllocCount uint64
	FreeCount  uint64
	BytesInUse uintptr
	HeapPages  uintptr
}

// Allocator provides aligned allocation over an unaligned backend. It holds
// no lock of its own: concurrent use is safe exactly when the backend is.
type Allocator struct {
	backend    heap.Backend
	pageSize   uintptr
	allocCount atomic.Uint64
	freeCount  atomic.Uint64
	liveBytes  atomic.Int64
}

// New creates an allocator over backend.
func New(backend heap.Backend) *Allocator {
	return &Allocator{
		backend:  backend,
		pageSize: heap.PageSizeOf(backend),
	}
}

// alignUp rounds addr up to the next multiple of align (a power of two).
func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// blockBase reads the hidden header and returns the backend base pointer
// for a live user pointer.
func blockBase(user unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(*(*uintptr)(unsafe.Pointer(uintptr(user) - headerSize)))
}

// allocate is the single place alignment math happens. align must be a
// power of two >= headerSize.
func (a *Allocator) allocate(size, align uintptr) unsafe.Pointer {
	// Worst case needs align-1 bytes of padding plus the header word before
	// the user region.
	raw := a.backend.Alloc(size + align + headerSize - 1)
	if raw == nil {
		return nil
	}

	user := alignUp(uintptr(raw)+headerSize, align)
	*(*uintptr)(unsafe.Pointer(user - headerSize)) = uintptr(raw)

	a.allocCount.Add(1)
	a.liveBytes.Add(int64(a.backend.Size(raw)))

	return unsafe.Pointer(user)
}

// Allocate returns a MinAlign-aligned pointer to size usable bytes, or nil
// when the backend is exhausted. No retry. size 0 yields a valid minimal
// block that must still be freed.
func (a *Allocator) Allocate(size uintptr) unsafe.Pointer {
	return a.allocate(size, MinAlign)
}

// ZeroAllocate returns a MinAlign-aligned, zero-filled block of count*elem
// bytes. The multiplication is overflow-checked; overflow reports
// exhaustion (nil) rather than wrapping to a short allocation.
func (a *Allocator) ZeroAllocate(count, elem uintptr) unsafe.Pointer {
	total := count * elem
	if elem != 0 && total/elem != count {
		return nil
	}

	ptr := a.Allocate(total)
	if ptr == nil || total == 0 {
		return ptr
	}

	clear(unsafe.Slice((*byte)(ptr), total))

	return ptr
}

// Free releases a block obtained from this allocator. Freeing nil is a
// no-op. User data is never inspected; only the header word is read.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	base := blockBase(ptr)

	a.liveBytes.Add(-int64(a.backend.Size(base)))
	a.freeCount.Add(1)
	a.backend.Free(base)
}

// Resize grows or shrinks a block. nil behaves as Allocate(size); size 0
// frees ptr and returns nil (the documented contract, held consistently).
// A fresh aligned block is always allocated and min(old usable, size) bytes
// copied; the backend's own resize primitive is never used here because it
// would shift the alignment padding under the caller's data. On exhaustion
// the old block is left intact and nil is returned.
func (a *Allocator) Resize(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return a.Allocate(size)
	}

	if size == 0 {
		a.Free(ptr)

		return nil
	}

	newPtr := a.Allocate(size)
	if newPtr == nil {
		return nil
	}

	n := a.UsableSize(ptr)
	if size < n {
		n = size
	}

	if n > 0 {
		copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(ptr), n))
	}

	a.Free(ptr)

	return newPtr
}

// AlignedAllocate writes a pointer aligned to alignment through out and
// returns StatusOK. alignment must be a power of two no smaller than the
// pointer size, otherwise EINVAL. On exhaustion it returns ENOMEM. *out is
// only written on success.
func (a *Allocator) AlignedAllocate(out *unsafe.Pointer, alignment, size uintptr) int {
	if alignment < headerSize || alignment&(alignment-1) != 0 {
		return EINVAL
	}

	if alignment < MinAlign {
		alignment = MinAlign
	}

	ptr := a.allocate(size, alignment)
	if ptr == nil {
		return ENOMEM
	}

	*out = ptr

	return StatusOK
}

// UsableSize reports the bytes usable through ptr: the backend's usable
// size of the enclosing allocation minus padding and header. At least the
// requested size; often more. 0 for nil.
func (a *Allocator) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	base := blockBase(ptr)

	return a.backend.Size(base) - (uintptr(ptr) - uintptr(base))
}

// Stats returns a snapshot of the allocator's counters.
func (a *Allocator) Stats() Stats {
	live := a.liveBytes.Load()
	if live < 0 {
		live = 0
	}

	return Stats{
		AllocCount: a.allocCount.Load(),
		FreeCount:  a.freeCount.Load(),
		BytesInUse: uintptr(live),
		HeapPages:  (uintptr(live) + a.pageSize - 1) / a.pageSize,
	}
}
