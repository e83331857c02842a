// Package alignedheap exposes a C-ABI-shaped allocation surface — Malloc,
// Calloc, Realloc, Free, PosixMemalign, UsableSize — with a guaranteed
// 16-byte minimum alignment, independent of what the underlying heap
// backend provides. Backends that only hand out word-aligned memory are
// wrapped in a hidden-header alignment shim; backends that are natively
// aligned are forwarded to unchanged.
package alignedheap

import (
	"sync/atomic"
	"unsafe"

	"github.com/orizon-lang/alignedheap/internal/heap"
	"github.com/orizon-lang/alignedheap/internal/memalign"
)

// MinAlign is the minimum alignment of every pointer returned by this
// package.
const MinAlign = memalign.MinAlign

// Status codes returned by PosixMemalign.
const (
	StatusOK = memalign.StatusOK
	ENOMEM   = memalign.ENOMEM
	EINVAL   = memalign.EINVAL
)

// Stats is a snapshot of a heap's own allocation traffic.
type Stats = memalign.Stats

// Heap is the allocation contract shared by the alignment shim and the
// native forwarder. All failures surface as nil pointers or status codes;
// no operation panics or aborts on the contract paths.
type Heap interface {
	Malloc(size uintptr) unsafe.Pointer
	Calloc(count, elem uintptr) unsafe.Pointer
	Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
	PosixMemalign(out *unsafe.Pointer, alignment, size uintptr) int
	UsableSize(ptr unsafe.Pointer) uintptr
	Stats() Stats
}

// New resolves the implementation choice for backend once: backends
// reporting a native alignment of at least MinAlign get the direct
// forwarder, everything else goes through the manual-alignment shim.
func New(backend heap.Backend) Heap {
	if na, ok := backend.(heap.NativelyAligned); ok && na.Alignment() >= MinAlign {
		return newNativeHeap(backend, na.Alignment())
	}

	return &shimHeap{alloc: memalign.New(backend)}
}

var global atomic.Pointer[Heap]

func init() {
	h := New(heap.Default())
	global.Store(&h)
}

// Default returns the process-wide heap built on the compile-time default
// backend (or whatever Use installed).
func Default() Heap { return *global.Load() }

// Use replaces the process-wide heap. Blocks already allocated must be
// freed through the heap that produced them.
func Use(h Heap) { global.Store(&h) }

// Malloc allocates size bytes with MinAlign alignment on the default heap.
func Malloc(size uintptr) unsafe.Pointer { return Default().Malloc(size) }

// Calloc allocates a zero-filled block of count*elem bytes on the default
// heap.
func Calloc(count, elem uintptr) unsafe.Pointer { return Default().Calloc(count, elem) }

// Realloc resizes ptr on the default heap.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return Default().Realloc(ptr, size)
}

// Free releases ptr on the default heap.
func Free(ptr unsafe.Pointer) { Default().Free(ptr) }

// PosixMemalign allocates size bytes aligned to alignment on the default
// heap.
func PosixMemalign(out *unsafe.Pointer, alignment, size uintptr) int {
	return Default().PosixMemalign(out, alignment, size)
}

// UsableSize reports the usable size of ptr on the default heap.
func UsableSize(ptr unsafe.Pointer) uintptr { return Default().UsableSize(ptr) }

// shimHeap routes every operation through the hidden-header alignment core.
type shimHeap struct {
	alloc *memalign.Allocator
}

func (h *shimHeap) Malloc(size uintptr) unsafe.Pointer { return h.alloc.Allocate(size) }

func (h *shimHeap) Calloc(count, elem uintptr) unsafe.Pointer {
	return h.alloc.ZeroAllocate(count, elem)
}

func (h *shimHeap) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return h.alloc.Resize(ptr, size)
}

func (h *shimHeap) Free(ptr unsafe.Pointer) { h.alloc.Free(ptr) }

func (h *shimHeap) PosixMemalign(out *unsafe.Pointer, alignment, size uintptr) int {
	return h.alloc.AlignedAllocate(out, alignment, size)
}

func (h *shimHeap) UsableSize(ptr unsafe.Pointer) uintptr { return h.alloc.UsableSize(ptr) }

func (h *shimHeap) Stats() Stats { return h.alloc.Stats() }
