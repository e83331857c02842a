package alignedheap

import (
	"sync/atomic"
	"unsafe"

	"github.com/orizon-lang/alignedheap/internal/heap"
	"github.com/orizon-lang/alignedheap/internal/memalign"
)

// nativeHeap forwards calls unchanged to a backend whose allocations are
// already at least MinAlign aligned, so no header or padding is ever added.
// Pointers go to the backend exactly as the caller handed them in.
type nativeHeap struct {
	backend    heap.Backend
	resizer    heap.Resizer // nil when the backend has no native resize
	alignment  uintptr
	pageSize   uintptr
	allocCount atomic.Uint64
	freeCount  atomic.Uint64
	liveBytes  atomic.Int64
}

func newNativeHeap(backend heap.Backend, alignment uintptr) *nativeHeap {
	h := &nativeHeap{
		backend:   backend,
		alignment: alignment,
		pageSize:  heap.PageSizeOf(backend),
	}
	if r, ok := backend.(heap.Resizer); ok {
		h.resizer = r
	}

	return h
}

func (h *nativeHeap) Malloc(size uintptr) unsafe.Pointer {
	ptr := h.backend.Alloc(size)
	if ptr == nil {
		return nil
	}

	h.allocCount.Add(1)
	h.liveBytes.Add(int64(h.backend.Size(ptr)))

	return ptr
}

func (h *nativeHeap) Calloc(count, elem uintptr) unsafe.Pointer {
	total := count * elem
	if elem != 0 && total/elem != count {
		return nil
	}

	ptr := h.Malloc(total)
	if ptr == nil || total == 0 {
		return ptr
	}

	clear(unsafe.Slice((*byte)(ptr), total))

	return ptr
}

// Realloc keeps the same zero-size contract as the shim: size 0 frees ptr
// and returns nil.
func (h *nativeHeap) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return h.Malloc(size)
	}

	if size == 0 {
		h.Free(ptr)

		return nil
	}

	if h.resizer != nil {
		oldSize := h.backend.Size(ptr)

		newPtr := h.resizer.Realloc(ptr, size)
		if newPtr == nil {
			return nil
		}

		h.liveBytes.Add(int64(h.backend.Size(newPtr)) - int64(oldSize))

		return newPtr
	}

	newPtr := h.Malloc(size)
	if newPtr == nil {
		return nil
	}

	n := h.backend.Size(ptr)
	if size < n {
		n = size
	}

	if n > 0 {
		copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(ptr), n))
	}

	h.Free(ptr)

	return newPtr
}

func (h *nativeHeap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h.liveBytes.Add(-int64(h.backend.Size(ptr)))
	h.freeCount.Add(1)
	h.backend.Free(ptr)
}

// PosixMemalign forwards to the backend for alignments the backend already
// guarantees. Larger alignments cannot be forwarded without a header the
// backend would not understand on Free, so they report EINVAL.
func (h *nativeHeap) PosixMemalign(out *unsafe.Pointer, alignment, size uintptr) int {
	if alignment < unsafe.Sizeof(uintptr(0)) || alignment&(alignment-1) != 0 {
		return memalign.EINVAL
	}

	if alignment > h.alignment {
		return memalign.EINVAL
	}

	ptr := h.Malloc(size)
	if ptr == nil {
		return memalign.ENOMEM
	}

	*out = ptr

	return memalign.StatusOK
}

func (h *nativeHeap) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	return h.backend.Size(ptr)
}

func (h *nativeHeap) Stats() Stats {
	live := h.liveBytes.Load()
	if live < 0 {
		live = 0
	}

	return Stats{
		AllocCount: h.allocCount.Load(),
		FreeCount:  h.freeCount.Load(),
		BytesInUse: uintptr(live),
		HeapPages:  (uintptr(live) + h.pageSize - 1) / h.pageSize,
	}
}
