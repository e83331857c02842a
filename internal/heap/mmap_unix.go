//go:build unix

package heap

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapHeap is a Backend over anonymous private mmap(2) regions. Every
// allocation is its own mapping rounded up to whole pages, so returned
// pointers are page-aligned and the adapter reports native alignment.
// Implements Resizer by map-copy-unmap.
type MmapHeap struct {
	pageSize uintptr
	mappings map[unsafe.Pointer][]byte
	mu       sync.RWMutex
}

// NewMmapHeap creates an mmap-backed Backend.
func NewMmapHeap() *MmapHeap {
	return &MmapHeap{
		pageSize: uintptr(unix.Getpagesize()),
		mappings: make(map[unsafe.Pointer][]byte),
	}
}

// Alloc maps size bytes rounded up to whole pages, or returns nil when the
// kernel refuses the mapping.
func (h *MmapHeap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	length := (size + h.pageSize - 1) &^ (h.pageSize - 1)

	region, err := unix.Mmap(-1, 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil
	}

	ptr := unsafe.Pointer(&region[0])

	h.mu.Lock()
	h.mappings[ptr] = region
	h.mu.Unlock()

	return ptr
}

// Free unmaps ptr. Unknown pointers are ignored.
func (h *MmapHeap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h.mu.Lock()
	region, ok := h.mappings[ptr]
	if ok {
		delete(h.mappings, ptr)
	}
	h.mu.Unlock()

	if ok {
		_ = unix.Munmap(region)
	}
}

// Size reports the mapped length of a live allocation, 0 for unknown
// pointers. Always a whole number of pages.
func (h *MmapHeap) Size(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return uintptr(len(h.mappings[ptr]))
}

// Realloc moves ptr to a fresh mapping of size bytes, preserving
// min(old, new) bytes. The original mapping survives when the new one
// cannot be established.
func (h *MmapHeap) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return h.Alloc(size)
	}

	newPtr := h.Alloc(size)
	if newPtr == nil {
		return nil
	}

	h.mu.RLock()
	oldLen := uintptr(len(h.mappings[ptr]))
	h.mu.RUnlock()

	n := oldLen
	if size < n {
		n = size
	}

	if n > 0 {
		copy(unsafe.Slice((*byte)(newPtr), n), unsafe.Slice((*byte)(ptr), n))
	}

	h.Free(ptr)

	return newPtr
}

// Alignment reports the native alignment of every mapping.
func (h *MmapHeap) Alignment() uintptr { return h.pageSize }

// PageSize reports the system page size.
func (h *MmapHeap) PageSize() uintptr { return h.pageSize }

// Live returns the number of live mappings.
func (h *MmapHeap) Live() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.mappings)
}
