package heap

import (
	"sync"
	"unsafe"
)

// sizeQuantum rounds every request up so reported usable sizes behave like a
// real heap's: callers may observe more bytes than they asked for.
const sizeQuantum uintptr = 8

// Config controls the Go-heap adapter.
type Config struct {
	// MemoryLimit caps live bytes; 0 means unlimited. Exceeding it makes
	// Alloc return nil, which is how tests force exhaustion.
	MemoryLimit uintptr
}

type Option func(*Config)

// WithMemoryLimit caps the adapter's live bytes.
func WithMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.MemoryLimit = limit }
}

// GoHeap adapts the Go runtime heap to the Backend interface. Allocations
// are byte slices pinned in a pointer-keyed table so the garbage collector
// keeps them alive until Free drops the reference. Word alignment only; no
// native resize primitive.
type GoHeap struct {
	config    Config
	allocated map[unsafe.Pointer][]byte
	liveBytes uintptr
	mu        sync.RWMutex
}

// NewGoHeap creates a Go-heap backend.
func NewGoHeap(options ...Option) *GoHeap {
	var config Config
	for _, opt := range options {
		opt(&config)
	}

	return &GoHeap{
		config:    config,
		allocated: make(map[unsafe.Pointer][]byte),
	}
}

// Alloc returns a word-aligned pointer to size usable bytes, or nil when the
// configured memory limit would be exceeded.
func (h *GoHeap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	rounded := (size + sizeQuantum - 1) &^ (sizeQuantum - 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.config.MemoryLimit > 0 && h.liveBytes+rounded > h.config.MemoryLimit {
		return nil
	}

	block := make([]byte, rounded)
	ptr := unsafe.Pointer(&block[0])

	h.allocated[ptr] = block
	h.liveBytes += rounded

	return ptr
}

// Free releases ptr. Unknown pointers are ignored.
func (h *GoHeap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if block, ok := h.allocated[ptr]; ok {
		h.liveBytes -= uintptr(len(block))

		delete(h.allocated, ptr)
	}
}

// Size reports the usable size of a live allocation, 0 for unknown pointers.
func (h *GoHeap) Size(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return uintptr(len(h.allocated[ptr]))
}

// Live returns the number of live allocations. Used by leak checks in tests.
func (h *GoHeap) Live() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.allocated)
}

// LiveBytes returns the current live byte count.
func (h *GoHeap) LiveBytes() uintptr {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.liveBytes
}
