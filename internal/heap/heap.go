// Package heap defines the raw heap backend consumed by the aligned
// allocator. A backend hands out unaligned memory with alloc/free/size
// semantics; everything alignment-related lives above it. One adapter per
// platform capability set supplies this interface so the alignment logic is
// never duplicated per platform.
package heap

import "unsafe"

// DefaultPageSize is assumed for backends that cannot report their real page
// size. It feeds external bookkeeping only and carries no correctness weight.
const DefaultPageSize uintptr = 1 << 12

// Backend is the raw allocation primitive. Alloc returns nil on exhaustion
// and guarantees nothing about alignment beyond natural word alignment.
// Size reports the usable size of a live allocation, which may exceed the
// size originally requested. Thread-safety of the aligned allocator is
// exactly the thread-safety of its backend.
type Backend interface {
	Alloc(size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
	Size(ptr unsafe.Pointer) uintptr
}

// Resizer is implemented by backends with a native resize-with-relocation
// primitive. Contents up to min(old, new) size are preserved; nil is
// returned on exhaustion with the original allocation left intact.
type Resizer interface {
	Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer
}

// NativelyAligned is implemented by backends whose every allocation already
// satisfies a fixed alignment. The selector forwards calls straight to such
// a backend instead of routing them through the manual-alignment shim.
type NativelyAligned interface {
	Alignment() uintptr
}

// Pager is implemented by backends that know their real page size.
type Pager interface {
	PageSize() uintptr
}

// PageSizeOf returns the page size used for bookkeeping against b.
func PageSizeOf(b Backend) uintptr {
	if p, ok := b.(Pager); ok {
		return p.PageSize()
	}

	return DefaultPageSize
}
