//go:build unix

package heap

import (
	"testing"
	"unsafe"
)

func TestMmapHeap(t *testing.T) {
	h := NewMmapHeap()

	t.Run("PageAlignment", func(t *testing.T) {
		ptr := h.Alloc(100)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		if uintptr(ptr)%h.PageSize() != 0 {
			t.Errorf("Mapping not page-aligned: %p", ptr)
		}

		h.Free(ptr)
	})

	t.Run("PageRounding", func(t *testing.T) {
		ptr := h.Alloc(1)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		if size := h.Size(ptr); size != h.PageSize() {
			t.Errorf("Size = %d, want one page (%d)", size, h.PageSize())
		}

		h.Free(ptr)
	})

	t.Run("WriteAcrossMapping", func(t *testing.T) {
		size := 3*h.PageSize() + 17

		ptr := h.Alloc(size)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := unsafe.Slice((*byte)(ptr), h.Size(ptr))
		for i := range data {
			data[i] = byte(i % 256)
		}

		for i := range data {
			if data[i] != byte(i%256) {
				t.Fatalf("Data corruption at index %d", i)
			}
		}

		h.Free(ptr)
	})

	t.Run("ReallocPreservesData", func(t *testing.T) {
		ptr := h.Alloc(64)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := unsafe.Slice((*byte)(ptr), 64)
		for i := range data {
			data[i] = byte(255 - i)
		}

		newPtr := h.Realloc(ptr, 2*h.PageSize())
		if newPtr == nil {
			t.Fatal("Realloc failed")
		}

		moved := unsafe.Slice((*byte)(newPtr), 64)
		for i := range moved {
			if moved[i] != byte(255-i) {
				t.Fatalf("Data corruption at index %d after realloc", i)
			}
		}

		h.Free(newPtr)
	})

	t.Run("LiveAccounting", func(t *testing.T) {
		before := h.Live()

		ptr := h.Alloc(10)
		if h.Live() != before+1 {
			t.Errorf("Live = %d, want %d", h.Live(), before+1)
		}

		h.Free(ptr)

		if h.Live() != before {
			t.Errorf("Live = %d after free, want %d", h.Live(), before)
		}
	})
}
