package heap

import (
	"testing"
	"unsafe"
)

func TestGoHeap(t *testing.T) {
	h := NewGoHeap()

	t.Run("BasicAllocation", func(t *testing.T) {
		ptr := h.Alloc(1024)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := unsafe.Slice((*byte)(ptr), 1024)
		for i := range data {
			data[i] = byte(i % 256)
		}

		for i := range data {
			if data[i] != byte(i%256) {
				t.Errorf("Data corruption at index %d", i)
			}
		}

		h.Free(ptr)
	})

	t.Run("SizeRounding", func(t *testing.T) {
		ptr := h.Alloc(5)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		size := h.Size(ptr)
		if size < 5 {
			t.Errorf("Usable size %d below requested 5", size)
		}

		if size%sizeQuantum != 0 {
			t.Errorf("Usable size %d not a quantum multiple", size)
		}

		h.Free(ptr)
	})

	t.Run("ZeroSize", func(t *testing.T) {
		ptr := h.Alloc(0)
		if ptr == nil {
			t.Fatal("Zero-size allocation should yield a minimal block")
		}

		if h.Size(ptr) == 0 {
			t.Error("Minimal block should report non-zero usable size")
		}

		h.Free(ptr)
	})

	t.Run("FreeUnknownPointer", func(t *testing.T) {
		var local int

		h.Free(unsafe.Pointer(&local))
		h.Free(nil)
	})

	t.Run("LiveAccounting", func(t *testing.T) {
		if h.Live() != 0 {
			t.Fatalf("Expected empty heap, %d live", h.Live())
		}

		ptrs := make([]unsafe.Pointer, 10)
		for i := range ptrs {
			ptrs[i] = h.Alloc(128)
		}

		if h.Live() != 10 {
			t.Errorf("Live = %d, want 10", h.Live())
		}

		if h.LiveBytes() == 0 {
			t.Error("LiveBytes should be non-zero")
		}

		for _, ptr := range ptrs {
			h.Free(ptr)
		}

		if h.Live() != 0 || h.LiveBytes() != 0 {
			t.Errorf("Leak after freeing: live=%d bytes=%d", h.Live(), h.LiveBytes())
		}
	})
}

func TestGoHeapMemoryLimit(t *testing.T) {
	h := NewGoHeap(WithMemoryLimit(4096))

	ptr1 := h.Alloc(2048)
	if ptr1 == nil {
		t.Fatal("Allocation within limit failed")
	}

	ptr2 := h.Alloc(3072)
	if ptr2 != nil {
		t.Error("Allocation beyond limit should fail")
		h.Free(ptr2)
	}

	h.Free(ptr1)

	ptr3 := h.Alloc(3072)
	if ptr3 == nil {
		t.Error("Allocation should succeed after freeing memory")
	}

	h.Free(ptr3)
}

func TestGoHeapConcurrency(t *testing.T) {
	h := NewGoHeap()

	const numGoroutines = 10

	const allocsPerGoroutine = 100

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer func() { done <- true }()

			var ptrs []unsafe.Pointer

			for j := 0; j < allocsPerGoroutine; j++ {
				if ptr := h.Alloc(256); ptr != nil {
					ptrs = append(ptrs, ptr)
				}
			}

			for _, ptr := range ptrs {
				h.Free(ptr)
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	if h.Live() != 0 {
		t.Errorf("Expected no live allocations after concurrent churn, got %d", h.Live())
	}
}

func BenchmarkGoHeap(b *testing.B) {
	h := NewGoHeap()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ptr := h.Alloc(256)
			if ptr != nil {
				h.Free(ptr)
			}
		}
	})
}
