package heaptest

import "testing"

func TestArenaSkew(t *testing.T) {
	arena := NewArena(4096, WithSkew(8))

	for i := 0; i < 16; i++ {
		ptr := arena.Alloc(uintptr(i + 1))
		if ptr == nil {
			t.Fatalf("Allocation %d failed", i)
		}

		if uintptr(ptr)%16 != 8 {
			t.Errorf("Allocation %d residue %d mod 16, want 8", i, uintptr(ptr)%16)
		}
	}
}

func TestArenaFailNext(t *testing.T) {
	arena := NewArena(4096)

	arena.FailNext(2)

	if arena.Alloc(8) != nil || arena.Alloc(8) != nil {
		t.Error("Forced failures should return nil")
	}

	if arena.Alloc(8) == nil {
		t.Error("Allocation should succeed once forced failures are spent")
	}
}

func TestArenaAccounting(t *testing.T) {
	arena := NewArena(4096)

	ptr := arena.Alloc(100)
	if arena.Size(ptr) != 100 {
		t.Errorf("Size = %d, want 100", arena.Size(ptr))
	}

	if arena.Live() != 1 {
		t.Errorf("Live = %d, want 1", arena.Live())
	}

	arena.Free(ptr)
	arena.Free(ptr) // second free of the same pointer is a bad free

	if arena.Live() != 0 {
		t.Errorf("Live = %d, want 0", arena.Live())
	}

	if arena.BadFrees() != 1 {
		t.Errorf("BadFrees = %d, want 1", arena.BadFrees())
	}
}
