// allocprobe exercises the aligned heap with a randomized
// allocate/resize/free workload, verifying alignment and data integrity as
// it goes, and prints the heap's traffic counters.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	"github.com/orizon-lang/alignedheap"
)

func main() {
	var (
		probes  int
		maxSize int
		seed    int64
	)
	flag.IntVar(&probes, "n", 10000, "number of probe iterations")
	flag.IntVar(&maxSize, "max", 4096, "maximum allocation size in bytes")
	flag.Int64Var(&seed, "seed", 1, "random seed")
	flag.Parse()

	if probes <= 0 || maxSize <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -max must be positive")
		os.Exit(2)
	}

	rng := rand.New(rand.NewSource(seed))
	h := alignedheap.Default()

	type block struct {
		ptr  unsafe.Pointer
		size uintptr
		tag  byte
	}

	var live []block

	fill := func(b block) {
		data := unsafe.Slice((*byte)(b.ptr), b.size)
		for i := range data {
			data[i] = b.tag
		}
	}

	check := func(b block) bool {
		data := unsafe.Slice((*byte)(b.ptr), b.size)
		for i := range data {
			if data[i] != b.tag {
				return false
			}
		}

		return true
	}

	for i := 0; i < probes; i++ {
		switch {
		case len(live) == 0 || rng.Intn(3) == 0:
			size := uintptr(rng.Intn(maxSize)) + 1

			ptr := h.Malloc(size)
			if ptr == nil {
				fmt.Fprintf(os.Stderr, "probe %d: malloc(%d) failed\n", i, size)
				os.Exit(1)
			}

			if uintptr(ptr)%alignedheap.MinAlign != 0 {
				fmt.Fprintf(os.Stderr, "probe %d: misaligned pointer %p\n", i, ptr)
				os.Exit(1)
			}

			b := block{ptr: ptr, size: size, tag: byte(i)}
			fill(b)
			live = append(live, b)

		case rng.Intn(2) == 0:
			j := rng.Intn(len(live))
			b := live[j]

			newSize := uintptr(rng.Intn(maxSize)) + 1

			ptr := h.Realloc(b.ptr, newSize)
			if ptr == nil {
				fmt.Fprintf(os.Stderr, "probe %d: realloc(%d) failed\n", i, newSize)
				os.Exit(1)
			}

			kept := b.size
			if newSize < kept {
				kept = newSize
			}

			moved := block{ptr: ptr, size: kept, tag: b.tag}
			if !check(moved) {
				fmt.Fprintf(os.Stderr, "probe %d: realloc lost data\n", i)
				os.Exit(1)
			}

			moved.size = newSize
			fill(moved)
			live[j] = moved

		default:
			j := rng.Intn(len(live))
			b := live[j]

			if !check(b) {
				fmt.Fprintf(os.Stderr, "probe %d: block corrupted before free\n", i)
				os.Exit(1)
			}

			h.Free(b.ptr)
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}

	for _, b := range live {
		h.Free(b.ptr)
	}

	stats := h.Stats()
	fmt.Printf("probes:        %d\n", probes)
	fmt.Printf("allocations:   %d\n", stats.AllocCount)
	fmt.Printf("frees:         %d\n", stats.FreeCount)
	fmt.Printf("bytes in use:  %d\n", stats.BytesInUse)
	fmt.Printf("heap pages:    %d\n", stats.HeapPages)
}
