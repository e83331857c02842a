//go:build heapmmap

package heap

// Default returns the backend selected at build time. The heapmmap tag picks
// the mmap adapter, which is natively page-aligned.
func Default() Backend { return NewMmapHeap() }
