//go:build !heapmmap

package heap

// Default returns the backend selected at build time. Without the heapmmap
// tag the Go-heap adapter backs the allocator.
func Default() Backend { return NewGoHeap() }
