package block

import "unsafe"

// uintptrOf returns the address of b's backing array. Kept as a single
// helper so every //go:nosplit-worthy pointer cast in this package funnels
// through one place, mirroring memory_and_heap/mem.go's isolation of unsafe.Pointer
// arithmetic into small leaf helpers (memory_and_heap/mem.go).
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
