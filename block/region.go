// Package block implements the chunk & block allocator: it carves
// fixed-size blocks from a mapped region and groups them into
// variable-length chunks for chunklist.ChunkList to manage.
package block

import (
	"fmt"
	"syscall"

	"github.com/westrhh/hhrun/gcstate"
)

// BlockSize is the fixed power-of-two block size. 4KiB matches
// memory_and_heap/mem_linux.go's own page-granularity assumptions.
const BlockSize = 4096

// mapRegion reserves and commits n bytes of zeroed, anonymous memory,
// grounded directly on memory_and_heap/mem_linux.go's sysAllocOS,
// which wraps the same mmap(PROT_READ|PROT_WRITE, MAP_ANON|MAP_PRIVATE) call.
func mapRegion(n uintptr) ([]byte, error) {
	b, err := syscall.Mmap(-1, 0, int(n),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_ANON|syscall.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("block: mmap %d bytes: %w", n, err)
	}
	return b, nil
}

// unmapRegion releases memory obtained from mapRegion.
func unmapRegion(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return syscall.Munmap(b)
}

// addrOf returns the gcstate.Addr of the first byte of b.
func addrOf(b []byte) gcstate.Addr {
	if len(b) == 0 {
		return gcstate.NilAddr
	}
	return gcstate.Addr(uintptrOf(b))
}
