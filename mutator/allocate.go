package mutator

import (
	"unsafe"

	"github.com/westrhh/hhrun/gcstate"
)

// Allocate bump-allocates n bytes, aligned to gcstate.WordSize, mirroring
// HM_HH_allocate's fast/slow split. The fast path is a single
// compare-and-advance against Limit; the slow path calls EnsureAssurances
// and retries once.
func (h *Heap) Allocate(n uintptr) (unsafe.Pointer, error) {
	n = alignUp(n, gcstate.WordSize)

	if p, ok := h.tryBump(n); ok {
		return p, nil
	}

	h.Thread.BytesNeeded = n
	if err := h.EnsureAssurances(n, false, false); err != nil {
		return nil, err
	}

	if p, ok := h.tryBump(n); ok {
		return p, nil
	}
	gcstate.Die(gcstate.OutOfHeap, "allocate: %d bytes still unavailable after slow path", n)
	panic("unreachable")
}

func (h *Heap) tryBump(n uintptr) (unsafe.Pointer, bool) {
	if gcstate.Addr(uintptr(h.Frontier)+n) > h.Limit {
		return nil, false
	}
	addr := h.Frontier
	h.Frontier += gcstate.Addr(n)
	c := h.Thread.HH.LastAllocatedChunk
	return c.PointerAt(addr), true
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
