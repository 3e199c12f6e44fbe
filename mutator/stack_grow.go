package mutator

import (
	"github.com/westrhh/hhrun/hheap"
	"github.com/westrhh/hhrun/object"
)

// newStackFromOld allocates a fresh, larger stack object at depth and
// copies old's live bytes into it. The old stack's chunk is left for the
// next local collection to reclaim; growth itself is not a GC event.
func newStackFromOld(h *Heap, old *hheap.Stack, depth uint32) (*hheap.Stack, error) {
	used := old.Used()
	newReserved := old.Reserved() * 2
	if newReserved < used {
		newReserved = used * 2
	}

	ns, err := hheap.NewStack(h.Alloc, h.Thread.HH, depth, uintptr(newReserved))
	if err != nil {
		return nil, err
	}

	copy(
		ns.Chunk.Bytes()[uintptr(object.StackDataStart(ns.Addr)-ns.Chunk.Base()):],
		old.Chunk.Bytes()[uintptr(old.Bottom()-old.Chunk.Base()):uintptr(old.Bottom()-old.Chunk.Base())+uintptr(used)],
	)
	ns.SetUsed(used)
	return ns, nil
}
