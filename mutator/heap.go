// Package mutator implements the allocating side of the mutator/collector
// split: the frontier-and-limit bump allocator, its allocation slow path,
// and the scoped (frontier, limit, limitPlusSlop) cache that mirrors the
// current chunk's write pointer for fast allocation.
package mutator

import (
	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/hheap"
)

// LimitSlop is the headroom kept between Limit and LimitPlusSlop so an
// allocation that slightly overshoots Limit can still be satisfied
// without re-checking against the chunk boundary on every bump (// "bytesNeeded ≤ limitPlusSlop − frontier"; GC_HEAP_LIMIT_SLOP in the
// source this is ported from).
const LimitSlop = 256

// Collector is the narrow interface mutator.Heap calls into when the
// allocation slow path decides a local collection is due. gcollect.Driver
// implements it; the indirection keeps this package from importing
// gcollect (mutator needs to trigger a collection and then reloads its own
// frontier from the HH — the same mutator/driver cycle
// HM_ensureHierarchicalHeapAssurances and HM_HH_collectLocal form around
// each other).
type Collector interface {
	CollectLocal(desiredScope uint32, force bool) error
}

// Heap is one worker's mutator-facing view onto its hierarchical heap: the
// per-worker GC_state fields that matter to allocation.
type Heap struct {
	Config gcstate.Config
	Alloc  *block.Allocator
	Thread *hheap.Thread
	GC     Collector

	Frontier       gcstate.Addr
	Limit          gcstate.Addr
	LimitPlusSlop  gcstate.Addr
}

// NewHeap wires a mutator view onto an already-constructed thread.
func NewHeap(cfg gcstate.Config, alloc *block.Allocator, thread *hheap.Thread, gc Collector) *Heap {
	return &Heap{Config: cfg, Alloc: alloc, Thread: thread, GC: gc}
}

// EnterLocalHeap loads the frontier triple from the HH into the mutator's
// fast-path cache, mirroring HM_enterLocalHeap.
func (h *Heap) EnterLocalHeap() {
	hh := h.Thread.HH
	if err := hh.EnsureNotEmpty(h.Alloc, h.Thread.CurrentDepth); err != nil {
		gcstate.Die(gcstate.OutOfHeap, "%v", err)
	}
	h.Frontier = hh.GetFrontier()
	h.LimitPlusSlop = hh.GetLimit()
	h.Limit = h.limitWithSlop()
}

// limitWithSlop computes Limit from the just-loaded LimitPlusSlop, holding
// back LimitSlop bytes only for a chunk more allocations may still land in.
// A dedicated single-object chunk (MightContainMultipleObjects false) is
// carved to fit exactly one already-known request rounded up to a block
// multiple, which can leave less than LimitSlop bytes of headroom past it;
// reserving slop there would make the allocation that just extended the
// heap for that very object fail its own retry.
func (h *Heap) limitWithSlop() gcstate.Addr {
	c := h.Thread.HH.LastAllocatedChunk
	if c != nil && !c.MightContainMultipleObjects {
		return h.LimitPlusSlop
	}
	return h.LimitPlusSlop - LimitSlop
}

// ExitLocalHeap writes the mutator's frontier back into the HH, mirroring
// HM_exitLocalHeap. Every EnterLocalHeap is paired with exactly one
// ExitLocalHeap through the call stack.
func (h *Heap) ExitLocalHeap() {
	h.Thread.HH.UpdateValues(h.Frontier)
}
