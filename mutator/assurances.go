package mutator

import "github.com/westrhh/hhrun/gcstate"

// EnsureAssurances enforces the mutator-frontier invariant, mirroring
// HM_ensureHierarchicalHeapAssurances: it checks whether the stack is
// full, runs a local collection if forced or the allocation threshold was
// crossed, then grows the stack if it was full, then extends the HH so
// bytesRequested (and, if ensureCurrentDepth demands it, the current depth
// itself) is satisfiable. Failure to find room anywhere is fatal (OutOfHeap).
func (h *Heap) EnsureAssurances(bytesRequested uintptr, force, ensureCurrentDepth bool) error {
	thread := h.Thread
	hh := thread.HH

	growStack, stackBytes := h.stackGrowthNeeded()

	hh.UpdateValues(h.Frontier)
	if h.LimitPlusSlop < h.Frontier {
		gcstate.Die(gcstate.InvariantViolated, "limitPlusSlop (%v) < frontier (%v)", h.LimitPlusSlop, h.Frontier)
	}

	desiredScope := hh.DesiredCollectionScope(h.Config, thread.CurrentDepth)
	if force || desiredScope <= thread.CurrentDepth {
		if err := h.GC.CollectLocal(desiredScope, force); err != nil {
			return err
		}
		hh.BytesAllocatedSinceLastCollection = 0
		h.refreshFrontierFromHH()
	}

	if growStack {
		if err := h.growStack(stackBytes, ensureCurrentDepth); err != nil {
			return err
		}
	}

	if h.needsExtend(bytesRequested, ensureCurrentDepth) {
		if err := hh.Extend(h.Alloc, thread.CurrentDepth, bytesRequested); err != nil {
			gcstate.Die(gcstate.OutOfHeap, "%v", err)
		}
		h.refreshFrontierFromHH()
	}

	return nil
}

func (h *Heap) refreshFrontierFromHH() {
	hh := h.Thread.HH
	if hh.LastAllocatedChunk == nil {
		h.Frontier, h.Limit, h.LimitPlusSlop = gcstate.NilAddr, gcstate.NilAddr, gcstate.NilAddr
		return
	}
	h.Frontier = hh.GetFrontier()
	h.LimitPlusSlop = hh.GetLimit()
	h.Limit = h.limitWithSlop()
}

func (h *Heap) needsExtend(bytesRequested uintptr, ensureCurrentDepth bool) bool {
	hh := h.Thread.HH
	c := hh.LastAllocatedChunk
	if c == nil {
		return true
	}
	if ensureCurrentDepth && (c.List == nil || c.List.Depth != h.Thread.CurrentDepth) {
		return true
	}
	if !c.MightContainMultipleObjects {
		return true
	}
	// Measured against Limit, the bound tryBump's retry checks.
	return h.Frontier > h.Limit || uintptr(h.Limit-h.Frontier) < bytesRequested
}

// stackGrowthNeeded checks the mutator-stack invariant (the top
// of the stack must stay within its limit) and reports how many bytes a
// grown copy of the stack would need.
func (h *Heap) stackGrowthNeeded() (needed bool, bytes uintptr) {
	s := h.Thread.Stack
	if s == nil {
		return false, 0
	}
	if s.Top() <= s.Limit() {
		return false, 0
	}
	target := s.ShrinkReservedTarget(true) * 2
	return true, 2*gcstate.WordSize + uintptr(target)
}

// growStack allocates a larger stack object and copies the live portion
// of the old one over. This is the mutator-side half of stack growth; the
// collector-side half, shrinking on copy, lives in gcollect (see
// hheap.Stack.ShrinkReservedTarget).
func (h *Heap) growStack(stackBytes uintptr, ensureCurrentDepth bool) error {
	old := h.Thread.Stack
	hh := h.Thread.HH
	depth := h.Thread.CurrentDepth

	c := hh.LastAllocatedChunk
	needNewChunk := c == nil ||
		(ensureCurrentDepth && (c.List == nil || c.List.Depth != depth)) ||
		uintptr(h.LimitPlusSlop-h.Frontier) < stackBytes

	if needNewChunk {
		if err := hh.Extend(h.Alloc, depth, stackBytes); err != nil {
			gcstate.Die(gcstate.OutOfHeap, "%v", err)
		}
		h.refreshFrontierFromHH()
	}

	newStack, err := newStackFromOld(h, old, depth)
	if err != nil {
		return err
	}
	h.Thread.Stack = newStack
	return nil
}
