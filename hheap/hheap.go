// Package hheap implements the hierarchical heap data structure: a
// per-worker array of chunk lists indexed by depth, plus the bookkeeping
// (lastAllocatedChunk, collection threshold, bytes allocated since last
// collection) the mutator and collector both consult.
package hheap

import (
	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
)

// MaxDepth bounds the fork-nesting depth a single HH can track (// "fixed-capacity array levels[0..MAX_DEPTH)").
const MaxDepth = 128

// DefaultCollectionThreshold is the bytes-allocated-since-last-collection
// figure that triggers a local collection absent any other pressure,
// mirroring hierarchical-heap.c's size-class-driven heap growth policy
// (memory_and_heap/mheap.go) scaled down to this runtime's block size.
const DefaultCollectionThreshold = 4 * block.BlockSize

// HH is one worker's hierarchical heap.
type HH struct {
	Levels [MaxDepth]*chunklist.ChunkList

	LastAllocatedChunk *chunklist.Chunk

	CollectionThreshold                uintptr
	BytesAllocatedSinceLastCollection   uintptr
	BytesSurvivedLastCollection         uintptr
}

// NewHH creates an empty hierarchical heap.
func NewHH() *HH {
	return &HH{CollectionThreshold: DefaultCollectionThreshold}
}

// GetFrontier/GetLimit read the mutator-visible bump pointers straight off
// lastAllocatedChunk, matching HM_HH_getFrontier/HM_HH_getLimit.
func (h *HH) GetFrontier() gcstate.Addr {
	if h.LastAllocatedChunk == nil {
		return gcstate.NilAddr
	}
	return h.LastAllocatedChunk.Frontier
}

func (h *HH) GetLimit() gcstate.Addr {
	if h.LastAllocatedChunk == nil {
		return gcstate.NilAddr
	}
	return h.LastAllocatedChunk.Limit
}

// UpdateValues writes the mutator's current frontier back into
// lastAllocatedChunk (HM_HH_updateValues), and folds the bytes consumed
// since the last sync into the allocation counter.
func (h *HH) UpdateValues(frontier gcstate.Addr) {
	if h.LastAllocatedChunk == nil {
		return
	}
	delta := uintptr(frontier - h.LastAllocatedChunk.Frontier)
	h.LastAllocatedChunk.Frontier = frontier
	h.BytesAllocatedSinceLastCollection += delta
}

// EnsureNotEmpty extends the heap with a minimal chunk at depth if it has
// no allocated chunk at all yet (HM_HH_ensureNotEmpty).
func (h *HH) EnsureNotEmpty(alloc *block.Allocator, depth uint32) error {
	if h.LastAllocatedChunk != nil {
		return nil
	}
	return h.Extend(alloc, depth, 1)
}

// Extend allocates a fresh chunk able to satisfy minBytes, appends it to
// levels[depth] (creating that level list if absent), and installs it as
// lastAllocatedChunk (HM_HH_extend).
func (h *HH) Extend(alloc *block.Allocator, depth uint32, minBytes uintptr) error {
	if depth >= MaxDepth {
		gcstate.Die(gcstate.InvariantViolated, "hheap: depth %d exceeds MaxDepth %d", depth, MaxDepth)
	}
	list := h.Levels[depth]
	if list == nil {
		list = chunklist.NewChunkList(depth, 0)
		h.Levels[depth] = list
	}
	c, err := alloc.Allocate(list, minBytes)
	if err != nil {
		return err
	}
	h.LastAllocatedChunk = c
	return nil
}

// DesiredCollectionScope implements the "should a local collection run
// now, and how deep" decision EnsureAssurances's caller acts on: when the
// allocation threshold has been crossed, the desired scope is
// the current depth itself (collect at least that far); otherwise it is
// one past the current depth, which EnsureAssurances's "desiredScope <=
// CurrentDepth" check then treats as "no collection due".
func (h *HH) DesiredCollectionScope(cfg gcstate.Config, currentDepth uint32) uint32 {
	if cfg.HHCollectionLevel == gcstate.CollectionNone {
		return currentDepth + 1
	}
	if h.BytesAllocatedSinceLastCollection < h.CollectionThreshold {
		return currentDepth + 1
	}
	if cfg.HHCollectionLevel == gcstate.CollectionSuperlocal {
		return currentDepth
	}
	return currentDepth
}

// HighestNonEmptyLevel returns the deepest depth with a non-empty level
// list, or false if the heap is entirely empty (used to recompute
// lastAllocatedChunk after a collection completes).
func (h *HH) HighestNonEmptyLevel(maxDepth uint32) (uint32, bool) {
	for d := maxDepth; ; d-- {
		if l := h.Levels[d]; l != nil && !l.Empty() {
			return d, true
		}
		if d == 0 {
			return 0, false
		}
	}
}
