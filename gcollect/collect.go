package gcollect

import (
	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/deque"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/hheap"
	"github.com/westrhh/hhrun/object"
)

// Driver orchestrates one worker's local collection: it ties
// deferred promotion (promote.go) and the forwarding engine (forward.go)
// together, then swaps the resulting to-space level lists into the
// worker's hierarchical heap. It implements mutator.Collector.
type Driver struct {
	Config gcstate.Config
	Alloc  *block.Allocator
	Deque  *deque.Deque
	Thread *hheap.Thread
	Logger *gcstate.Logger
}

// NewDriver wires a collector driver for one worker.
func NewDriver(cfg gcstate.Config, alloc *block.Allocator, dq *deque.Deque, thread *hheap.Thread) *Driver {
	return &Driver{Config: cfg, Alloc: alloc, Deque: dq, Thread: thread, Logger: loggerFor(cfg)}
}

func loggerFor(cfg gcstate.Config) *gcstate.Logger {
	if cfg.DetailedGCTime {
		return gcstate.NewLogger(gcstate.LogDebug)
	}
	return gcstate.NewLogger(cfg.LogLevel)
}

// CollectLocal runs one local collection covering [claimedMinLevel,
// currentDepth], following the eleven-step body of HM_HH_collectLocal in
// hierarchical-heap-collection.c. It returns nil (not an error) for every
// precondition that simply means "skip collection"; only a genuinely
// fatal condition (forwarded through gcstate.Die, e.g. Entanglement or
// OutOfHeap) escapes as a panic — the core never recovers from those in
// production.
func (dr *Driver) CollectLocal(desiredScope uint32, force bool) error {
	cfg := dr.Config
	thread := dr.Thread
	hh := thread.HH
	currentDepth := thread.CurrentDepth

	if cfg.HHCollectionLevel == gcstate.CollectionNone {
		return nil
	}
	if dr.Deque == nil || !dr.Deque.Registered() {
		return nil
	}
	if !force && currentDepth <= 1 {
		return nil
	}

	if cfg.HHCollectionLevel == gcstate.CollectionSuperlocal {
		desiredScope = currentDepth
	}

	minLevel, originalBot, claimed := dr.claimScope(desiredScope, currentDepth)
	if !claimed {
		return nil
	}
	if minLevel > currentDepth {
		dr.Deque.ReleaseLocalScope(originalBot)
		return nil
	}
	defer dr.Deque.ReleaseLocalScope(originalBot)

	dr.Logger.Debug("collect_local: depth=%d window=[%d,%d]", currentDepth, minLevel, currentDepth)

	// Step 1: flush mutator registers into the thread/stack objects. This
	// port keeps stack usage and the exception-stack pointer directly on
	// hheap.Thread/hheap.Stack rather than in a separate register cache
	// mirrored only at collection time, so there is nothing left to copy
	// out here; the fields the collector is about to root-forward are
	// already current.

	args := &ForwardArgs{
		MinLevel:         minLevel,
		MaxLevel:         currentDepth,
		CurrentStackAddr: thread.Stack.Addr,
	}

	// Step 2: deferred promotion, before any copying begins.
	globalDownPtrs := DeferredPromote(dr.Alloc, hh, args)

	// Step 3: to-space starts entirely nil (args.ToSpace's zero value).

	// Step 4: forward roots, in the order hierarchical-heap-collection.c names them.
	ForwardRoot(dr.Alloc, args, &thread.Stack.Addr)
	ForwardRoot(dr.Alloc, args, &thread.ExnStack)
	ForwardRoot(dr.Alloc, args, &thread.ThreadRecordAddr)
	if dr.Deque != nil {
		dr.Deque.ForEachTask(func(t gcstate.Task) {
			for _, root := range t.RootAddrs() {
				ForwardRoot(dr.Alloc, args, root)
			}
		})
	}
	dr.reRememberGlobalDownPtrs(hh, globalDownPtrs)

	// Step 5: scan to-space, deepest level first, following every
	// pointer field a still-unscanned object holds until every to-space
	// list has been fully walked (Cheney's two-finger algorithm; a level
	// can grow while it's being scanned, as same-level pointers copy
	// their referents into the same list).
	dr.scanToSpace(args)

	// Step 6 (debug only): poison the old chunks so a stray pointer into
	// from-space reads garbage instead of silently-still-valid bytes.
	if cfg.Assert {
		dr.poisonOldLevels(hh, minLevel, currentDepth)
	}

	// Step 7: return old level lists and their remembered sets to the
	// free list.
	dr.freeOldLevels(hh, minLevel, currentDepth)

	// Step 8: install to-space as the new levels. IsInToSpace only means
	// "belongs to the collection currently running" (forwardValue's
	// already-forwarded check in forward.go relies on that); once a level
	// is installed as live heap it must be cleared; otherwise the next
	// collection would see every chunk here as pre-forwarded and skip
	// collecting this level forever.
	for d := minLevel; d <= currentDepth; d++ {
		newList := args.ToSpace[d]
		if newList == nil {
			continue
		}
		newList.IsInToSpace = false
		if existing := hh.Levels[d]; existing != nil {
			existing.AppendList(newList)
		} else {
			hh.Levels[d] = newList
		}
	}

	// Step 9: recompute lastAllocatedChunk as the tail of the highest
	// non-empty level; extend if it can't take further multi-object
	// allocations (e.g. the tail is a stack's dedicated chunk).
	if top, ok := hh.HighestNonEmptyLevel(currentDepth); ok {
		tail := hh.Levels[top].Tail
		hh.LastAllocatedChunk = tail
		if tail != nil && !tail.MightContainMultipleObjects {
			if err := hh.Extend(dr.Alloc, top, 1); err != nil {
				gcstate.Die(gcstate.OutOfHeap, "collect_local: %v", err)
			}
		}
	} else {
		hh.LastAllocatedChunk = nil
	}

	// Step 10: update survival/allocation counters.
	hh.BytesSurvivedLastCollection = uintptr(args.BytesMoved + args.BytesCopied)
	hh.BytesAllocatedSinceLastCollection = 0

	// The thread's own bookkeeping tracks its (possibly just-moved) stack
	// through the in-heap record rather than recomputing it by hand.
	thread.RefreshFromRecord(dr.Alloc.ChunkAt)

	dr.Logger.Debug("collect_local: done copied=%d moved=%d objs=%d+%d stacks=%d",
		args.BytesCopied, args.BytesMoved, args.ObjectsCopied, args.ObjectsMoved, args.StacksCopied)

	// Step 11 (release local scope) runs via the deferred ReleaseLocalScope above.
	return nil
}

// claimScope widens the collection window from currentDepth down toward
// desiredScope by repeatedly claiming depths off the deque's bot cursor,
// following local-scope.c's MPL scope-widening loop: while minLevel >
// desiredScope && minLevel > minLocalLevel && tryClaimLocalScope(s),
// minLevel--.
//
// The worker's own currentDepth is always its to collect without any
// deque claim — it is, by definition, the depth it is actively running
// at, not something recorded as a pending fork in the deque. So a pure
// SUPERLOCAL collection (desiredScope == currentDepth) never needs to
// claim anything and always succeeds; the "no depths could be claimed"
// skip precondition applies only when the caller asked to widen past the
// leaf and no depth was claimed, either because the very first widening
// claim failed or because MinLocalLevel allows no widening at all.
func (dr *Driver) claimScope(desiredScope, currentDepth uint32) (minLevel uint32, originalBot uint64, ok bool) {
	originalBot = dr.Deque.CurrentLocalScope()
	minLevel = currentDepth

	if desiredScope >= currentDepth {
		return minLevel, originalBot, true
	}

	widened := false
	for minLevel > desiredScope && minLevel > dr.Config.MinLocalLevel {
		if !dr.Deque.ClaimLocalScope() {
			break
		}
		minLevel--
		widened = true
	}
	if !widened {
		dr.Deque.ReleaseLocalScope(originalBot)
		return minLevel, originalBot, false
	}
	return minLevel, originalBot, true
}

// reRememberGlobalDownPtrs re-installs the edges DeferredPromote lifted
// out of the window at their target's (untouched, shallower) level: the
// global down-pointers root category. The target's level list is never
// replaced by this collection (its depth is < minLevel by construction),
// so this is the same remembered set DeferredPromote just drained
// entries out of for the edges that stayed in place.
func (dr *Driver) reRememberGlobalDownPtrs(hh *hheap.HH, edges []chunklist.DownPtrEdge) {
	for _, e := range edges {
		dstChunk := dr.Alloc.ChunkAt(e.Dst)
		depth, ok := levelOf(dstChunk)
		if !ok {
			continue
		}
		list := hh.Levels[depth]
		if list == nil {
			continue
		}
		if list.RememberedSet == nil {
			list.RememberedSet = chunklist.NewRememberedSet()
		}
		list.RememberedSet.Add(e)
	}
}

// scanToSpace implements step 5's copy-in-place scan: for each depth from
// MaxLevel down to MinLevel, walk that level's to-space chunks
// left-to-right, forwarding every pointer field found. Objects discovered
// mid-scan (same-level references) extend the very list being scanned,
// so each list is walked until its scan cursor catches up to its
// frontier rather than a single fixed-length pass.
func (dr *Driver) scanToSpace(args *ForwardArgs) {
	for d := int(args.MaxLevel); d >= int(args.MinLevel); d-- {
		list := args.ToSpace[uint32(d)]
		if list == nil {
			continue
		}
		dr.scanList(args, list)
	}
}

// poisonOldLevels overwrites every byte of the levels about to be
// discarded with 0xBF, so that a mutator or collector bug that still
// reaches into from-space after this collection reads obviously-wrong
// data rather than silently-plausible bytes. Debug builds only.
func (dr *Driver) poisonOldLevels(hh *hheap.HH, minLevel, maxLevel uint32) {
	for d := minLevel; d <= maxLevel; d++ {
		list := hh.Levels[d]
		if list == nil {
			continue
		}
		list.ForEach(func(c *chunklist.Chunk) {
			b := c.Bytes()
			for i := range b {
				b[i] = 0xBF
			}
		})
	}
}

// freeOldLevels appends every old level list (and its remembered set, if
// any) in [minLevel, maxLevel] to the block allocator's free list, then
// clears the HH slot so the caller can install to-space in its place.
func (dr *Driver) freeOldLevels(hh *hheap.HH, minLevel, maxLevel uint32) {
	for d := minLevel; d <= maxLevel; d++ {
		list := hh.Levels[d]
		if list == nil {
			continue
		}
		if list.RememberedSet != nil {
			list.RememberedSet.Drain()
		}
		dr.Alloc.FreeList(list)
		hh.Levels[d] = nil
	}
}

func (dr *Driver) scanList(args *ForwardArgs, list *chunklist.ChunkList) {
	c := list.Head
	if c == nil {
		return
	}
	pos := c.Start

	for c != nil {
		if pos >= c.Frontier {
			c = c.Next
			if c != nil {
				pos = c.Start
			}
			continue
		}

		h := object.ReadHeader(c, pos)
		_, _, copyBytes := object.Sizes(h)

		// Stack objects carry no pointer fields in this runtime's object
		// model (frame-level stack maps are the compiler's concern, out of
		// scope here). The thread record is also skipped explicitly,
		// mirroring skipStackAndThreadObjptrPredicate in
		// hierarchical-heap-collection.c: its stack-pointer field was
		// already forwarded once as a root, and re-visiting it here would
		// just re-forward an address that's already in to-space.
		if h.Tag() != gcstate.TagStack && pos != dr.Thread.ThreadRecordAddr {
			forwardAllFields(dr.Alloc, args, c, pos)
		}

		pos += gcstate.Addr(copyBytes)
	}
}
