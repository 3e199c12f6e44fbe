package gcollect

import (
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/hheap"
)

// DeferredPromote walks the remembered sets of every level below the
// collection window, looking for down-pointer edges whose
// container is about to move. The remembered set is keyed by the target's
// (shallower) level, but the edge's field lives inside the container
// (deeper, within [min,max]); once the container moves, that field's
// address is only valid until its old chunk is freed in step 7, so it
// must be forwarded and re-homed now, before copying proceeds.
//
// Edges whose container is untouched by this collection are put back
// unchanged. Edges whose container is being collected are forwarded
// and returned as globalDownPtrs for the driver to re-remember at the
// target's own (untouched, shallower) level, mirroring hierarchical-heap-collection.c's
// deferred-promotion pass over remembered sets below the window.
func DeferredPromote(alloc allocator, hh *hheap.HH, args *ForwardArgs) []chunklist.DownPtrEdge {
	var promoted []chunklist.DownPtrEdge

	for depth := uint32(0); depth < args.MinLevel; depth++ {
		list := hh.Levels[depth]
		if list == nil || list.RememberedSet == nil {
			continue
		}

		edges := list.RememberedSet.Drain()
		for _, e := range edges {
			srcChunk := alloc.ChunkAt(e.Src)
			srcLevel, ok := levelOf(srcChunk)
			if !ok || srcLevel < args.MinLevel || srcLevel > args.MaxLevel {
				// Container isn't moving this round; the edge still
				// belongs at this (untouched) level.
				list.RememberedSet.Add(e)
				continue
			}

			delta := e.Field - e.Src
			newSrc := forwardValue(alloc, args, e.Src)
			promoted = append(promoted, chunklist.DownPtrEdge{
				Src:   newSrc,
				Field: newSrc + delta,
				Dst:   e.Dst,
			})
		}
	}

	return promoted
}
