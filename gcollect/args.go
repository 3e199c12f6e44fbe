// Package gcollect implements the local collector: the Cheney-style
// forwarding engine, deferred promotion of down-pointers, and the driver
// that ties them together into one worker's local collection. It
// satisfies mutator.Collector, closing the cycle between the allocator
// and the collector without an import cycle: mutator depends only on the
// narrow Collector interface, and gcollect does not import mutator at all.
package gcollect

import (
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/hheap"
)

// ForwardArgs is the state threaded through one collection's forwarding
// pass, mirroring hierarchical-heap-collection.c's
// forwardHHObjptr(obj, args{min,max,toSpace[],inPromotion}).
type ForwardArgs struct {
	MinLevel, MaxLevel uint32
	ToSpace            [hheap.MaxDepth]*chunklist.ChunkList
	InPromotion        bool

	// CurrentStackAddr identifies the running thread's own stack, so a
	// STACK object's reserved-shrink policy can tell
	// "still growing" stacks from "finished" ones.
	CurrentStackAddr gcstate.Addr

	BytesCopied, BytesMoved                uint64
	ObjectsCopied, ObjectsMoved, StacksCopied uint64
}

// toSpaceLevel returns (creating if absent) the level-head chunk list
// collecting forwarded objects at depth, sized to cover an initial
// object of minBytes, creating it if absent.
func toSpaceLevel(args *ForwardArgs, alloc allocator, depth uint32, minBytes uintptr) *chunklist.ChunkList {
	if list := args.ToSpace[depth]; list != nil {
		return list
	}
	list := chunklist.NewChunkList(depth, chunklist.OwnerCopyObject)
	list.IsInToSpace = true
	if _, err := alloc.Allocate(list, minBytes); err != nil {
		gcstate.Die(gcstate.OutOfHeap, "toSpaceLevel(%d): %v", depth, err)
	}
	args.ToSpace[depth] = list
	return list
}

// toSpaceBareList returns (creating if absent) the level-head chunk list
// for depth without allocating a starter chunk into it — used by the
// single-object chunk move, which supplies its own (moved) chunk rather
// than bump-allocating into a fresh one.
func toSpaceBareList(args *ForwardArgs, depth uint32) *chunklist.ChunkList {
	if list := args.ToSpace[depth]; list != nil {
		return list
	}
	list := chunklist.NewChunkList(depth, chunklist.OwnerCopyObject)
	list.IsInToSpace = true
	args.ToSpace[depth] = list
	return list
}

// allocator is the narrow slice of block.Allocator the forwarding engine
// needs; declared here so forward.go and promote.go don't have to import
// block just to spell out *block.Allocator everywhere.
type allocator interface {
	Allocate(list *chunklist.ChunkList, minBytes uintptr) (*chunklist.Chunk, error)
	ChunkAt(addr gcstate.Addr) *chunklist.Chunk
}
