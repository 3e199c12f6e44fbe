package gcollect

import (
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/object"
)

// rootLevel is the depth reserved for the global/root heap. This runtime
// has no separate major heap; depth 0 plays that role, and local
// collection never touches it — depth-0 objects are left in place even
// when minLevel is 0.
const rootLevel = 0

func levelOf(c *chunklist.Chunk) (uint32, bool) {
	if c == nil || c.List == nil {
		return 0, false
	}
	return c.List.Depth, true
}

// forwardValue runs forwardHHObjptr's state machine on a single address
// value and returns the (possibly unchanged) address the caller should
// use in its place. Apart from the forwarded object itself (its header, and
// a STACK object's reserved word) it writes nothing; callers (ForwardRoot,
// forwardField) own where the result gets stored.
func forwardValue(alloc allocator, args *ForwardArgs, op gcstate.Addr) gcstate.Addr {
	if !op.Valid() {
		return op
	}
	chunk := alloc.ChunkAt(op)
	level, ok := levelOf(chunk)
	if !ok || level == rootLevel {
		return op // not a heap pointer, or lies in the root heap
	}
	if level > args.MaxLevel {
		gcstate.Die(gcstate.Entanglement,
			"forward: object at %#x is at level %d, above max %d", uint64(op), level, args.MaxLevel)
	}
	if level < args.MinLevel {
		return op // outside the collection window
	}

	// Chase any forwarding pointer already installed by an earlier visit.
	p := op
	pChunk := chunk
	h := object.ReadHeader(pChunk, p)
	for h.IsForwarded() {
		p = h.ForwardTarget()
		pChunk = alloc.ChunkAt(p)
		h = object.ReadHeader(pChunk, p)
	}

	pLevel, _ := levelOf(pChunk)
	if pLevel < args.MinLevel || (pChunk.List != nil && pChunk.List.IsInToSpace) {
		return p
	}

	metaBytes, objectBytes, copyBytes := object.Sizes(h)
	switch h.Tag() {
	case gcstate.TagWeak:
		gcstate.Die(gcstate.WeakDuringLocal, "forward: weak object at %#x", uint64(p))
	case gcstate.TagStack:
		objectBytes, copyBytes = shrinkStackIfPossible(pChunk, p, args.CurrentStackAddr, metaBytes)
	}

	if !pChunk.MightContainMultipleObjects {
		// Single-object chunk optimization: the chunk
		// moves wholesale, no bytes are copied, and the object's address
		// never changes. toSpaceBareList (not toSpaceLevel) is used here
		// because the moved chunk itself becomes the level's first chunk;
		// pre-allocating a starter chunk the way the copy path needs
		// would just leave a permanently empty chunk behind it.
		toList := toSpaceBareList(args, pLevel)
		chunklist.Unlink(pChunk)
		toList.Append(pChunk)
		if _, err := alloc.Allocate(toList, 1); err != nil {
			gcstate.Die(gcstate.OutOfHeap, "forward: %v", err)
		}
		args.BytesMoved += uint64(copyBytes)
		if h.Tag() == gcstate.TagStack {
			args.StacksCopied++
		} else {
			args.ObjectsMoved++
		}
		return p
	}

	toList := toSpaceLevel(args, alloc, pLevel, objectBytes)
	dst := copyInto(alloc, toList, pChunk, p, metaBytes, objectBytes, copyBytes)
	object.WriteHeader(pChunk, p, gcstate.NewForwardingHeader(dst))
	args.BytesCopied += uint64(copyBytes)
	args.ObjectsCopied++
	return dst
}

// shrinkStackIfPossible applies Stack_shrinkReserved's policy-computed
// reserved shrink in place on the src stack object before sizing it, then
// returns the (possibly now smaller) object/copy byte counts.
func shrinkStackIfPossible(m object.Memory, addr gcstate.Addr, currentStackAddr gcstate.Addr, metaBytes uintptr) (objectBytes, copyBytes uintptr) {
	used := object.StackUsed(m, addr)
	reserved := object.StackReserved(m, addr)
	isCurrent := addr == currentStackAddr

	target := used * 2
	if target == 0 {
		target = gcstate.WordSize
	}
	if !isCurrent {
		target = used
	}
	if target > reserved {
		target = reserved
	}
	if target < reserved {
		object.WriteStackReserved(m, addr, target)
		reserved = target
	}

	objectBytes = 2*gcstate.WordSize + uintptr(reserved)
	copyBytes = metaBytes + objectBytes
	return
}

// copyInto bump-allocates copyBytes in tgtList's tail chunk (extending it
// if necessary) and copies the object's header-through-payload bytes
// starting at addr, mirroring copyObject in the source this is ported
// from. The header occupies the first metaBytes of the copied range, so
// the returned address is exactly where that range lands: callers use it
// both to read the (copied) header back and to compute field addresses.
func copyInto(alloc allocator, tgtList *chunklist.ChunkList, srcMem object.Memory, addr gcstate.Addr, metaBytes, objectBytes, copyBytes uintptr) gcstate.Addr {
	chunk := tgtList.Tail
	if chunk == nil || chunk.FreeBytes() < copyBytes {
		var err error
		chunk, err = alloc.Allocate(tgtList, copyBytes)
		if err != nil {
			gcstate.Die(gcstate.OutOfHeap, "copyInto: %v", err)
		}
	}

	dst := chunk.Frontier
	frontierOff := uintptr(chunk.Frontier - chunk.Base())
	srcOff := uintptr(addr - srcMem.Base())
	copy(chunk.Bytes()[frontierOff:frontierOff+copyBytes], srcMem.Bytes()[srcOff:srcOff+copyBytes])

	chunk.Frontier += gcstate.Addr(copyBytes)

	if chunk.FreeBytes() == 0 {
		if _, err := alloc.Allocate(tgtList, 1); err != nil {
			gcstate.Die(gcstate.OutOfHeap, "copyInto: %v", err)
		}
	}
	return dst
}

// ForwardRoot forwards a root slot that lives in ordinary Go memory
// rather than inside a chunk (a Task's captured Addrs, a *hheap.Thread's
// ThreadRecordAddr).
func ForwardRoot(alloc allocator, args *ForwardArgs, root *gcstate.Addr) {
	*root = forwardValue(alloc, args, *root)
}

// forwardField forwards the pointer stored in the idx'th field of the
// object at objAddr, rewriting it in place if it moved. mem is the chunk
// the object currently lives in.
func forwardField(alloc allocator, args *ForwardArgs, mem object.Memory, objAddr gcstate.Addr, idx int) {
	fieldAddr := object.FieldAddr(objAddr, idx)
	op := object.ReadAddr(mem, fieldAddr)
	newOp := forwardValue(alloc, args, op)
	if newOp != op {
		object.WriteAddr(mem, fieldAddr, newOp)
	}
}

// forwardAllFields visits every pointer field or element of the object
// at addr in mem, dispatching on its tag. STACK objects carry no pointer
// fields this runtime models directly; see DESIGN.md.
func forwardAllFields(alloc allocator, args *ForwardArgs, mem object.Memory, addr gcstate.Addr) {
	h := object.ReadHeader(mem, addr)
	switch h.Tag() {
	case gcstate.TagNormal:
		for i := 0; i < int(h.NumPointers()); i++ {
			forwardField(alloc, args, mem, addr, i)
		}
	case gcstate.TagSequence:
		n := object.SequenceLength(mem, addr)
		for i := uint64(0); i < n; i++ {
			forwardField(alloc, args, mem, addr, int(i)+1)
		}
	}
}
