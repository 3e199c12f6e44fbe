package hheap

import (
	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/object"
)

// Thread carries a worker's GC-relevant bookkeeping: its HH, current
// depth, the most recent allocation slow path's bytesNeeded, and bytes
// survived by the last collection. Its identity also lives in the heap
// as a one-pointer NORMAL record (ThreadRecordAddr) so that forwarding
// it is meaningful: the driver forwards "thread contents, thread pointer
// itself" as one of its root sets, and a plain Go *Thread has no address
// for the collector to rewrite. The record's sole pointer field holds
// the current stack's address; after a collection the driver re-reads
// it to learn the stack's new location.
type Thread struct {
	HH                          *HH
	CurrentDepth                uint32
	BytesNeeded                 uintptr
	BytesSurvivedLastCollection uintptr
	ExnStack                    gcstate.Addr

	Stack *Stack

	ThreadRecordAddr  gcstate.Addr
	threadRecordChunk *chunklist.Chunk
}

// NewThreadWithHeap creates a thread with a fresh HH and an initial stack
// of stackReserved bytes at the given depth, mirroring
// newThreadWithHeap's construction in init-world.c.
func NewThreadWithHeap(alloc *block.Allocator, stackReserved uintptr, level uint32) (*Thread, error) {
	hh := NewHH()
	stack, err := NewStack(alloc, hh, level, stackReserved)
	if err != nil {
		return nil, err
	}

	t := &Thread{HH: hh, CurrentDepth: level, Stack: stack}
	if err := t.writeRecord(alloc, level); err != nil {
		return nil, err
	}
	return t, nil
}

// writeRecord (re)allocates the thread's in-heap record and writes its
// single pointer field to point at the current stack.
func (t *Thread) writeRecord(alloc *block.Allocator, depth uint32) error {
	size := uintptr(gcstate.WordSize + gcstate.WordSize) // header + 1 pointer field
	if err := t.HH.EnsureNotEmpty(alloc, depth); err != nil {
		return err
	}
	c, addr, err := bumpAllocateInto(t.HH, alloc, depth, size)
	if err != nil {
		return err
	}
	object.WriteHeader(c, addr, gcstate.NewHeader(gcstate.TagNormal, 1, 0))
	object.WriteField(c, addr, 0, t.Stack.Addr)
	t.ThreadRecordAddr = addr
	t.threadRecordChunk = c
	return nil
}

// RefreshFromRecord re-reads the thread's stack pointer out of its
// (possibly just-forwarded) in-heap record, the step collectLocal takes
// after copying roots and before resuming the mutator.
func (t *Thread) RefreshFromRecord(findChunk func(gcstate.Addr) *chunklist.Chunk) {
	c := findChunk(t.ThreadRecordAddr)
	if c == nil {
		return
	}
	t.threadRecordChunk = c
	stackAddr := object.ReadField(c, t.ThreadRecordAddr, 0)
	t.Stack = &Stack{Addr: stackAddr, Chunk: findChunk(stackAddr)}
}

// bumpAllocateInto is a minimal, GC-unaware bump allocator used only by
// world initialization to place fixed-size records directly, bypassing
// the mutator package's frontier cache (which does not exist yet during
// init). It extends the HH if the current chunk has no room.
func bumpAllocateInto(hh *HH, alloc *block.Allocator, depth uint32, n uintptr) (*chunklist.Chunk, gcstate.Addr, error) {
	c := hh.LastAllocatedChunk
	if c == nil || c.FreeBytes() < n || !c.MightContainMultipleObjects {
		if err := hh.Extend(alloc, depth, n); err != nil {
			return nil, gcstate.NilAddr, err
		}
		c = hh.LastAllocatedChunk
	}
	addr := c.Frontier
	c.Frontier += gcstate.Addr(n)
	return c, addr, nil
}
