package hheap

import (
	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/object"
)

// Stack lives inside the HH rather than a separate region, and its chunk
// always has MightContainMultipleObjects = false, so that no other
// allocation can ever land in the same chunk and be disturbed by stack
// growth.
type Stack struct {
	Addr  gcstate.Addr
	Chunk *chunklist.Chunk
}

// NewStack allocates a dedicated chunk for a stack with the given reserved
// capacity at the given depth, matching init-world.c's construction of the
// initial thread's stack inside the depth-0 heap.
func NewStack(alloc *block.Allocator, hh *HH, depth uint32, reserved uintptr) (*Stack, error) {
	size := 2*gcstate.WordSize + reserved + gcstate.WordSize // 2 metadata words + payload + header
	c, err := alloc.Allocate(nil, size)
	if err != nil {
		return nil, err
	}
	// The stack invariant holds regardless of how the allocator happened
	// to size this chunk: stack chunks never host a second object.
	c.MightContainMultipleObjects = false

	list := hh.Levels[depth]
	if list == nil {
		list = chunklist.NewChunkList(depth, 0)
		hh.Levels[depth] = list
	}
	list.Append(c)

	addr := c.Start
	object.WriteHeader(c, addr, gcstate.NewHeader(gcstate.TagStack, 0, uint32(reserved)))
	object.WriteStackUsed(c, addr, 0)
	object.WriteStackReserved(c, addr, uint64(reserved))

	return &Stack{Addr: addr, Chunk: c}, nil
}

func (s *Stack) Used() uint64     { return object.StackUsed(s.Chunk, s.Addr) }
func (s *Stack) Reserved() uint64 { return object.StackReserved(s.Chunk, s.Addr) }

func (s *Stack) SetUsed(n uint64) { object.WriteStackUsed(s.Chunk, s.Addr, n) }

func (s *Stack) Bottom() gcstate.Addr { return object.StackDataStart(s.Addr) }
func (s *Stack) Top() gcstate.Addr    { return s.Bottom() + gcstate.Addr(s.Used()) }
func (s *Stack) Limit() gcstate.Addr  { return s.Bottom() + gcstate.Addr(s.Reserved()) }

// ShrinkReservedTarget computes the policy-driven reserved size a stack
// should be copied with during collection ("the
// collector may shrink reserved to a policy-computed target"). A stack
// that is still the running thread's current stack keeps headroom for
// further growth; one that has finished running shrinks to exactly what
// it used, capped so it never grows the copy.
func (s *Stack) ShrinkReservedTarget(isCurrent bool) uint64 {
	used := s.Used()
	reserved := s.Reserved()
	if !isCurrent {
		return used
	}
	// keep up to double the used amount as slack, but never exceed what
	// was already reserved.
	target := used * 2
	if target == 0 {
		target = gcstate.WordSize
	}
	if target > reserved {
		target = reserved
	}
	return target
}
