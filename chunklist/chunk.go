// Package chunklist implements the chunk and doubly-linked chunk-list data
// structures: the unit of memory a hierarchical heap level is built
// from, and the ordered, splice-friendly list that groups chunks sharing
// a depth.
package chunklist

import (
	"unsafe"

	"github.com/westrhh/hhrun/gcstate"
)

// ChunkMagic is stored in every chunk's Magic field by NewChunk. No code in
// this module compares a chunk's Magic against it.
const ChunkMagic uint32 = 0x48484348 // "HHCH"

// Chunk is one or more contiguous blocks managed as a single allocation
// unit. Start/Limit/Frontier are addresses inside the backing region
// owned by the chunk's block.Allocator; Bytes gives byte access to that
// same memory for header/field reads and writes.
type Chunk struct {
	Magic uint32

	Start   gcstate.Addr
	Limit   gcstate.Addr
	Frontier gcstate.Addr

	// MightContainMultipleObjects is false only for chunks dedicated to a
	// single large object; the stack object's chunk always has
	// this false too.
	MightContainMultipleObjects bool

	Next, Prev *Chunk

	// List is a non-owning back-link to whichever ChunkList currently owns
	// this chunk, enabling O(1) Unlink.
	List *ChunkList

	bytes []byte // the raw backing memory, owned by the allocator
}

// NewChunk wraps a freshly carved byte range as a Chunk. bytes must be at
// least as long as limit-start.
func NewChunk(bytes []byte, start, limit gcstate.Addr, multiObject bool) *Chunk {
	return &Chunk{
		Magic:                       ChunkMagic,
		Start:                       start,
		Limit:                       limit,
		Frontier:                    start,
		MightContainMultipleObjects: multiObject,
		bytes:                       bytes,
	}
}

// Bytes returns the chunk's full backing slice for direct header/field
// access via the object accessors in the object package.
func (c *Chunk) Bytes() []byte { return c.bytes }

// Base implements object.Memory: the address of byte 0 of Bytes().
func (c *Chunk) Base() gcstate.Addr { return c.Start }

// FreeBytes reports how much room remains between Frontier and Limit.
func (c *Chunk) FreeBytes() uintptr { return uintptr(c.Limit - c.Frontier) }

// Size is the total chunk size in bytes (Limit-Start).
func (c *Chunk) Size() uintptr { return uintptr(c.Limit - c.Start) }

// Contains reports whether addr falls within this chunk's [Start, Limit).
func (c *Chunk) Contains(addr gcstate.Addr) bool {
	return addr >= c.Start && addr < c.Limit
}

// PointerAt returns an unsafe.Pointer to the byte at addr, which must lie
// within this chunk.
func (c *Chunk) PointerAt(addr gcstate.Addr) unsafe.Pointer {
	off := uintptr(addr - c.Start)
	return unsafe.Pointer(&c.bytes[off])
}
