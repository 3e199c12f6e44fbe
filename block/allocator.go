package block

import (
	"sort"
	"sync"

	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
)

// regionGrowth is how much we ask the OS for at a time once the arena
// needs to grow past its initial mapping, analogous to mheap.go's
// _FixAllocChunk/persistentalloc chunking policy (memory_and_heap/mfixalloc.go)
// of amortizing syscalls instead of mmap'ing exactly what's needed.
const regionGrowth = 1 << 20 // 1 MiB

// Allocator carves fixed-size blocks from mapped regions and groups them
// into chunks. The free list is protected by a mutex rather than made
// lock-free: block allocation is off the fast allocation path, so
// sequential consistency from the driver's vantage costs nothing here.
type Allocator struct {
	mu sync.Mutex

	regions []region
	cursor  gcstate.Addr // next free address in the last region
	limit   gcstate.Addr // end of the last region

	maxBytes    uintptr // 0 = unbounded (until the OS itself says no)
	totalMapped uintptr

	free []*chunklist.Chunk

	// allChunks is every chunk this allocator has ever carved, kept sorted
	// by Start address. It is the idiomatic Go substitute for the C source's
	// pointer-masking trick, where every in-heap pointer's containing block
	// can be found by masking: since chunks here are carved from
	// independently mmap'd regions rather than one fixed-base arena, a
	// sorted lookup table stands in for address masking. Identity is
	// stable across Free/reuse, so reused chunks are never re-inserted.
	allChunks []*chunklist.Chunk
}

type region struct {
	bytes []byte
	start gcstate.Addr
}

// NewAllocator creates an allocator bounded by maxBytes of total mapped
// memory (0 for unbounded).
func NewAllocator(maxBytes uintptr) *Allocator {
	return &Allocator{maxBytes: maxBytes}
}

// Close releases every region this allocator has mapped; provided so
// tests don't leak mmap'd memory across cases.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, r := range a.regions {
		if err := unmapRegion(r.bytes); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.regions = nil
	return firstErr
}

func roundUpBlock(n uintptr) uintptr {
	return (n + BlockSize - 1) &^ (BlockSize - 1)
}

// Allocate carves a chunk sized to cover minBytes, mirroring
// HM_allocateChunk. The chunk is aligned to BlockSize and, unless
// minBytes exceeds a single block, flagged as able to hold multiple
// objects. list may be nil, in which case the caller appends the chunk
// itself.
func (a *Allocator) Allocate(list *chunklist.ChunkList, minBytes uintptr) (*chunklist.Chunk, error) {
	size := roundUpBlock(minBytes)
	if size == 0 {
		size = BlockSize
	}
	multiObject := minBytes <= BlockSize

	a.mu.Lock()
	c := a.takeFromFreeList(size)
	if c == nil {
		var err error
		c, err = a.carveNew(size)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
	}
	a.mu.Unlock()

	c.MightContainMultipleObjects = multiObject
	c.Frontier = c.Start
	if list != nil {
		list.Append(c)
	}
	return c, nil
}

// takeFromFreeList pops the first chunk at least `size` bytes long
// (first-fit; callers ask for exact block multiples so exact matches are
// the common case). Caller must hold a.mu.
func (a *Allocator) takeFromFreeList(size uintptr) *chunklist.Chunk {
	for i, c := range a.free {
		if c.Size() >= size {
			a.free = append(a.free[:i], a.free[i+1:]...)
			return c
		}
	}
	return nil
}

// carveNew bump-allocates size bytes from the current region, mapping a
// fresh region first if there isn't enough room left. Caller must hold a.mu.
func (a *Allocator) carveNew(size uintptr) (*chunklist.Chunk, error) {
	if uintptr(a.limit-a.cursor) < size {
		grow := regionGrowth
		if uintptr(grow) < size {
			grow = int(roundUpBlock(size))
		}
		if a.maxBytes != 0 && a.totalMapped+uintptr(grow) > a.maxBytes {
			grow = int(a.maxBytes - a.totalMapped)
			if uintptr(grow) < size {
				return nil, &outOfHeapError{requested: size, mapped: a.totalMapped, max: a.maxBytes}
			}
		}

		bytes, err := mapRegion(uintptr(grow))
		if err != nil {
			return nil, &outOfHeapError{requested: size, mapped: a.totalMapped, max: a.maxBytes, cause: err}
		}
		start := addrOf(bytes)
		a.regions = append(a.regions, region{bytes: bytes, start: start})
		a.cursor = start
		a.limit = start + gcstate.Addr(len(bytes))
		a.totalMapped += uintptr(len(bytes))
	}

	r := &a.regions[len(a.regions)-1]
	off := uintptr(a.cursor - r.start)
	chunkBytes := r.bytes[off : off+size]
	c := chunklist.NewChunk(chunkBytes, a.cursor, a.cursor+gcstate.Addr(size), true)
	a.cursor += gcstate.Addr(size)
	a.registerChunk(c)
	return c, nil
}

// registerChunk inserts c into allChunks, keeping it sorted by Start.
// Caller must hold a.mu.
func (a *Allocator) registerChunk(c *chunklist.Chunk) {
	idx := sort.Search(len(a.allChunks), func(i int) bool { return a.allChunks[i].Start >= c.Start })
	a.allChunks = append(a.allChunks, nil)
	copy(a.allChunks[idx+1:], a.allChunks[idx:])
	a.allChunks[idx] = c
}

// ChunkAt finds the chunk containing addr, or nil if addr does not lie in
// any chunk this allocator has ever carved.
func (a *Allocator) ChunkAt(addr gcstate.Addr) *chunklist.Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := sort.Search(len(a.allChunks), func(i int) bool { return a.allChunks[i].Start > addr }) - 1
	if i < 0 {
		return nil
	}
	c := a.allChunks[i]
	if c.Contains(addr) {
		return c
	}
	return nil
}

// Free returns a chunk to the free list for reuse. Callers must first
// Unlink it from whatever ChunkList owns it (discarded
// level lists are appended to the free list).
func (a *Allocator) Free(c *chunklist.Chunk) {
	c.Frontier = c.Start
	a.mu.Lock()
	a.free = append(a.free, c)
	a.mu.Unlock()
}

// FreeList appends every chunk of list to the allocator's free list,
// draining list in the process.
func (a *Allocator) FreeList(list *chunklist.ChunkList) {
	if list == nil {
		return
	}
	var chunks []*chunklist.Chunk
	list.ForEach(func(c *chunklist.Chunk) { chunks = append(chunks, c) })
	for _, c := range chunks {
		chunklist.Unlink(c)
		a.Free(c)
	}
}

type outOfHeapError struct {
	requested uintptr
	mapped    uintptr
	max       uintptr
	cause     error
}

func (e *outOfHeapError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "block: out of heap"
}
