package chunklist

// ChunkList is an ordered sequence of chunks sharing a depth. A
// level-head chunk list additionally carries a depth number, an owner
// identifier, the isInToSpace flag, and an optional remembered set.
type ChunkList struct {
	Head, Tail *Chunk
	count      int
	size       uintptr

	// Depth is meaningful only for level-head lists (one per HH slot).
	Depth uint32

	// Owner is an opaque identifier for the containing HH, or the
	// COPY_OBJECT_HH sentinel (OwnerCopyObject) for a chunk list created
	// purely to host single-object-chunk moves during forwarding.
	Owner uintptr

	IsInToSpace bool

	RememberedSet *RememberedSet
}

// OwnerCopyObject is the sentinel owner value for the COPY_OBJECT_HH
// chunk list used to host single-object-chunk moves during forwarding.
const OwnerCopyObject uintptr = ^uintptr(0)

// NewChunkList creates an empty chunk list for the given depth.
func NewChunkList(depth uint32, owner uintptr) *ChunkList {
	return &ChunkList{Depth: depth, Owner: owner}
}

// Append adds c to the tail of the list in O(1), setting c's back-link.
func (l *ChunkList) Append(c *Chunk) {
	c.Prev = l.Tail
	c.Next = nil
	if l.Tail != nil {
		l.Tail.Next = c
	} else {
		l.Head = c
	}
	l.Tail = c
	c.List = l
	l.count++
	l.size += c.Size()
}

// AppendList moves all chunks from src to the tail of l in order,
// mirroring HM_appendChunkList. src is left empty. The splice itself is
// constant-time, but every moved chunk's List back-link is rewritten, so
// the whole call takes time linear in src's chunk count.
func (l *ChunkList) AppendList(src *ChunkList) {
	if src == nil || src.Head == nil {
		return
	}
	for c := src.Head; c != nil; c = c.Next {
		c.List = l
	}
	if l.Tail != nil {
		l.Tail.Next = src.Head
		src.Head.Prev = l.Tail
	} else {
		l.Head = src.Head
	}
	l.Tail = src.Tail
	l.count += src.count
	l.size += src.size

	src.Head, src.Tail = nil, nil
	src.count, src.size = 0, 0
}

// Unlink removes c from whatever list currently owns it, without
// touching its interior bytes, mirroring HM_unlinkChunk.
func Unlink(c *Chunk) {
	l := c.List
	if l == nil {
		return
	}
	if c.Prev != nil {
		c.Prev.Next = c.Next
	} else {
		l.Head = c.Next
	}
	if c.Next != nil {
		c.Next.Prev = c.Prev
	} else {
		l.Tail = c.Prev
	}
	l.count--
	l.size -= c.Size()
	c.Next, c.Prev, c.List = nil, nil, nil
}

func (l *ChunkList) Empty() bool   { return l.Head == nil }
func (l *ChunkList) Count() int    { return l.count }
func (l *ChunkList) Size() uintptr { return l.size }

// ForEach visits every chunk from head to tail. Visiting must not mutate
// the list (callers that need to unlink during iteration should collect
// chunks first).
func (l *ChunkList) ForEach(fn func(*Chunk)) {
	for c := l.Head; c != nil; c = c.Next {
		fn(c)
	}
}
