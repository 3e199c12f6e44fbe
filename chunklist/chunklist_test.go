package chunklist

import "github.com/westrhh/hhrun/gcstate"
import "testing"

func newTestChunk(start gcstate.Addr, size uintptr) *Chunk {
	return NewChunk(make([]byte, size), start, start+gcstate.Addr(size), true)
}

func TestAppendAndForEach(t *testing.T) {
	l := NewChunkList(0, 0)
	c1 := newTestChunk(0, 16)
	c2 := newTestChunk(100, 16)
	l.Append(c1)
	l.Append(c2)

	if l.Count() != 2 {
		t.Fatalf("count = %d, want 2", l.Count())
	}
	if l.Size() != 32 {
		t.Fatalf("size = %d, want 32", l.Size())
	}

	var seen []*Chunk
	l.ForEach(func(c *Chunk) { seen = append(seen, c) })
	if len(seen) != 2 || seen[0] != c1 || seen[1] != c2 {
		t.Fatalf("ForEach order wrong: %v", seen)
	}
	if c1.List != l || c2.List != l {
		t.Fatal("back-links not set")
	}
}

func TestAppendListMovesAllChunks(t *testing.T) {
	dst := NewChunkList(0, 0)
	src := NewChunkList(0, 0)
	c1 := newTestChunk(0, 16)
	c2 := newTestChunk(100, 16)
	src.Append(c1)
	src.Append(c2)

	dst.Append(newTestChunk(200, 16))
	dst.AppendList(src)

	if dst.Count() != 3 {
		t.Fatalf("count = %d, want 3", dst.Count())
	}
	if !src.Empty() {
		t.Fatal("src should be drained")
	}
	if c1.List != dst || c2.List != dst {
		t.Fatal("moved chunks should point at dst")
	}
	if dst.Tail != c2 {
		t.Fatal("tail should be the last moved chunk")
	}
}

func TestUnlinkFromMiddle(t *testing.T) {
	l := NewChunkList(0, 0)
	c1 := newTestChunk(0, 16)
	c2 := newTestChunk(100, 16)
	c3 := newTestChunk(200, 16)
	l.Append(c1)
	l.Append(c2)
	l.Append(c3)

	Unlink(c2)

	if l.Count() != 2 {
		t.Fatalf("count = %d, want 2", l.Count())
	}
	if c1.Next != c3 || c3.Prev != c1 {
		t.Fatal("neighbors not relinked")
	}
	if c2.List != nil || c2.Next != nil || c2.Prev != nil {
		t.Fatal("unlinked chunk should be fully detached")
	}
}

func TestUnlinkHeadAndTail(t *testing.T) {
	l := NewChunkList(0, 0)
	c1 := newTestChunk(0, 16)
	l.Append(c1)
	Unlink(c1)
	if !l.Empty() {
		t.Fatal("list should be empty after unlinking its only chunk")
	}
	if l.Head != nil || l.Tail != nil {
		t.Fatal("head/tail should be nil")
	}
}
