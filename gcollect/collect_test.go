package gcollect

import (
	"testing"

	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/deque"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/hheap"
	"github.com/westrhh/hhrun/mutator"
	"github.com/westrhh/hhrun/object"
)

type rootTask struct{ root gcstate.Addr }

func (t *rootTask) RootAddrs() []*gcstate.Addr { return []*gcstate.Addr{&t.root} }

type noopTask struct{}

func (noopTask) RootAddrs() []*gcstate.Addr { return nil }

type testEnv struct {
	alloc  *block.Allocator
	dq     *deque.Deque
	thread *hheap.Thread
	driver *Driver
	heap   *mutator.Heap
}

func newTestEnv(t *testing.T, cfg gcstate.Config) *testEnv {
	t.Helper()
	alloc := block.NewAllocator(0)
	t.Cleanup(func() { alloc.Close() })

	thread, err := hheap.NewThreadWithHeap(alloc, 256, 0)
	if err != nil {
		t.Fatalf("NewThreadWithHeap: %v", err)
	}

	dq := deque.NewDeque()
	dq.Register(0)

	driver := NewDriver(cfg, alloc, dq, thread)
	h := mutator.NewHeap(cfg, alloc, thread, driver)
	h.EnterLocalHeap()

	return &testEnv{alloc: alloc, dq: dq, thread: thread, driver: driver, heap: h}
}

// pushAndDescend simulates a fork: push a continuation task for the
// current depth, then move the running thread one level deeper into a
// freshly extended level, the way a spawn site does.
func (e *testEnv) pushAndDescend(t *testing.T, task gcstate.Task) {
	t.Helper()
	if !e.dq.PushBot(task) {
		t.Fatal("PushBot failed")
	}
	e.heap.ExitLocalHeap()
	e.thread.CurrentDepth++
	if err := e.thread.HH.Extend(e.alloc, e.thread.CurrentDepth, gcstate.WordSize); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	e.heap.EnterLocalHeap()
}

func (e *testEnv) chunkAt(addr gcstate.Addr) *chunklist.Chunk {
	return e.alloc.ChunkAt(addr)
}

func (e *testEnv) allocNormal(t *testing.T, nPtrs int) gcstate.Addr {
	t.Helper()
	size := uintptr(1+nPtrs) * gcstate.WordSize
	p, err := e.heap.Allocate(size)
	if err != nil {
		t.Fatalf("Allocate normal: %v", err)
	}
	addr := gcstate.Addr(uintptr(p))
	c := e.chunkAt(addr)
	object.WriteHeader(c, addr, gcstate.NewHeader(gcstate.TagNormal, uint16(nPtrs), 0))
	for i := 0; i < nPtrs; i++ {
		object.WriteField(c, addr, i, gcstate.NilAddr)
	}
	return addr
}

// allocSequence allocates a SEQUENCE object with nElems pointer elements.
// Layout is header (1 word) + length (1 word) + nElems element words, per
// object.Sizes's TagSequence case.
func (e *testEnv) allocSequence(t *testing.T, nElems int) gcstate.Addr {
	t.Helper()
	size := 2*gcstate.WordSize + uintptr(nElems)*gcstate.WordSize
	p, err := e.heap.Allocate(size)
	if err != nil {
		t.Fatalf("Allocate sequence: %v", err)
	}
	addr := gcstate.Addr(uintptr(p))
	c := e.chunkAt(addr)
	object.WriteHeader(c, addr, gcstate.NewHeader(gcstate.TagSequence, uint16(nElems), 0))
	object.WriteSequenceLength(c, addr, uint64(nElems))
	for i := 0; i < nElems; i++ {
		object.WriteSequenceElem(c, addr, i, gcstate.NilAddr)
	}
	return addr
}

func (e *testEnv) setField(addr gcstate.Addr, idx int, val gcstate.Addr) {
	c := e.chunkAt(addr)
	e.heap.WriteField(c, addr, idx, val)
}

// TestS1ForkJoinLeafCollection checks that a superlocal collection at the
// leaf a fork descended into reclaims garbage and keeps the rooted
// object reachable, without touching any shallower level.
func TestS1ForkJoinLeafCollection(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	e := newTestEnv(t, cfg)

	task := &rootTask{}
	e.pushAndDescend(t, task)

	root := e.allocNormal(t, 0)
	task.root = root

	_ = e.allocNormal(t, 0) // garbage: never rooted
	for i := 0; i < 300; i++ {
		e.allocSequence(t, 2)
	}

	e.heap.ExitLocalHeap()
	if err := e.driver.CollectLocal(1, true); err != nil {
		t.Fatalf("CollectLocal: %v", err)
	}
	e.heap.EnterLocalHeap()

	if e.thread.CurrentDepth != 1 {
		t.Fatalf("CurrentDepth = %d, want 1", e.thread.CurrentDepth)
	}
	if e.thread.HH.Levels[0] == nil {
		t.Fatal("level 0 should be untouched by a superlocal collection at depth 1")
	}

	if !task.root.Valid() {
		t.Fatal("rooted object should have survived collection")
	}
	newRoot := task.root
	c := e.chunkAt(newRoot)
	h := object.ReadHeader(c, newRoot)
	if h.IsForwarded() || h.Tag() != gcstate.TagNormal {
		t.Fatal("root's new copy should be a live, unforwarded NORMAL object")
	}
	if newRoot == root {
		t.Log("root happened to land at the same address; not itself a failure")
	}
}

// TestS2SingleObjectChunkMove checks that an oversized object living
// alone in its dedicated chunk survives collection by having its whole
// chunk relinked into to-space rather than being memcpy'd.
func TestS2SingleObjectChunkMove(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	e := newTestEnv(t, cfg)

	e.pushAndDescend(t, noopTask{})

	big := e.allocSequence(t, 2000) // forces a dedicated, single-object chunk
	bigChunk := e.chunkAt(big)
	if bigChunk.MightContainMultipleObjects {
		t.Fatal("test setup expected a dedicated single-object chunk")
	}

	root := &rootTask{root: big}
	e.dq.PushBot(root)

	e.heap.ExitLocalHeap()
	if err := e.driver.CollectLocal(1, true); err != nil {
		t.Fatalf("CollectLocal: %v", err)
	}
	e.heap.EnterLocalHeap()

	if root.root != big {
		t.Fatalf("single-object chunk move should preserve the object's address, got %d want %d", root.root, big)
	}
	newChunk := e.chunkAt(root.root)
	if newChunk != bigChunk {
		t.Fatal("single-object chunk move should relink the same chunk, not copy into a new one")
	}
	if newChunk.List.IsInToSpace {
		t.Fatal("installed level must have IsInToSpace cleared or the next collection would skip it")
	}
}

// TestS3DownPointerPromotion checks that a down-pointer from a deep,
// collected level into a shallow, untouched level is promoted before
// copying and re-remembered at the (unmoved) target's own level.
func TestS3DownPointerPromotion(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	e := newTestEnv(t, cfg)

	d := e.allocNormal(t, 0) // lives at depth 0, never moves

	e.pushAndDescend(t, noopTask{}) // depth 1
	e.pushAndDescend(t, noopTask{}) // depth 2

	s := e.allocNormal(t, 1)
	e.setField(s, 0, d)

	list0 := e.thread.HH.Levels[0]
	if list0 == nil || list0.RememberedSet == nil || list0.RememberedSet.Len() != 1 {
		t.Fatal("write barrier should have remembered the depth-2-to-depth-0 down-pointer")
	}

	// Root S through ExnStack rather than the deque: claiming a wider
	// scope pops fork placeholders off the deque's bot end regardless of
	// which task holds what, so a smuggled-in root task could be the one
	// consumed by the claim instead of a genuine fork placeholder.
	e.thread.ExnStack = s

	e.heap.ExitLocalHeap()
	if err := e.driver.CollectLocal(1, true); err != nil {
		t.Fatalf("CollectLocal: %v", err)
	}
	e.heap.EnterLocalHeap()

	dChunk := e.chunkAt(d)
	dHeader := object.ReadHeader(dChunk, d)
	if dHeader.IsForwarded() {
		t.Fatal("D lives outside the collection window and must not move")
	}

	newS := e.thread.ExnStack
	if newS == s {
		t.Fatal("S should have moved: its level was inside the collection window")
	}
	got := object.ReadField(e.chunkAt(newS), newS, 0)
	if got != d {
		t.Fatalf("S's field should still point at D, got %d want %d", got, d)
	}

	list0After := e.thread.HH.Levels[0]
	if list0After == nil || list0After.RememberedSet == nil || list0After.RememberedSet.Len() != 1 {
		t.Fatal("the promoted edge should be re-remembered at D's own (unmoved) level")
	}
	var found bool
	list0After.RememberedSet.ForEach(func(e2 chunklist.DownPtrEdge) {
		if e2.Src == newS && e2.Dst == d {
			found = true
		}
	})
	if !found {
		t.Fatal("re-remembered edge should point from S's new address to D")
	}
}

// TestCollectLocalSkipsWhenClaimFails covers the "no depths could be
// claimed" precondition: if a thief has already stolen the only claimable
// fork, widening past the leaf must fail and CollectLocal must leave
// every level untouched.
func TestCollectLocalSkipsWhenClaimFails(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	e := newTestEnv(t, cfg)

	e.pushAndDescend(t, noopTask{}) // depth 1
	if _, ok := e.dq.TryPopTop(); !ok {
		t.Fatal("thief should have stolen the only pushed task")
	}

	e.heap.ExitLocalHeap()
	e.thread.CurrentDepth = 2
	if err := e.thread.HH.Extend(e.alloc, 2, gcstate.WordSize); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	e.heap.EnterLocalHeap()

	before := e.thread.HH.Levels[1]

	e.heap.ExitLocalHeap()
	if err := e.driver.CollectLocal(1, true); err != nil {
		t.Fatalf("CollectLocal: %v", err)
	}
	e.heap.EnterLocalHeap()

	if e.thread.HH.Levels[1] != before {
		t.Fatal("level 1 should be untouched when scope widening fails to claim anything")
	}
}
