package worldinit

import (
	"sync"
	"testing"

	"github.com/westrhh/hhrun/gcstate"
)

func TestInitWorldCreatesRootWorker(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	w, err := InitWorld(cfg, 0)
	if err != nil {
		t.Fatalf("InitWorld: %v", err)
	}
	defer w.Alloc.Close()

	if len(w.Workers) != 1 {
		t.Fatalf("len(Workers) = %d, want 1", len(w.Workers))
	}
	root := w.Workers[0]
	if root.ID != 0 {
		t.Fatalf("root worker ID = %d, want 0", root.ID)
	}
	if root.Thread.CurrentDepth != 0 {
		t.Fatalf("root worker depth = %d, want 0", root.Thread.CurrentDepth)
	}
	if root.Deque.CurrentLocalScope() != 0 {
		t.Fatalf("root worker deque depth = %d, want 0", root.Deque.CurrentLocalScope())
	}
}

func TestDuplicateWorldStartsAtDepthOne(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	w, err := InitWorld(cfg, 0)
	if err != nil {
		t.Fatalf("InitWorld: %v", err)
	}
	defer w.Alloc.Close()

	worker, err := DuplicateWorld(w, 1)
	if err != nil {
		t.Fatalf("DuplicateWorld: %v", err)
	}
	if worker.Thread.CurrentDepth != 1 {
		t.Fatalf("duplicated worker depth = %d, want 1", worker.Thread.CurrentDepth)
	}
	if len(w.Workers) != 2 {
		t.Fatalf("len(Workers) = %d, want 2", len(w.Workers))
	}
	if worker.Alloc != w.Alloc {
		t.Fatal("duplicated worker should share the world's block allocator")
	}
}

func TestSwitchToThread(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	w, err := InitWorld(cfg, 0)
	if err != nil {
		t.Fatalf("InitWorld: %v", err)
	}
	defer w.Alloc.Close()

	root := w.Workers[0]
	other, err := NewThreadWithHeap(w.Alloc, DefaultStackReserved, 2)
	if err != nil {
		t.Fatalf("NewThreadWithHeap: %v", err)
	}

	SwitchToThread(root, other)

	if root.Thread != other {
		t.Fatal("SwitchToThread should install the new thread on the worker")
	}
	if root.Driver.Thread != other {
		t.Fatal("SwitchToThread should re-point the driver at the new thread")
	}
	if root.Heap.Thread != other {
		t.Fatal("SwitchToThread should re-point the mutator heap at the new thread")
	}
	if root.Heap.Frontier != other.HH.GetFrontier() {
		t.Fatal("SwitchToThread should re-enter the local heap against the new thread")
	}
}

func TestRunWorkersJoinsAll(t *testing.T) {
	cfg := gcstate.DefaultConfig()
	w, err := InitWorld(cfg, 0)
	if err != nil {
		t.Fatalf("InitWorld: %v", err)
	}
	defer w.Alloc.Close()

	const n = 8
	var mu sync.Mutex
	seen := make([]bool, n+1)

	rt := NewGoroutineRuntime()
	spawned := RunWorkers(w, rt, n, func(worker *Worker) {
		mu.Lock()
		seen[worker.ID] = true
		mu.Unlock()
	})

	if len(spawned) != n {
		t.Fatalf("len(spawned) = %d, want %d", len(spawned), n)
	}
	for id := 1; id <= n; id++ {
		if !seen[id] {
			t.Fatalf("worker %d never ran", id)
		}
	}
	if len(w.Workers) != n+1 {
		t.Fatalf("len(w.Workers) = %d, want %d", len(w.Workers), n+1)
	}
}
