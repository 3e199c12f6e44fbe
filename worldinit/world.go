// Package worldinit implements process-level world initialization and
// per-worker fork/join bookkeeping: init_world, duplicate_world, and
// switch_to_thread. It is the one package in this runtime that is
// allowed to know about every other package, since its entire job is
// wiring them together into a running worker.
package worldinit

import (
	"github.com/westrhh/hhrun/block"
	"github.com/westrhh/hhrun/deque"
	"github.com/westrhh/hhrun/gcollect"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/hheap"
	"github.com/westrhh/hhrun/mutator"
)

// DefaultStackReserved is the initial stack size a freshly created
// thread is given, mirroring init-world.c's initial stack allocation.
const DefaultStackReserved = 4096

// Worker is the per-OS-thread runtime state: a thread-local GC_state
// containing the frontier triple, current thread pointer, and deque
// handles. One Worker owns one hierarchical heap (via Thread), one
// Chase-Lev deque, and the mutator/collector views onto both.
type Worker struct {
	ID     int
	Config gcstate.Config
	Alloc  *block.Allocator
	Deque  *deque.Deque
	Thread *hheap.Thread
	Driver *gcollect.Driver
	Heap   *mutator.Heap
}

// World is the process-wide state InitWorld creates once: the shared
// block allocator every worker carves chunks from ("Free list
// of chunks: either per-worker or with a lock-free pool" — this runtime
// takes the shared-pool option, see block.Allocator's own mutex), plus
// every worker built so far.
type World struct {
	Config  gcstate.Config
	Alloc   *block.Allocator
	Workers []*Worker
}

// InitWorld performs the one-time per-process setup: build the shared
// block allocator, then worker 0's depth-0 hierarchical heap and its
// initial thread/stack pair, grounded on init-world.c's construction of
// the first thread/stack objects inside a depth-0 heap.
func InitWorld(cfg gcstate.Config, maxHeapBytes uintptr) (*World, error) {
	alloc := block.NewAllocator(maxHeapBytes)
	w := &World{Config: cfg, Alloc: alloc}

	root, err := newWorker(0, cfg, alloc, 0)
	if err != nil {
		return nil, err
	}
	w.Workers = append(w.Workers, root)
	return w, nil
}

func newWorker(id int, cfg gcstate.Config, alloc *block.Allocator, startDepth uint32) (*Worker, error) {
	thread, err := hheap.NewThreadWithHeap(alloc, DefaultStackReserved, startDepth)
	if err != nil {
		return nil, err
	}

	dq := deque.NewDeque()
	dq.Register(id)
	dq.SetDepth(uint64(startDepth))

	driver := gcollect.NewDriver(cfg, alloc, dq, thread)
	heap := mutator.NewHeap(cfg, alloc, thread, driver)
	heap.EnterLocalHeap()

	return &Worker{
		ID:     id,
		Config: cfg,
		Alloc:  alloc,
		Deque:  dq,
		Thread: thread,
		Driver: driver,
		Heap:   heap,
	}, nil
}

// NewThreadWithHeap creates a thread with its own hierarchical heap and
// an initial stack at the given depth, re-exported here as the entry
// point external callers use; the underlying construction lives in
// hheap since it only needs the allocator and heap primitives.
func NewThreadWithHeap(alloc *block.Allocator, stackReserved uintptr, level uint32) (*hheap.Thread, error) {
	return hheap.NewThreadWithHeap(alloc, stackReserved, level)
}

// DuplicateWorld builds a fresh worker for a newly spawned OS thread,
// sharing w's configuration and block allocator and starting the new
// worker's thread at depth 1: per-worker fork, building a fresh depth-1
// HH. No statistics are copied from existing workers. Depth 0 stays
// reserved for the world's original, globals-owning worker.
func DuplicateWorld(w *World, id int) (*Worker, error) {
	worker, err := newWorker(id, w.Config, w.Alloc, 1)
	if err != nil {
		return nil, err
	}
	w.Workers = append(w.Workers, worker)
	return worker, nil
}

// SwitchToThread installs t as w's running thread, re-scoping the
// mutator's frontier cache to it.
func SwitchToThread(w *Worker, t *hheap.Thread) {
	w.Heap.ExitLocalHeap()
	w.Thread = t
	w.Heap.Thread = t
	w.Driver.Thread = t
	w.Heap.EnterLocalHeap()
}
