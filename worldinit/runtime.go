package worldinit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/westrhh/hhrun/gcstate"
)

// goroutineRuntime is the default gcstate.Runtime: workers are goroutines
// rather than pinned OS threads, grounded on
// scheduler/proc.go worker-loop shape (a perpetual find-work loop here
// narrowed to a finite fork/execute/join round, since preemptive
// scheduling is explicitly out of scope) and on
// channels_amd_select/proc.go's goroutine/OS-thread split.
type goroutineRuntime struct {
	start  time.Time
	nextID atomic.Int64
}

// NewGoroutineRuntime builds the default Runtime implementation.
func NewGoroutineRuntime() gcstate.Runtime {
	return &goroutineRuntime{start: monotonicNow()}
}

func (r *goroutineRuntime) SpawnWorker(fn func(workerID int)) {
	id := int(r.nextID.Add(1))
	go fn(id)
}

func (r *goroutineRuntime) MonotonicTime() time.Duration {
	return monotonicNow().Sub(r.start)
}

// monotonicNow reads time.Now(), which on every platform Go supports
// carries a monotonic reading alongside the wall clock; subtracting two
// such values (as MonotonicTime does) uses only that monotonic component.
func monotonicNow() time.Time { return time.Now() }

// Job is the unit of work a spawned worker runs to completion: a plain
// function this runtime only consumes, never reimplements the
// scheduling policy of.
type Job func(w *Worker)

// RunWorkers spawns n workers sharing w's block allocator, starting each
// one at depth 1 via DuplicateWorld, runs fn on each, and blocks until
// every one returns. It is the fork side of the fork-join model: join is
// simply RunWorkers itself returning.
func RunWorkers(w *World, rt gcstate.Runtime, n int, fn Job) []*Worker {
	workers := make([]*Worker, n)
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(n)
	for i := 0; i < n; i++ {
		rt.SpawnWorker(func(id int) {
			defer wg.Done()

			mu.Lock()
			worker, err := DuplicateWorld(w, id)
			mu.Unlock()
			if err != nil {
				gcstate.Die(gcstate.OutOfHeap, "RunWorkers: spawn worker %d: %v", id, err)
			}
			workers[id-1] = worker

			fn(worker)
		})
	}
	wg.Wait()
	return workers
}
