package gcstate

import "time"

// Runtime is the narrow contract this core consumes from its
// process-level scheduling collaborator: spawn_worker and monotonic_time
// as interfaces the core calls into, never as something it reimplements.
//
// current_worker_id has no method here: this runtime threads a
// thread-local handle (a *Worker's pieces) explicitly through every
// public entry point rather than through a process-wide singleton, so
// there is no global to query, and adding one back as an interface
// method would undo that design rather than honor it.
type Runtime interface {
	// SpawnWorker starts fn on a new worker, identified by the id passed
	// to it.
	SpawnWorker(fn func(workerID int))
	// MonotonicTime reports a monotonic clock reading. The collector does
	// not call it.
	MonotonicTime() time.Duration
}
