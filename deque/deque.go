// Package deque implements the Chase-Lev work-stealing deque, plus the
// local-scope-claim protocol that lets the collector borrow the deque's
// bot cursor as "next depth to collect".
package deque

import (
	"sync/atomic"

	"github.com/westrhh/hhrun/gcstate"
)

// Capacity is the deque's fixed ring size ("fixed-capacity (64)
// ring of task references").
const Capacity = 64

// taskBox lets the ring hold an interface value behind a single pointer,
// so each slot can use atomic.Pointer instead of a mutex.
type taskBox struct {
	task gcstate.Task
}

// Deque is a bounded, single-owner/multi-thief lock-free deque. top and
// bot are 64-bit monotonic cursors (mod Capacity for indexing); the owner
// pushes and pops the bot end, any thief pops the top end.
//
// This runtime uses sync/atomic's Load/Store/CompareAndSwap for every
// field the original (original_source/runtime/gc/chase-lev-deque.c)
// accesses with __atomic_* builtins. Go's atomic operations are all at
// least acquire/release; the original mixes in genuinely RELAXED loads
// and stores plus a couple of explicit fences. Using the stronger Go
// primitives everywhere only adds ordering the algorithm didn't strictly
// require — it cannot remove any the algorithm depends on — so the
// linearizability argument for Chase–Lev still goes through unchanged.
type Deque struct {
	top atomic.Uint64
	bot atomic.Uint64

	data [Capacity]atomic.Pointer[taskBox]

	workerID   int
	registered bool
}

// NewDeque allocates an empty deque.
func NewDeque() *Deque {
	return &Deque{}
}

// Register records the owning worker's id (readable through WorkerID) and
// marks the deque registered, mirroring deque_register; this runtime
// doesn't route through global GC state the way the source does.
func (d *Deque) Register(workerID int) {
	d.workerID = workerID
	d.registered = true
}

func (d *Deque) WorkerID() int { return d.workerID }

// Registered reports whether Register has run: a collection is skipped
// if the deque isn't registered yet.
func (d *Deque) Registered() bool { return d.registered }

// PushBot pushes elem onto the bot end. Owner-only. Returns false if the
// deque is already at capacity, which callers must treat as the fatal
// ForkDepthExceeded condition — returning a bool rather than calling
// gcstate.Die directly is what keeps the capacity-overflow path testable.
func (d *Deque) PushBot(task gcstate.Task) bool {
	b := d.bot.Load()
	t := d.top.Load()

	if b-t >= Capacity {
		return false
	}

	d.data[b%Capacity].Store(&taskBox{task: task})
	d.bot.Store(b + 1)
	return true
}

// TryPopBot pops the bot end. Owner-only. Returns (task, true) on
// success, (nil, false) if the deque was empty or lost a race with a
// thief for the last element, mirroring chase-lev-deque.c's ChaseLev_tryPopBot.
func (d *Deque) TryPopBot() (gcstate.Task, bool) {
	b := d.bot.Load()
	if b == 0 {
		// top <= bot, so nothing lies below bot 0; decrementing would wrap.
		return nil, false
	}
	b--
	d.bot.Store(b)
	t := d.top.Load()

	if t > b {
		// empty
		d.bot.Store(b + 1)
		return nil, false
	}

	box := d.data[b%Capacity].Load()
	if t < b {
		// more than one element remained; no contest with thieves.
		return box.task, true
	}

	// t == b: this was the last element, contend with thieves for it.
	ok := d.top.CompareAndSwap(t, t+1)
	d.bot.Store(b + 1)
	if !ok {
		return nil, false
	}
	return box.task, true
}

// TryPopTop pops the top end. Callable by any thief concurrently with the
// owner and other thieves. Spurious failure on a lost race is permitted
// mirroring chase-lev-deque.c's ChaseLev_tryPopTop.
func (d *Deque) TryPopTop() (gcstate.Task, bool) {
	t := d.top.Load()
	b := d.bot.Load()

	if t >= b {
		return nil, false
	}

	box := d.data[t%Capacity].Load()
	if !d.top.CompareAndSwap(t, t+1) {
		return nil, false
	}
	return box.task, true
}

// ForEachTask visits every task currently visible between top and bot,
// read-only ("forward work-stealing deque contents").
// Thieves may steal concurrently; a slot read here can already be gone by
// the time collection finishes, which is safe — tracing an extra,
// no-longer-reachable root only delays when its referents become
// collectible, it never misses a live one.
func (d *Deque) ForEachTask(fn func(gcstate.Task)) {
	t := d.top.Load()
	b := d.bot.Load()
	for i := t; i < b; i++ {
		if box := d.data[i%Capacity].Load(); box != nil {
			fn(box.task)
		}
	}
}

// SetDepth repositions both cursors to desiredDepth. The deque must be
// empty (top == bot); a non-empty deque here is a programmer error, not a
// runtime condition, so it is fatal, mirroring ChaseLev_setDepth's assertion.
//
// The order of the two stores matters: an observer must never see the
// deque look non-empty partway through. If we're shrinking, bot (the
// lower bound an observer compares against) moves first; if we're
// growing, top moves first.
func (d *Deque) SetDepth(desiredDepth uint64) {
	t := d.top.Load()
	b := d.bot.Load()
	if t != b {
		gcstate.Die(gcstate.InvariantViolated,
			"SetDepth on non-empty deque: top=%d bot=%d desiredDepth=%d", t, b, desiredDepth)
	}

	if desiredDepth == b {
		return
	}
	if desiredDepth < b {
		d.bot.Store(desiredDepth)
		d.top.Store(desiredDepth)
	} else {
		d.top.Store(desiredDepth)
		d.bot.Store(desiredDepth)
	}
}
