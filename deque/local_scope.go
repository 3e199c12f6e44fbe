package deque

// ClaimLocalScope attempts to claim the depth of the bottom-most task
// exclusively for collection by popping it with TryPopBot; success means
// "this depth is now exclusively mine for collection". While other tasks
// remain below top, bot drops by one; when the claimed task is the last
// one, TryPopBot wins it by advancing top and leaves bot where it was.
func (d *Deque) ClaimLocalScope() bool {
	_, ok := d.TryPopBot()
	return ok
}

// ReleaseLocalScope restores bot to its value before a run of
// ClaimLocalScope calls, mirroring local-scope.c's releaseLocalScope.
func (d *Deque) ReleaseLocalScope(originalBot uint64) {
	d.bot.Store(originalBot)
}

// CurrentLocalScope reads the deque's bot cursor, which doubles as the
// worker's "next depth to collect".
func (d *Deque) CurrentLocalScope() uint64 {
	return d.bot.Load()
}
