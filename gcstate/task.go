package gcstate

// Task is whatever the scheduler stores in a deque slot: the suspended
// continuation representing "resume the computation waiting for the fork
// at this depth to join". The collector never interprets a Task's meaning,
// but it must be able to forward any heap Addrs a Task happens to close
// over ("work-stealing deque contents" is one of the
// root sets). RootAddrs exposes exactly those fields, as pointers so the
// forwarding engine can rewrite them in place.
type Task interface {
	RootAddrs() []*Addr
}
