package gcstate

import "fmt"

// ErrorKind enumerates the fatal conditions the collector and deque can
// raise. All of them are process-fatal in production; see Die.
type ErrorKind int

const (
	// OutOfHeap means the underlying mapped region is exhausted.
	OutOfHeap ErrorKind = iota
	// ForkDepthExceeded means push_bot was attempted on a full deque.
	ForkDepthExceeded
	// Entanglement means forward() reached an object above the window's
	// maxLevel: the mutator produced a cross-owner pointer.
	Entanglement
	// WeakDuringLocal means forwarding encountered a WEAK object; weak
	// references are only supported through major collection.
	WeakDuringLocal
	// InvariantViolated guards assertion-build-only sanity checks.
	InvariantViolated
)

func (k ErrorKind) String() string {
	switch k {
	case OutOfHeap:
		return "OutOfHeap"
	case ForkDepthExceeded:
		return "ForkDepthExceeded"
	case Entanglement:
		return "Entanglement"
	case WeakDuringLocal:
		return "WeakDuringLocal"
	case InvariantViolated:
		return "InvariantViolated"
	default:
		return "UnknownError"
	}
}

// FatalError is the structured message every abort path produces. The core
// never recovers from one of these in production, but test code may recover
// a panic carrying a *FatalError to turn a fatal scenario into a normal
// Go test assertion.
type FatalError struct {
	Kind ErrorKind
	Msg  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Die aborts the process with a structured fatal error, mirroring
// throw("runtime: ...") in mem_linux.go and MPL's DIE(...) macro: both are
// unconditional, unrecoverable-in-production aborts.
func Die(kind ErrorKind, format string, args ...any) {
	panic(&FatalError{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// Recover runs fn and, if it panics with a *FatalError, returns it instead
// of letting the panic propagate. Production code paths never call this;
// it exists so tests can assert on fatal paths such as set-depth
// precondition violations as ordinary error outcomes. (Deque capacity
// overflow needs no recovery: PushBot reports it by returning false.)
func Recover(fn func()) (err *FatalError) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
