package gcstate

// Addr is a raw address into one of this runtime's mapped block regions.
// Objects inside a hierarchical heap are addressed this way rather than by
// Go pointer, exactly as memory_and_heap/mheap.go addresses mspans and
// the MLton source addresses heap objects: the memory is off the ordinary
// Go heap (mapped directly via syscall.Mmap, see block/region.go) and the
// collector needs to do its own pointer bookkeeping, forwarding, and
// header-word tagging independent of Go's own GC.
type Addr uintptr

// NilAddr is the zero value: "no pointer here".
const NilAddr Addr = 0

func (a Addr) Valid() bool { return a != NilAddr }

// WordSize is the size in bytes of a pointer-sized slot: headers, pointer
// fields, and sequence length prefixes are all one WordSize wide.
const WordSize = 8
