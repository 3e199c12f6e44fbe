package chunklist

import "github.com/westrhh/hhrun/gcstate"

// DownPtrEdge is one remembered-set triple: src's field at address Field
// points down to dst, where depth(src) > depth(dst).
type DownPtrEdge struct {
	Src   gcstate.Addr
	Field gcstate.Addr
	Dst   gcstate.Addr
}

// RememberedSet is conceptually "another chunk list" holding (source,
// field, target) triples at the target's level. This runtime represents
// it as a growable edge slice rather than byte-packing triples into chunk
// memory: a Go slice already gives the amortized chunked growth the C
// version hand-rolls via chunk allocation, and every consumer of a
// remembered set (deferred promotion, invariant checks) only cares about
// its edge content, not its storage representation. See DESIGN.md for
// the full rationale.
type RememberedSet struct {
	edges []DownPtrEdge
}

func NewRememberedSet() *RememberedSet { return &RememberedSet{} }

func (r *RememberedSet) Add(e DownPtrEdge) { r.edges = append(r.edges, e) }

func (r *RememberedSet) Len() int { return len(r.edges) }

func (r *RememberedSet) ForEach(fn func(DownPtrEdge)) {
	for _, e := range r.edges {
		fn(e)
	}
}

// Drain removes and returns all edges, leaving the set empty. Used by
// deferred promotion, which must process every remembered edge exactly
// once per collection.
func (r *RememberedSet) Drain() []DownPtrEdge {
	edges := r.edges
	r.edges = nil
	return edges
}
