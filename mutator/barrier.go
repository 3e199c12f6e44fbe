package mutator

import (
	"github.com/westrhh/hhrun/chunklist"
	"github.com/westrhh/hhrun/gcstate"
	"github.com/westrhh/hhrun/object"
)

// WriteField stores val into the idx'th pointer field of the object at
// objAddr and remembers the write if it creates a down-pointer: for every
// down-pointer src -> dst where level(src) > level(dst), the triple (src,
// &field, dst) must appear in the remembered set of levels[level(dst)].
// Every mutation that can create such an edge goes through here rather
// than object.WriteField directly.
func (h *Heap) WriteField(mem object.Memory, objAddr gcstate.Addr, idx int, val gcstate.Addr) {
	object.WriteField(mem, objAddr, idx, val)
	h.rememberIfDownPtr(objAddr, object.FieldAddr(objAddr, idx), val)
}

func (h *Heap) rememberIfDownPtr(src, field, dst gcstate.Addr) {
	if !dst.Valid() {
		return
	}
	srcChunk := h.Alloc.ChunkAt(src)
	dstChunk := h.Alloc.ChunkAt(dst)
	if srcChunk == nil || dstChunk == nil || srcChunk.List == nil || dstChunk.List == nil {
		return
	}
	if srcChunk.List.Depth <= dstChunk.List.Depth {
		return
	}
	list := dstChunk.List
	if list.RememberedSet == nil {
		list.RememberedSet = chunklist.NewRememberedSet()
	}
	list.RememberedSet.Add(chunklist.DownPtrEdge{Src: src, Field: field, Dst: dst})
}
