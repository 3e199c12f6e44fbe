// Package object implements the byte-level object layout: reading and
// writing the header word, pointer fields, and type-specific payloads of
// objects living inside a chunk's backing memory.
package object

import (
	"encoding/binary"

	"github.com/westrhh/hhrun/gcstate"
)

// Memory is the minimal slice-with-base-address view an object accessor
// needs. chunklist.Chunk implements it via Bytes()+Start.
type Memory interface {
	Bytes() []byte
	Base() gcstate.Addr
}

func offset(m Memory, addr gcstate.Addr) uintptr {
	return uintptr(addr - m.Base())
}

// ReadHeader loads the header word at addr.
func ReadHeader(m Memory, addr gcstate.Addr) gcstate.Header {
	off := offset(m, addr)
	return gcstate.Header(binary.LittleEndian.Uint64(m.Bytes()[off : off+8]))
}

// WriteHeader stores h at addr, the operation that performs forwarding
// ("write a pointer-with-tag atomically" — collection is
// single-threaded per worker so a plain store suffices here).
func WriteHeader(m Memory, addr gcstate.Addr, h gcstate.Header) {
	off := offset(m, addr)
	binary.LittleEndian.PutUint64(m.Bytes()[off:off+8], uint64(h))
}

// FieldAddr returns the address of the idx'th pointer-sized field
// following the header at objAddr.
func FieldAddr(objAddr gcstate.Addr, idx int) gcstate.Addr {
	return objAddr + gcstate.Addr(gcstate.WordSize) + gcstate.Addr(idx*gcstate.WordSize)
}

// ReadAddr loads the Addr-sized word stored at addr. It is the building
// block both ReadField and the forwarding engine's root/field visitors
// use: a root is just an address with no FieldAddr offset to compute.
func ReadAddr(m Memory, addr gcstate.Addr) gcstate.Addr {
	off := offset(m, addr)
	return gcstate.Addr(binary.LittleEndian.Uint64(m.Bytes()[off : off+8]))
}

// WriteAddr stores val at addr, the forwarding engine's "rewrite the
// visiting field" step applied directly rather than through a field index.
func WriteAddr(m Memory, addr gcstate.Addr, val gcstate.Addr) {
	off := offset(m, addr)
	binary.LittleEndian.PutUint64(m.Bytes()[off:off+8], uint64(val))
}

// ReadField loads the Addr stored in the idx'th pointer field of the
// object at objAddr.
func ReadField(m Memory, objAddr gcstate.Addr, idx int) gcstate.Addr {
	return ReadAddr(m, FieldAddr(objAddr, idx))
}

// WriteField stores val into the idx'th pointer field of the object at
// objAddr, the forwarding engine's "rewrite the visiting field" step.
func WriteField(m Memory, objAddr gcstate.Addr, idx int, val gcstate.Addr) {
	WriteAddr(m, FieldAddr(objAddr, idx), val)
}

// SequenceLength reads the element count stored in a SEQUENCE object's
// length prefix (the word immediately following its header).
func SequenceLength(m Memory, addr gcstate.Addr) uint64 {
	off := offset(m, FieldAddr(addr, 0))
	return binary.LittleEndian.Uint64(m.Bytes()[off : off+8])
}

// WriteSequenceLength stores a SEQUENCE object's element count.
func WriteSequenceLength(m Memory, addr gcstate.Addr, n uint64) {
	off := offset(m, FieldAddr(addr, 0))
	binary.LittleEndian.PutUint64(m.Bytes()[off:off+8], n)
}

// SequenceElem/WriteSequenceElem access the idx'th pointer-sized element
// of a SEQUENCE object, which start one word after the length prefix.
func SequenceElem(m Memory, addr gcstate.Addr, idx int) gcstate.Addr {
	return ReadField(m, addr, idx+1)
}

func WriteSequenceElem(m Memory, addr gcstate.Addr, idx int, val gcstate.Addr) {
	WriteField(m, addr, idx+1, val)
}

// StackUsed/StackReserved access a STACK object's two metadata words,
// which sit right after the header: used bytes, then reserved bytes.
func StackUsed(m Memory, addr gcstate.Addr) uint64      { return uint64(ReadField(m, addr, 0)) }
func WriteStackUsed(m Memory, addr gcstate.Addr, n uint64) { WriteField(m, addr, 0, gcstate.Addr(n)) }

func StackReserved(m Memory, addr gcstate.Addr) uint64 { return uint64(ReadField(m, addr, 1)) }
func WriteStackReserved(m Memory, addr gcstate.Addr, n uint64) {
	WriteField(m, addr, 1, gcstate.Addr(n))
}

// StackDataStart is the address the stack's variable-length payload
// begins at, just after the two metadata words.
func StackDataStart(addr gcstate.Addr) gcstate.Addr { return FieldAddr(addr, 2) }

// Sizes computes (metadataBytes, objectBytes, copyBytes) for an object
// with the given header:
//
//   - NORMAL/WEAK: fixed-size from the header's NumPointers/NonPtrBytes.
//   - SEQUENCE: header + length(8 bytes) + NumPointers-many element slots
//     (this runtime only models pointer-element sequences; see DESIGN.md).
//   - STACK: header + stack metadata (used, reserved) + reserved bytes.
//
// metadataBytes is always WordSize (just the header); it is kept as a
// separate return value because MPL's layout places non-uniform metadata
// ahead of some object kinds, and the driver's memcpy step operates on
// "src - metadata_bytes" in that original scheme. This port's header is
// always exactly one word, so metadataBytes is always WordSize, but the
// three-way split is preserved for readability at call sites.
func Sizes(h gcstate.Header) (metadataBytes, objectBytes, copyBytes uintptr) {
	metadataBytes = gcstate.WordSize
	switch h.Tag() {
	case gcstate.TagNormal, gcstate.TagWeak:
		objectBytes = uintptr(h.NumPointers())*gcstate.WordSize + uintptr(h.NonPtrBytes())
	case gcstate.TagSequence:
		objectBytes = gcstate.WordSize + uintptr(h.NumPointers())*gcstate.WordSize
	case gcstate.TagStack:
		objectBytes = 2*gcstate.WordSize + uintptr(h.NonPtrBytes())
	}
	copyBytes = metadataBytes + objectBytes
	return
}
