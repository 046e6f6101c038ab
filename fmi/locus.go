package fmi

import (
	"sync/atomic"
	"unsafe"

	"github.com/grailbio/base/log"
)

// Locus addresses the side holding one row's BWT character.  It is a cheap
// value type; a fresh locus must be obtained for every row, and a locus from
// one index must never be used with another.
type Locus struct {
	row     uint32
	char    uint32 // character offset within the side
	sideOff int    // byte offset of the side within ebwt
	ebwt    []byte
	valid   bool
}

// BuildLocus computes the locus for the given row.  Pure function of the row
// and the index.
//
// REQUIRES: row < NumRows().
func (x *Index) BuildLocus(row uint32) Locus {
	if row >= x.numRows {
		log.Panicf("fmi: BuildLocus row %d out of range [0,%d)", row, x.numRows)
	}
	return Locus{
		row:     row,
		char:    row % sideBases,
		sideOff: int(row/sideBases) * sideSize,
		ebwt:    x.ebwt,
		valid:   true,
	}
}

// Valid reports whether the locus addresses a row.
func (l Locus) Valid() bool { return l.valid }

// Row returns the row the locus was built from.
//
// REQUIRES: l is valid.
func (l Locus) Row() uint32 {
	if !l.valid {
		log.Panicf("fmi: Row on an invalid locus")
	}
	return l.row
}

// Prefetch pulls the locus's side toward the cache.  It is a pure latency
// hint with no effect on correctness.  The atomic loads cannot be elided by
// the compiler, and a side may straddle two cache lines when the backing
// array is not 64-byte aligned, hence the two touches.
func (l Locus) Prefetch() {
	if !l.valid {
		log.Panicf("fmi: Prefetch on an invalid locus")
	}
	p0 := (*uint32)(unsafe.Pointer(&l.ebwt[l.sideOff]))
	p1 := (*uint32)(unsafe.Pointer(&l.ebwt[l.sideOff+sideSize-4]))
	_ = atomic.LoadUint32(p0)
	_ = atomic.LoadUint32(p1)
}
