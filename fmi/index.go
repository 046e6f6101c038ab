package fmi

import (
	"encoding/binary"

	"github.com/grailbio/base/log"
)

// Base codes.  The joined reference is restricted to the ACGT alphabet; the
// codes below double as lexicographic ranks, with the text terminator ranking
// below all of them.
const (
	baseA = 0
	baseC = 1
	baseG = 2
	baseT = 3
	// numBase is the alphabet size, excluding the terminator.
	numBase = 4
)

// The BWT is stored as a flat sequence of fixed-size sides.  Each side starts
// with per-base occurrence checkpoints (the number of times each base code
// appears in all preceding sides, little-endian uint32s), followed by
// 2-bit-packed base codes.  A side is exactly one cache line so that a single
// prefetch covers both the checkpoint and the characters a backward step
// needs.
const (
	sideSize        = 64
	sideOccBytes    = numBase * 4
	sidePackedBytes = sideSize - sideOccBytes
	sideBases       = sidePackedBytes * 4
)

// sentinelStoredBase is the base code stored in the BWT cell that logically
// holds the text terminator.  Occurrence counts over the raw side bytes see
// this fake base; backwardStep and occUpTo correct for it.
const sentinelStoredBase = baseA

// baseCnt4 counts occurrences of each base code among the four codes packed
// into one byte.
var baseCnt4 [numBase][256]uint8

func init() {
	for b := 0; b < 256; b++ {
		for shift := uint(0); shift < 8; shift += 2 {
			baseCnt4[(b>>shift)&3][b]++
		}
	}
}

// Index is a compressed full-text index over a set of joined reference
// sequences.  It is immutable once built and may be shared freely across
// goroutines; every method below is read-only.
//
// Rows of the conceptual BWT matrix are numbered 0..NumRows()-1.  A row is
// "marked" iff row&SampleMask() == row; marked rows carry a directly stored
// joined-text offset in the sample table.  The sentinel row is the unique row
// whose offset is 0 (the extreme left end of the joined reference).
type Index struct {
	// ebwt holds the packed BWT sides.  Sized with one trailing side beyond
	// the last row so that occUpTo(NumRows()) stays in bounds.
	ebwt []byte
	// cum[c] is the number of characters in the BWT (terminator included)
	// lexicographically smaller than base c.  cum[baseA] == 1.
	cum [numBase]uint32
	// samples[row>>sampleShift] is the joined-text offset of marked row "row".
	samples     []uint32
	sampleMask  uint32
	sampleShift uint32
	sentinelRow uint32
	numRows     uint32
	// Joined-sequence layout.  seqStarts has one entry per sequence plus a
	// final entry equal to the joined text length.
	seqNames  []string
	seqStarts []uint32
}

// NumRows returns the number of rows in the index, which is the joined text
// length plus one (for the terminator row).
func (x *Index) NumRows() uint32 { return x.numRows }

// SentinelRow returns the row whose joined-text offset is exactly 0.
func (x *Index) SentinelRow() uint32 { return x.sentinelRow }

// SampleMask returns the mask defining marked rows: row is marked iff
// row&SampleMask() == row.
func (x *Index) SampleMask() uint32 { return x.sampleMask }

// SampleShift returns the log2 of the row-sampling interval.
func (x *Index) SampleShift() uint32 { return x.sampleShift }

// Sample returns the stored joined-text offset of the i'th marked row, i.e.
// of row i<<SampleShift().
func (x *Index) Sample(i uint32) uint32 { return x.samples[i] }

// Marked reports whether the row carries a directly stored offset.
func (x *Index) Marked(row uint32) bool { return row&x.sampleMask == row }

// MaxChaseSteps returns the sanity bound on the length of a single backward
// chase.  Each backward step moves one position left in the joined text, so
// no chase on an intact index can take more steps than there are rows; a
// longer chase means the LF mapping is corrupt.
func (x *Index) MaxChaseSteps() uint32 { return x.numRows }

// side returns the raw bytes of the side holding the given row.
func (x *Index) side(row uint32) []byte {
	off := (row / sideBases) * sideSize
	return x.ebwt[off : off+sideSize]
}

// sideBase extracts the stored base code at character offset char within a
// side.
func sideBase(side []byte, char uint32) byte {
	b := side[sideOccBytes+char>>2]
	return (b >> ((char & 3) * 2)) & 3
}

// storedCountUpTo counts occurrences of base c among the first "char" stored
// characters of a side, plus the side's checkpoint for c.  The count includes
// the fake base stored in the terminator cell; callers correct for it.
func storedCountUpTo(side []byte, c byte, char uint32) uint32 {
	cnt := binary.LittleEndian.Uint32(side[int(c)*4:])
	lut := &baseCnt4[c]
	packed := side[sideOccBytes:]
	i := uint32(0)
	for ; i+4 <= char; i += 4 {
		cnt += uint32(lut[packed[i>>2]])
	}
	for ; i < char; i++ {
		if sideBase(side, i) == c {
			cnt++
		}
	}
	return cnt
}

// occUpTo returns the number of occurrences of base c in BWT rows [0, row),
// with the terminator cell excluded.
func (x *Index) occUpTo(c byte, row uint32) uint32 {
	cnt := storedCountUpTo(x.side(row), c, row%sideBases)
	if c == sentinelStoredBase && x.sentinelRow < row {
		cnt--
	}
	return cnt
}

// BackwardStep applies the LF mapping at the given locus, returning the row
// one text position to the left of the locus's row.  It is a pure function of
// the locus and the index.
//
// REQUIRES: l is valid, and l's row is not the sentinel row (the terminator
// cell has no character to step through).  Violations panic.
func (x *Index) BackwardStep(l Locus) uint32 {
	if !l.valid {
		log.Panicf("fmi: BackwardStep on an invalid locus")
	}
	if l.row == x.sentinelRow {
		log.Panicf("fmi: BackwardStep on the sentinel row %d", l.row)
	}
	side := x.ebwt[l.sideOff : l.sideOff+sideSize]
	c := sideBase(side, l.char)
	cnt := storedCountUpTo(side, c, l.char)
	if c == sentinelStoredBase && x.sentinelRow < l.row {
		cnt--
	}
	return x.cum[c] + cnt
}
