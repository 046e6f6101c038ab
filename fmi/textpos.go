package fmi

import (
	"sort"

	"github.com/grailbio/base/log"
)

// SeqID identifies one of the joined reference sequences by its rank in the
// input order.
type SeqID int32

// InvalidSeqID marks a TextPos whose query span straddles a boundary between
// two joined sequences (or runs off the end of the joined text).  Such a
// position is a legitimate result, not an error; there is simply no single
// sequence that contains the whole span.
const InvalidSeqID = SeqID(-1)

// TextPos is a resolved position within one reference sequence.
type TextPos struct {
	// Seq is the containing sequence, or InvalidSeqID when the span crosses a
	// sequence boundary.
	Seq SeqID
	// Off is the zero-based offset within Seq.  Meaningless when Seq ==
	// InvalidSeqID.
	Off uint32
	// SeqLen is the length of Seq.  Meaningless when Seq == InvalidSeqID.
	SeqLen uint32
}

// Valid reports whether the position names a single containing sequence.
func (p TextPos) Valid() bool { return p.Seq != InvalidSeqID }

// NumSeqs returns the number of joined sequences.
func (x *Index) NumSeqs() int { return len(x.seqNames) }

// SeqName returns the name of the given sequence.
func (x *Index) SeqName(id SeqID) string { return x.seqNames[id] }

// TranslateFlatOffset converts an offset in the joined reference into a
// position within one sequence.  queryLen is the length of the query whose
// occurrence starts at flatOff; when [flatOff, flatOff+queryLen) does not fit
// inside a single sequence the result carries InvalidSeqID.
//
// REQUIRES: queryLen > 0 and flatOff < NumRows().
func (x *Index) TranslateFlatOffset(queryLen int, flatOff uint32) TextPos {
	if queryLen <= 0 {
		log.Panicf("fmi: TranslateFlatOffset query length must be positive, got %d", queryLen)
	}
	if flatOff >= x.numRows {
		log.Panicf("fmi: TranslateFlatOffset offset %d out of range [0,%d)", flatOff, x.numRows)
	}
	// First i with seqStarts[i+1] > flatOff.
	i := sort.Search(len(x.seqNames), func(i int) bool {
		return x.seqStarts[i+1] > flatOff
	})
	if i == len(x.seqNames) || flatOff+uint32(queryLen) > x.seqStarts[i+1] {
		return TextPos{Seq: InvalidSeqID}
	}
	return TextPos{
		Seq:    SeqID(i),
		Off:    flatOff - x.seqStarts[i],
		SeqLen: x.seqStarts[i+1] - x.seqStarts[i],
	}
}
