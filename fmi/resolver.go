package fmi

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// chaseState tracks where a Resolver is in its lifecycle.  An explicit state
// replaces the reserved-integer "unset" encodings that row and offset fields
// would otherwise need.
type chaseState uint8

const (
	// chaseIdle means Reset has not been called since construction.
	chaseIdle chaseState = iota
	// chaseAwaitingStep means the chase is suspended with a prefetch issued
	// for the current row's locus; Step resumes it.
	chaseAwaitingStep
	// chaseResolved means the flat offset is available.
	chaseResolved
)

// Resolver statefully converts an index row into a joined-reference offset.
// Each LF lookup during the walk is a data-dependent load into the BWT sides
// and usually costs a full memory stall; the resolver therefore splits every
// step into "issue a prefetch for the current locus" (done by Reset and at
// the end of Step) and "consume the lookup" (the start of the next Step).  A
// driver holding several resolvers can issue all their prefetches before
// consuming any step, hiding each chase's latency behind the others' work;
// see ResolveRows.
//
// A resolver is exclusively owned by one chase at a time and may be reused
// via Reset.  It holds no resources, so abandoning a chase mid-walk just
// means dropping (or Reset-ing) the resolver.  The only shared state is the
// read-only index.
type Resolver struct {
	idx      *Index
	row      uint32
	queryLen int
	steps    uint32
	locus    Locus
	// prepped is true iff a prefetch has been issued for locus and not yet
	// consumed.  Step requires it; the strict alternation guarantees at most
	// one outstanding prefetch per resolver.
	prepped bool
	state   chaseState
	off     uint32
}

// NewResolver returns a resolver for rows of the given index.  Call Reset to
// start a chase.
func NewResolver(idx *Index) *Resolver {
	return &Resolver{idx: idx}
}

// Reset starts a new chase for the given row.  queryLen is the length of the
// query occurrence starting at the row's text position; it is only consumed
// by TextPosition.  If the row is the sentinel row or a marked row the chase
// resolves immediately; otherwise the resolver enters the awaiting-step state
// with a prefetch issued for the row's locus.
//
// REQUIRES: row < NumRows() and queryLen > 0.  Violations panic: a silently
// wrong offset here would propagate into wrong reference coordinates.
func (r *Resolver) Reset(row uint32, queryLen int) {
	if queryLen <= 0 {
		log.Panicf("fmi: Reset query length must be positive, got %d", queryLen)
	}
	if row >= r.idx.numRows {
		log.Panicf("fmi: Reset row %d out of range [0,%d)", row, r.idx.numRows)
	}
	r.row = row
	r.queryLen = queryLen
	r.steps = 0
	r.locus = Locus{}
	r.prepped = false
	if row == r.idx.sentinelRow {
		// The extreme left-hand end of the joined reference.
		r.off = 0
		r.state = chaseResolved
		return
	}
	if r.idx.Marked(row) {
		r.off = r.idx.samples[row>>r.idx.sampleShift]
		r.state = chaseResolved
		return
	}
	r.state = chaseAwaitingStep
	r.prep()
}

// prep builds the locus for the current row and issues its prefetch.
func (r *Resolver) prep() {
	r.locus = r.idx.BuildLocus(r.row)
	r.locus.Prefetch()
	r.prepped = true
}

// Resolved reports whether the chase has finished and FlatOffset is
// available.
func (r *Resolver) Resolved() bool { return r.state == chaseResolved }

// Step consumes the prefetched LF lookup for the current row and advances the
// chase by one backward step.  On reaching the sentinel row or a marked row
// the chase resolves; otherwise a prefetch for the new row is issued and the
// resolver stays in the awaiting-step state.
//
// A non-nil error means the index failed an integrity check: the LF mapping
// returned its own input row, or the chase ran longer than MaxChaseSteps().
// Both indicate a corrupt or mismatched index; the walk is deterministic, so
// retrying cannot help and the chase must be abandoned.
//
// REQUIRES: the resolver is awaiting a step with an issued, unconsumed
// prefetch.  Calling Step on an idle or resolved resolver panics.
func (r *Resolver) Step() error {
	if r.state != chaseAwaitingStep {
		log.Panicf("fmi: Step on a resolver in state %d", r.state)
	}
	if !r.prepped {
		log.Panicf("fmi: Step without an issued prefetch")
	}
	r.prepped = false
	newRow := r.idx.BackwardStep(r.locus)
	r.locus = Locus{}
	r.steps++
	if newRow == r.row {
		return errors.E("fmi: backward step returned row", fmt.Sprint(r.row),
			"unchanged; index is corrupt")
	}
	if r.steps > r.idx.MaxChaseSteps() {
		return errors.E("fmi: chase exceeded", fmt.Sprint(r.idx.MaxChaseSteps()),
			"steps without reaching a sampled row; index is corrupt")
	}
	r.row = newRow
	if newRow == r.idx.sentinelRow {
		r.off = r.steps
		r.state = chaseResolved
		return nil
	}
	if r.idx.Marked(newRow) {
		r.off = r.idx.samples[newRow>>r.idx.sampleShift] + r.steps
		r.state = chaseResolved
		return nil
	}
	r.prep()
	return nil
}

// FlatOffset returns the resolved offset in the joined reference.
//
// REQUIRES: Resolved().
func (r *Resolver) FlatOffset() uint32 {
	if r.state != chaseResolved {
		log.Panicf("fmi: FlatOffset on an unresolved chase")
	}
	return r.off
}

// TextPosition translates the resolved offset into a position within one
// reference sequence, using the query length given to Reset.  A position
// whose span straddles two joined sequences comes back with InvalidSeqID;
// that is a normal result, not a failure.
//
// REQUIRES: Resolved().
func (r *Resolver) TextPosition() TextPos {
	return r.idx.TranslateFlatOffset(r.queryLen, r.FlatOffset())
}

// FlatOffsetOf resolves a single row synchronously.  It exists for callers
// that have no batch of independent rows to interleave; when throughput
// matters, drive multiple Resolvers instead (see ResolveRows).
func FlatOffsetOf(idx *Index, queryLen int, row uint32) (uint32, error) {
	var r Resolver
	r.idx = idx
	r.Reset(row, queryLen)
	for !r.Resolved() {
		if err := r.Step(); err != nil {
			return 0, err
		}
	}
	return r.FlatOffset(), nil
}

// TextPositionOf resolves a single row synchronously to a per-sequence
// position.  Same caveats as FlatOffsetOf.
func TextPositionOf(idx *Index, queryLen int, row uint32) (TextPos, error) {
	var r Resolver
	r.idx = idx
	r.Reset(row, queryLen)
	for !r.Resolved() {
		if err := r.Step(); err != nil {
			return TextPos{}, err
		}
	}
	return r.TextPosition(), nil
}
