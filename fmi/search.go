package fmi

import (
	"github.com/grailbio/base/errors"
	gunsafe "github.com/grailbio/base/unsafe"
)

// FindRows runs an exact backward search for the pattern, returning the
// half-open row range [lo, hi) of its occurrences.  An empty range means the
// pattern does not occur.  Every row in the range can then be handed to a
// Resolver (or to FlatOffsetOf) to recover the occurrence's position.
//
// Thread safe.
func (x *Index) FindRows(pattern string) (lo, hi uint32, err error) {
	if len(pattern) == 0 {
		return 0, 0, errors.E("fmi.FindRows: empty pattern")
	}
	pat := gunsafe.StringToBytes(pattern)
	for _, ch := range pat {
		if baseCode[ch] == invalidBaseCode {
			return 0, 0, errors.E("fmi.FindRows: non-ACGT base in pattern", pattern)
		}
	}
	lo, hi = 0, x.numRows
	for i := len(pat) - 1; i >= 0; i-- {
		c := baseCode[pat[i]]
		lo = x.cum[c] + x.occUpTo(c, lo)
		hi = x.cum[c] + x.occUpTo(c, hi)
		if lo >= hi {
			return 0, 0, nil
		}
	}
	return lo, hi, nil
}
