package fmi

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/simd"
	gunsafe "github.com/grailbio/base/unsafe"
)

// Seq is one named reference sequence to be joined into the index.
type Seq struct {
	Name  string
	Bases string // ACGT only, case insensitive
}

// Opts configures index construction.
type Opts struct {
	// SampleShift is the log2 of the row-sampling interval: every
	// (1<<SampleShift)'th row carries a directly stored text offset.  Smaller
	// values cost memory and speed up row resolution.
	SampleShift uint32
}

// DefaultOpts is the default construction configuration.
var DefaultOpts = Opts{
	SampleShift: 5,
}

const (
	invalidBaseCode = 4
	maxSampleShift  = 16
)

// baseCode maps A,C,G,T (either case) to codes 0-3 and everything else to
// invalidBaseCode.
var baseCode [256]uint8

func init() {
	for i := range baseCode {
		baseCode[i] = invalidBaseCode
	}
	baseCode['a'], baseCode['A'] = baseA, baseA
	baseCode['c'], baseCode['C'] = baseC, baseC
	baseCode['g'], baseCode['G'] = baseG, baseG
	baseCode['t'], baseCode['T'] = baseT, baseT
}

// Build constructs an index over the joined concatenation of the given
// sequences.
//
// Construction cost is dominated by the suffix sort, which is
// comparison-based and intended for references of moderate size; it is not
// part of the row-resolution hot path.
func Build(seqs []Seq, opts Opts) (*Index, error) {
	if len(seqs) == 0 {
		return nil, errors.E("fmi.Build: no sequences")
	}
	if opts.SampleShift > maxSampleShift {
		return nil, errors.E("fmi.Build: sample shift out of range", fmt.Sprint(opts.SampleShift))
	}
	n := 0
	for _, seq := range seqs {
		if len(seq.Bases) == 0 {
			return nil, errors.E("fmi.Build: empty sequence", seq.Name)
		}
		n += len(seq.Bases)
	}
	if uint64(n) >= math.MaxUint32 {
		return nil, errors.E("fmi.Build: joined reference too large", fmt.Sprint(n))
	}

	// Encode the joined text.  The capacity padding keeps the simd scan below
	// within bounds.
	capacity := (n + simd.BytesPerVec() + 63) &^ 63
	codes := make([]byte, n, capacity)
	pos := 0
	seqStarts := make([]uint32, 0, len(seqs)+1)
	seqNames := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		seqStarts = append(seqStarts, uint32(pos))
		seqNames = append(seqNames, seq.Name)
		for _, ch := range gunsafe.StringToBytes(seq.Bases) {
			codes[pos] = baseCode[ch]
			pos++
		}
	}
	seqStarts = append(seqStarts, uint32(n))
	if bad := simd.FirstGreater8Unsafe(codes, baseT, 0); bad < n {
		si := sort.Search(len(seqNames), func(i int) bool {
			return seqStarts[i+1] > uint32(bad)
		})
		return nil, errors.E("fmi.Build: non-ACGT base in sequence",
			seqNames[si], "at offset", fmt.Sprint(bad-int(seqStarts[si])))
	}

	numRows := uint32(n + 1)
	sa := suffixSort(codes)

	x := &Index{
		samples:     make([]uint32, (numRows+(1<<opts.SampleShift)-1)>>opts.SampleShift),
		sampleMask:  ^uint32(1<<opts.SampleShift - 1),
		sampleShift: opts.SampleShift,
		numRows:     numRows,
		seqNames:    seqNames,
		seqStarts:   seqStarts,
	}
	var counts [numBase]uint32
	for _, c := range codes {
		counts[c]++
	}
	x.cum[baseA] = 1 // the terminator sorts below every base
	for c := 1; c < numBase; c++ {
		x.cum[c] = x.cum[c-1] + counts[c-1]
	}

	// Lay out the BWT sides.  One trailing side beyond the last row keeps
	// occUpTo(numRows) in bounds.
	numSides := int(numRows)/sideBases + 1
	x.ebwt = make([]byte, numSides*sideSize)
	var occ [numBase]uint32
	for s := 0; s < numSides; s++ {
		base := s * sideSize
		for c := 0; c < numBase; c++ {
			binary.LittleEndian.PutUint32(x.ebwt[base+4*c:], occ[c])
		}
		lo := uint32(s) * sideBases
		hi := lo + sideBases
		if hi > numRows {
			hi = numRows
		}
		for r := lo; r < hi; r++ {
			p := sa[r]
			c := byte(sentinelStoredBase)
			if p == 0 {
				x.sentinelRow = r
			} else {
				c = codes[p-1]
			}
			ch := r - lo
			x.ebwt[base+sideOccBytes+int(ch>>2)] |= c << ((ch & 3) * 2)
			occ[c]++
		}
	}

	for i := range x.samples {
		x.samples[i] = uint32(sa[uint32(i)<<opts.SampleShift])
	}
	return x, nil
}

// suffixSort returns the suffix array of codes plus the implicit terminator:
// element r is the start position of the r'th smallest suffix, with position
// len(codes) standing for the terminator itself.
func suffixSort(codes []byte) []int32 {
	n := len(codes)
	sa := make([]int32, n+1)
	for i := range sa {
		sa[i] = int32(i)
	}
	sort.Slice(sa, func(a, b int) bool {
		i, j := int(sa[a]), int(sa[b])
		for {
			if i == n {
				return j != n
			}
			if j == n {
				return false
			}
			if codes[i] != codes[j] {
				return codes[i] < codes[j]
			}
			i++
			j++
		}
	})
	return sa
}
