package fmi

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

// naiveRows returns the suffix array of text plus its implicit terminator,
// computed by sorting suffix strings.  Position len(text) stands for the
// terminator, which sorts below every base.
func naiveRows(text string) []int {
	n := len(text)
	rows := make([]int, n+1)
	for i := range rows {
		rows[i] = i
	}
	sort.Slice(rows, func(a, b int) bool {
		return text[rows[a]:]+"\x00" < text[rows[b]:]+"\x00"
	})
	return rows
}

func randText(n int, seed int64) string {
	r := rand.New(rand.NewSource(seed))
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte("ACGT"[r.Intn(4)])
	}
	return sb.String()
}

func TestBackwardStepAgainstBruteForce(t *testing.T) {
	for _, text := range []string{
		"G",
		"GATTACA",
		"AAAAAAAAAA",
		randText(1000, 1), // spans multiple sides
	} {
		idx, err := Build([]Seq{{Name: "s", Bases: text}}, Opts{SampleShift: 3})
		require.NoError(t, err)
		sa := naiveRows(text)
		rowOf := make([]uint32, len(sa)) // text offset -> row
		for row, off := range sa {
			rowOf[off] = uint32(row)
		}
		expect.EQ(t, idx.SentinelRow(), rowOf[0])
		expect.EQ(t, idx.NumRows(), uint32(len(text)+1))
		for row := uint32(0); row < idx.NumRows(); row++ {
			if row == idx.SentinelRow() {
				continue
			}
			l := idx.BuildLocus(row)
			l.Prefetch()
			// Stepping left from offset sa[row] must land on the row whose
			// offset is sa[row]-1.
			expect.EQ(t, idx.BackwardStep(l), rowOf[sa[row]-1])
		}
	}
}

func TestSamplesMatchBruteForce(t *testing.T) {
	text := randText(700, 2)
	idx, err := Build([]Seq{{Name: "s", Bases: text}}, Opts{SampleShift: 4})
	require.NoError(t, err)
	sa := naiveRows(text)
	interval := uint32(1) << idx.SampleShift()
	nMarked := 0
	for row := uint32(0); row < idx.NumRows(); row++ {
		if !idx.Marked(row) {
			expect.True(t, row%interval != 0)
			continue
		}
		nMarked++
		expect.EQ(t, row%interval, uint32(0))
		expect.EQ(t, idx.Sample(row>>idx.SampleShift()), uint32(sa[row]))
	}
	expect.EQ(t, nMarked, int((idx.NumRows()+interval-1)/interval))
}

func TestFindRowsAgainstNaiveScan(t *testing.T) {
	text := randText(600, 3)
	idx, err := Build([]Seq{{Name: "s", Bases: text}}, DefaultOpts)
	require.NoError(t, err)
	for _, pat := range []string{"A", "AC", "GATT", "ACGTACGT", "TTTTTTTTTTTTTTTT"} {
		var want []uint32
		for i := 0; i+len(pat) <= len(text); i++ {
			if text[i:i+len(pat)] == pat {
				want = append(want, uint32(i))
			}
		}
		lo, hi, err := idx.FindRows(pat)
		require.NoError(t, err)
		expect.EQ(t, int(hi-lo), len(want))
		if lo == hi {
			continue
		}
		rows := make([]uint32, 0, hi-lo)
		for row := lo; row < hi; row++ {
			rows = append(rows, row)
		}
		got, err := ResolveRows(idx, len(pat), rows)
		require.NoError(t, err)
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		expect.EQ(t, got, want)
	}

	_, _, err = idx.FindRows("")
	expect.True(t, err != nil)
	_, _, err = idx.FindRows("ACGN")
	expect.True(t, err != nil)
}

func TestTranslateFlatOffset(t *testing.T) {
	idx, err := Build([]Seq{
		{Name: "chr1", Bases: "ACGTT"},
		{Name: "chr2", Bases: "GGCA"},
	}, DefaultOpts)
	require.NoError(t, err)
	expect.EQ(t, idx.NumSeqs(), 2)
	expect.EQ(t, idx.SeqName(0), "chr1")
	expect.EQ(t, idx.SeqName(1), "chr2")

	pos := idx.TranslateFlatOffset(1, 0)
	expect.EQ(t, pos, TextPos{Seq: 0, Off: 0, SeqLen: 5})
	pos = idx.TranslateFlatOffset(2, 3)
	expect.EQ(t, pos, TextPos{Seq: 0, Off: 3, SeqLen: 5})
	pos = idx.TranslateFlatOffset(4, 5)
	expect.EQ(t, pos, TextPos{Seq: 1, Off: 0, SeqLen: 4})
	expect.True(t, pos.Valid())

	// [3,6) straddles the chr1/chr2 boundary at 5.
	pos = idx.TranslateFlatOffset(3, 3)
	expect.EQ(t, pos.Seq, InvalidSeqID)
	expect.False(t, pos.Valid())
	// [5,10) runs off the end of chr2.
	pos = idx.TranslateFlatOffset(5, 5)
	expect.False(t, pos.Valid())
	// The terminator position belongs to no sequence.
	pos = idx.TranslateFlatOffset(1, 9)
	expect.False(t, pos.Valid())

	expectPanic(t, func() { idx.TranslateFlatOffset(0, 1) })
	expectPanic(t, func() { idx.TranslateFlatOffset(1, idx.NumRows()) })
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(nil, DefaultOpts)
	require.Error(t, err)
	_, err = Build([]Seq{{Name: "s", Bases: ""}}, DefaultOpts)
	require.Error(t, err)
	_, err = Build([]Seq{{Name: "s", Bases: "ACGTN"}}, DefaultOpts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-ACGT")
	_, err = Build([]Seq{{Name: "s", Bases: "ACGT"}}, Opts{SampleShift: 40})
	require.Error(t, err)

	// Lower case is accepted.
	_, err = Build([]Seq{{Name: "s", Bases: "acgtACGT"}}, DefaultOpts)
	require.NoError(t, err)
}

func TestLocusPreconditions(t *testing.T) {
	idx, err := Build([]Seq{{Name: "s", Bases: "GATTACA"}}, DefaultOpts)
	require.NoError(t, err)
	expectPanic(t, func() { idx.BuildLocus(idx.NumRows()) })
	expectPanic(t, func() { Locus{}.Prefetch() })
	expectPanic(t, func() { Locus{}.Row() })
	expectPanic(t, func() { idx.BackwardStep(Locus{}) })
	expectPanic(t, func() { idx.BackwardStep(idx.BuildLocus(idx.SentinelRow())) })

	l := idx.BuildLocus(0)
	expect.True(t, l.Valid())
	expect.EQ(t, l.Row(), uint32(0))
}
