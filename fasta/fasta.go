// Package fasta parses FASTA-formatted reference data into named sequences.
// FASTA files consist of a number of named sequences whose bodies may be
// interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// >chr8
// ACGT
//
// Sequence names are the stretch of characters excluding spaces immediately
// after '>'; any text after a space is ignored.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Exported references often keep a whole sequence on a single line, so the
// scanner must be allowed to grow far past bufio's default token limit.
const maxLineSize = 1024 * 1024 * 300 // 300 MB

// Record is one named sequence, in input order.
type Record struct {
	Name  string
	Bases string
}

// Read parses all sequences from r into memory, preserving input order.
func Read(r io.Reader) ([]Record, error) {
	var (
		recs    []Record
		seqName string
		started bool
		seq     strings.Builder
	)
	flush := func() error {
		if !started {
			return nil
		}
		if seq.Len() == 0 {
			return errors.Errorf("fasta: sequence %q is empty", seqName)
		}
		recs = append(recs, Record{Name: seqName, Bases: seq.String()})
		seq.Reset()
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			seqName = strings.Split(line[1:], " ")[0]
			if seqName == "" {
				return nil, errors.Errorf("fasta: missing sequence name")
			}
			started = true
			continue
		}
		if !started {
			return nil, errors.Errorf("fasta: sequence data before the first '>' header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: couldn't read input")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.Errorf("fasta: no sequences found")
	}
	return recs, nil
}
