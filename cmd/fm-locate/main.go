package main

// fm-locate builds (or loads) an FM index over a FASTA reference and reports
// every exact occurrence of a literal DNA pattern as seqname:offset.
//
// Build an index and search:
//
//    fm-locate -ref ref.fa -pattern ACGTACGT
//
// Build once, reuse later:
//
//    fm-locate -ref ref.fa -index ref.fmi -write-index
//    fm-locate -index ref.fmi -pattern ACGTACGT

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/fmindex/fasta"
	"github.com/grailbio/fmindex/fmi"
)

var (
	refFlag         = flag.String("ref", "", "FASTA file to index")
	indexFlag       = flag.String("index", "", "Index file to load, or to write with -write-index")
	writeIndexFlag  = flag.Bool("write-index", false, "Write the built index to the -index path")
	patternFlag     = flag.String("pattern", "", "Literal ACGT pattern to locate")
	sampleShift     = flag.Int("sample-shift", int(fmi.DefaultOpts.SampleShift), "Log2 of the row-sampling interval used when building")
	parallelismFlag = flag.Int("parallelism", runtime.NumCPU(), "Number of concurrent row-resolution shards")
)

func buildIndex() *fmi.Index {
	f, err := os.Open(*refFlag)
	if err != nil {
		log.Fatalf("open %s: %v", *refFlag, err)
	}
	defer f.Close() // nolint: errcheck
	recs, err := fasta.Read(f)
	if err != nil {
		log.Fatalf("read %s: %v", *refFlag, err)
	}
	seqs := make([]fmi.Seq, len(recs))
	for i, rec := range recs {
		seqs[i] = fmi.Seq{Name: rec.Name, Bases: rec.Bases}
	}
	idx, err := fmi.Build(seqs, fmi.Opts{SampleShift: uint32(*sampleShift)})
	if err != nil {
		log.Fatalf("build index for %s: %v", *refFlag, err)
	}
	return idx
}

func loadIndex() *fmi.Index {
	f, err := os.Open(*indexFlag)
	if err != nil {
		log.Fatalf("open %s: %v", *indexFlag, err)
	}
	defer f.Close() // nolint: errcheck
	idx, err := fmi.ReadIndex(f)
	if err != nil {
		log.Fatalf("read index %s: %v", *indexFlag, err)
	}
	return idx
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	var idx *fmi.Index
	switch {
	case *refFlag != "":
		idx = buildIndex()
		if *writeIndexFlag {
			if *indexFlag == "" {
				log.Fatalf("-write-index requires -index")
			}
			out, err := os.Create(*indexFlag)
			if err != nil {
				log.Fatalf("create %s: %v", *indexFlag, err)
			}
			if err := fmi.WriteIndex(out, idx); err != nil {
				log.Fatalf("write index %s: %v", *indexFlag, err)
			}
			if err := out.Close(); err != nil {
				log.Fatalf("close %s: %v", *indexFlag, err)
			}
		}
	case *indexFlag != "":
		idx = loadIndex()
	default:
		log.Fatalf("either -ref or -index is required")
	}
	if *patternFlag == "" {
		if *writeIndexFlag {
			return
		}
		log.Fatalf("-pattern is required")
	}

	lo, hi, err := idx.FindRows(*patternFlag)
	if err != nil {
		log.Fatalf("search: %v", err)
	}
	if lo == hi {
		return
	}
	rows := make([]uint32, 0, hi-lo)
	for row := lo; row < hi; row++ {
		rows = append(rows, row)
	}
	offs, err := fmi.ResolveRowsParallel(idx, len(*patternFlag), rows, *parallelismFlag)
	if err != nil {
		log.Fatalf("resolve: %v", err)
	}
	for _, off := range offs {
		pos := idx.TranslateFlatOffset(len(*patternFlag), off)
		if !pos.Valid() {
			// The occurrence straddles two joined sequences.
			fmt.Println("*")
			continue
		}
		fmt.Printf("%s:%d\n", idx.SeqName(pos.Seq), pos.Off)
	}
}
