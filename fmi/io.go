package fmi

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/gzip"
)

// On-disk format: the magic bytes below ("FMI1" plus four random bytes),
// followed by a gzip stream of little-endian values: the fixed header, the
// sample table, the joined-sequence start table, the length-prefixed sequence
// names, and the raw BWT sides.
var fmiMagic = []byte{'F', 'M', 'I', '1', 0x9e, 0x3c, 0x51, 0xa7}

type indexHeader struct {
	NumRows     uint32
	SentinelRow uint32
	SampleMask  uint32
	SampleShift uint32
	NumSamples  uint32
	NumSeqs     uint32
	Cum         [numBase]uint32
}

// WriteIndex serializes the index.
func WriteIndex(w io.Writer, x *Index) error {
	if _, err := w.Write(fmiMagic); err != nil {
		return errors.E(err, "fmi.WriteIndex: writing magic")
	}
	gz := gzip.NewWriter(w)
	hdr := indexHeader{
		NumRows:     x.numRows,
		SentinelRow: x.sentinelRow,
		SampleMask:  x.sampleMask,
		SampleShift: x.sampleShift,
		NumSamples:  uint32(len(x.samples)),
		NumSeqs:     uint32(len(x.seqNames)),
		Cum:         x.cum,
	}
	if err := binary.Write(gz, binary.LittleEndian, &hdr); err != nil {
		return errors.E(err, "fmi.WriteIndex: writing header")
	}
	if err := binary.Write(gz, binary.LittleEndian, x.samples); err != nil {
		return errors.E(err, "fmi.WriteIndex: writing samples")
	}
	if err := binary.Write(gz, binary.LittleEndian, x.seqStarts); err != nil {
		return errors.E(err, "fmi.WriteIndex: writing sequence starts")
	}
	for _, name := range x.seqNames {
		if err := binary.Write(gz, binary.LittleEndian, uint32(len(name))); err != nil {
			return errors.E(err, "fmi.WriteIndex: writing name length")
		}
		if _, err := gz.Write([]byte(name)); err != nil {
			return errors.E(err, "fmi.WriteIndex: writing name")
		}
	}
	if _, err := gz.Write(x.ebwt); err != nil {
		return errors.E(err, "fmi.WriteIndex: writing BWT sides")
	}
	if err := gz.Close(); err != nil {
		return errors.E(err, "fmi.WriteIndex: closing gzip stream")
	}
	return nil
}

// ReadIndex deserializes an index written by WriteIndex.
func ReadIndex(r io.Reader) (*Index, error) {
	magic := make([]byte, len(fmiMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.E(err, "fmi.ReadIndex: reading magic")
	}
	for i, b := range fmiMagic {
		if magic[i] != b {
			return nil, errors.E("fmi.ReadIndex: bad magic; not an FMI index")
		}
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.E(err, "fmi.ReadIndex: opening gzip stream")
	}
	defer gz.Close() // nolint: errcheck
	var hdr indexHeader
	if err := binary.Read(gz, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.E(err, "fmi.ReadIndex: reading header")
	}
	if hdr.NumRows == 0 || hdr.SentinelRow >= hdr.NumRows ||
		hdr.SampleShift > maxSampleShift || hdr.NumSeqs == 0 ||
		hdr.SampleMask != ^uint32(1<<hdr.SampleShift-1) ||
		hdr.NumSamples != (hdr.NumRows+(1<<hdr.SampleShift)-1)>>hdr.SampleShift {
		return nil, errors.E("fmi.ReadIndex: inconsistent header")
	}
	x := &Index{
		cum:         hdr.Cum,
		samples:     make([]uint32, hdr.NumSamples),
		sampleMask:  hdr.SampleMask,
		sampleShift: hdr.SampleShift,
		sentinelRow: hdr.SentinelRow,
		numRows:     hdr.NumRows,
		seqStarts:   make([]uint32, hdr.NumSeqs+1),
		seqNames:    make([]string, hdr.NumSeqs),
	}
	if err := binary.Read(gz, binary.LittleEndian, x.samples); err != nil {
		return nil, errors.E(err, "fmi.ReadIndex: reading samples")
	}
	if err := binary.Read(gz, binary.LittleEndian, x.seqStarts); err != nil {
		return nil, errors.E(err, "fmi.ReadIndex: reading sequence starts")
	}
	// The starts must describe non-empty sequences tiling the joined text,
	// whose length is NumRows-1.
	if x.seqStarts[0] != 0 || x.seqStarts[hdr.NumSeqs] != hdr.NumRows-1 {
		return nil, errors.E("fmi.ReadIndex: inconsistent sequence starts")
	}
	for i := uint32(0); i < hdr.NumSeqs; i++ {
		if x.seqStarts[i] >= x.seqStarts[i+1] {
			return nil, errors.E("fmi.ReadIndex: inconsistent sequence starts")
		}
	}
	for i := range x.seqNames {
		var nameLen uint32
		if err := binary.Read(gz, binary.LittleEndian, &nameLen); err != nil {
			return nil, errors.E(err, "fmi.ReadIndex: reading name length")
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(gz, name); err != nil {
			return nil, errors.E(err, "fmi.ReadIndex: reading name")
		}
		x.seqNames[i] = string(name)
	}
	numSides := int(hdr.NumRows)/sideBases + 1
	x.ebwt = make([]byte, numSides*sideSize)
	if _, err := io.ReadFull(gz, x.ebwt); err != nil {
		return nil, errors.E(err, "fmi.ReadIndex: reading BWT sides")
	}
	return x, nil
}
