// Package fmi implements a compressed full-text (FM) index over a set of
// joined DNA reference sequences, plus the machinery for converting an index
// row back into a reference coordinate.
//
// The index stores the Burrows-Wheeler transform of the joined reference in
// fixed-size "sides", each holding cumulative occurrence checkpoints followed
// by 2-bit-packed bases.  Absolute text offsets are stored only for a sparse,
// regularly-spaced subset of rows; all other rows are resolved by walking the
// LF (backward step) mapping until a sampled row or the sentinel row is
// reached.  See Resolver for the stateful, prefetch-friendly walk.
package fmi
