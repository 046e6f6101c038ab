package fmi

import (
	"github.com/grailbio/base/traverse"
)

// ResolveRows resolves a batch of rows to joined-reference offsets, driving
// one resolver per row in round-robin.  Reset issues every chase's first
// prefetch up front; each subsequent sweep consumes one step per unresolved
// chase and issues its next prefetch, so by the time a chase's lookup is
// consumed the other chases' work has absorbed most of its memory latency.
// Results are identical to resolving each row sequentially.
//
// queryLen applies to every row, which matches the common case of resolving
// the row range produced by one FindRows call.
func ResolveRows(idx *Index, queryLen int, rows []uint32) ([]uint32, error) {
	offs := make([]uint32, len(rows))
	resolvers := make([]Resolver, len(rows))
	pending := 0
	for i, row := range rows {
		resolvers[i].idx = idx
		resolvers[i].Reset(row, queryLen)
		if !resolvers[i].Resolved() {
			pending++
		}
	}
	for pending > 0 {
		for i := range resolvers {
			r := &resolvers[i]
			if r.Resolved() {
				continue
			}
			if err := r.Step(); err != nil {
				return nil, err
			}
			if r.Resolved() {
				pending--
			}
		}
	}
	for i := range resolvers {
		offs[i] = resolvers[i].FlatOffset()
	}
	return offs, nil
}

// ResolveRowsParallel shards a large batch across parallelism goroutines,
// each running the round-robin driver on its shard.  The per-chase state is
// disjoint and the index is read-only, so no locking is involved.
func ResolveRowsParallel(idx *Index, queryLen int, rows []uint32, parallelism int) ([]uint32, error) {
	if parallelism <= 1 || len(rows) <= 1 {
		return ResolveRows(idx, queryLen, rows)
	}
	if parallelism > len(rows) {
		parallelism = len(rows)
	}
	offs := make([]uint32, len(rows))
	err := traverse.Each(parallelism, func(job int) error {
		lo := len(rows) * job / parallelism
		hi := len(rows) * (job + 1) / parallelism
		shard, err := ResolveRows(idx, queryLen, rows[lo:hi])
		if err != nil {
			return err
		}
		copy(offs[lo:hi], shard)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offs, nil
}
