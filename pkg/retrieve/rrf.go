package retrieve

import (
	"sort"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// rrfK is the reciprocal-rank-fusion constant from spec.md §4.3, the same
// value bbiangul/go-reason/retrieval/rrf.go's fuseRRF uses.
const rrfK = 60

// fuseRRF combines vecRanked and lexRanked (each a descending-rank chunk
// ordering; a chunk's absence means its arm did not rank it, contributing
// 0) into score(d) = sum over arms of 1/(rrfK + rank_arm(d)), returning
// the top-k chunks by fused score enriched with their candidate data.
func fuseRRF(candidates []store.ChunkWithDocument, vecRanked, lexRanked []chunkKey, topK int) []Result {
	byKey := make(map[chunkKey]store.ChunkWithDocument, len(candidates))
	for _, c := range candidates {
		byKey[keyOf(c)] = c
	}

	type fusedEntry struct {
		key         chunkKey
		score       float64
		vectorRank  int
		lexicalRank int
	}
	fused := make(map[chunkKey]*fusedEntry)

	get := func(k chunkKey) *fusedEntry {
		e, ok := fused[k]
		if !ok {
			e = &fusedEntry{key: k}
			fused[k] = e
		}
		return e
	}

	for rank, k := range vecRanked {
		e := get(k)
		e.score += 1.0 / float64(rrfK+rank+1)
		e.vectorRank = rank + 1
	}
	for rank, k := range lexRanked {
		e := get(k)
		e.score += 1.0 / float64(rrfK+rank+1)
		e.lexicalRank = rank + 1
	}

	entries := make([]*fusedEntry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		c, ok := byKey[e.key]
		if !ok {
			continue
		}
		results = append(results, Result{
			ChunkWithDocument: c,
			Score:             e.score,
			VectorRank:        e.vectorRank,
			LexicalRank:       e.lexicalRank,
		})
	}
	return results
}
