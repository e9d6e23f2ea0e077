package retrieve

import (
	"sort"
	"strings"
	"unicode"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// lexicalArm lowercase-tokenizes query and scores each candidate by the
// sum of query-term frequencies within its text (a BM25-lite surrogate),
// per spec.md §4.3. Candidates that match no query term are excluded,
// matching the vector arm's "absent, not zero" treatment of missing arms.
func lexicalArm(query string, candidates []store.ChunkWithDocument) []chunkKey {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		key   chunkKey
		score int
	}
	var scores []scored
	for _, c := range candidates {
		freq := termFrequencies(c.Text)
		var total int
		for _, term := range terms {
			total += freq[term]
		}
		if total > 0 {
			scores = append(scores, scored{key: keyOf(c), score: total})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	ranked := make([]chunkKey, len(scores))
	for i, s := range scores {
		ranked[i] = s.key
	}
	return ranked
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, term := range tokenize(text) {
		freq[term]++
	}
	return freq
}

// tokenize lowercases text and splits on runs of non-letter/non-digit
// characters.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
