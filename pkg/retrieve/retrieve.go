// Package retrieve implements the hybrid retriever: a vector arm (cosine
// similarity over pkg/embed vectors), a lexical arm (term-frequency
// scoring), and reciprocal-rank fusion of the two, grounded on
// bbiangul/go-reason/retrieval's fuseRRF generalized from its 3-arm
// vector/FTS/graph fusion down to the 2-arm vector/lexical fusion spec.md
// §4.3 calls for (there is no graph store in scope here).
package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/nnmtech/verisynthos/pkg/embed"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// Query is one hybrid-search request.
type Query struct {
	Text   string
	Filter store.DocumentFilter
	TopK   int
}

// Result is one fused, provenance-enriched chunk, per spec.md §4.3's
// enrichment requirement.
type Result struct {
	store.ChunkWithDocument
	Score       float64
	VectorRank  int // 1-based; 0 means the vector arm did not rank this chunk
	LexicalRank int // 1-based; 0 means the lexical arm did not rank this chunk
}

// Engine runs hybrid search over a DocumentStore's candidate chunks.
type Engine struct {
	Documents store.DocumentStore
	Embedder  embed.Embedder
}

// New returns an Engine bound to documents and embedder.
func New(documents store.DocumentStore, embedder embed.Embedder) *Engine {
	return &Engine{Documents: documents, Embedder: embedder}
}

// Search returns the top-k chunks for q, ranked by the fusion of vector
// similarity and lexical term-frequency scoring, per spec.md §4.3.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.TopK <= 0 {
		q.TopK = 10
	}
	q.Filter.IncludeDeleted = false // soft-deleted documents are never retrievable

	candidates, err := e.Documents.CandidateChunks(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("loading candidate chunks: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	vecRanked, err := e.vectorArm(ctx, q.Text, candidates)
	if err != nil {
		return nil, fmt.Errorf("vector arm: %w", err)
	}
	lexRanked := lexicalArm(q.Text, candidates)

	return fuseRRF(candidates, vecRanked, lexRanked, q.TopK), nil
}

// chunkKey uniquely identifies a chunk within a candidate set.
type chunkKey struct {
	DocumentID string
	ChunkIndex int
}

func keyOf(c store.ChunkWithDocument) chunkKey {
	return chunkKey{DocumentID: c.DocumentID, ChunkIndex: c.ChunkIndex}
}

// vectorArm embeds the query once and ranks candidates with an embedding
// by descending cosine similarity, per spec.md §4.3. Candidates with no
// embedding (EmbedPending documents) are excluded rather than scored zero,
// so they can still surface through the lexical arm.
func (e *Engine) vectorArm(ctx context.Context, query string, candidates []store.ChunkWithDocument) ([]chunkKey, error) {
	if e.Embedder == nil || query == "" {
		return nil, nil
	}
	vectors, err := e.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}
	queryVec := vectors[0]

	type scored struct {
		key   chunkKey
		score float64
	}
	var scores []scored
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		scores = append(scores, scored{key: keyOf(c), score: cosineSimilarity(queryVec, c.Embedding)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	ranked := make([]chunkKey, len(scores))
	for i, s := range scores {
		ranked[i] = s.key
	}
	return ranked, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
