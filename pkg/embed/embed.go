// Package embed defines the Embedder capability: turning chunk text into
// fixed-dimension vectors for the vector arm of pkg/retrieve. spec.md §1
// names Embedder as an out-of-scope external capability modeled as a Go
// interface with at least one concrete adapter plus an in-memory reference
// adapter for tests — mirroring pkg/maker.Sampler's function-capability
// shape and bbiangul/go-reason/llm.Provider's Embed(ctx, texts) signature.
package embed

import "context"

// Embedder turns a batch of texts into equal-length float32 vectors, one
// per input text, in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// BatchSize bounds how many texts pkg/ingest sends to Embed in one call,
// per spec.md §4.2 ("batched (≤ 5 per batch) calls to Embedder").
const BatchSize = 5
