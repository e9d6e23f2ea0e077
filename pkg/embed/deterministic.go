package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// Deterministic is the in-memory reference Embedder: it hashes each text
// into a fixed-dimension vector with no external model call, so tests can
// exercise the full ingest→retrieve path without a real embedding
// service. Vectors are not semantically meaningful, only stable and
// distinct per distinct input — sufficient for cosine-similarity ranking
// tests that plant known-similar/known-dissimilar text.
type Deterministic struct {
	dim int
}

// NewDeterministic returns a Deterministic embedder producing vectors of
// the given dimension.
func NewDeterministic(dim int) *Deterministic {
	if dim <= 0 {
		dim = 32
	}
	return &Deterministic{dim: dim}
}

func (d *Deterministic) Dimension() int { return d.dim }

func (d *Deterministic) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text, d.dim)
	}
	return vectors, nil
}

// vectorFor expands a SHA-256 digest of text into dim float32s in [-1, 1]
// by reseeding the hash with a counter whenever more bytes are needed.
func vectorFor(text string, dim int) []float32 {
	vec := make([]float32, dim)
	block := 0
	var digest [32]byte
	for i := 0; i < dim; i++ {
		byteIdx := i % 32
		if byteIdx == 0 {
			h := sha256.New()
			h.Write([]byte(text))
			binary.Write(h, binary.BigEndian, uint32(block))
			copy(digest[:], h.Sum(nil))
			block++
		}
		vec[i] = (float32(digest[byteIdx])/255)*2 - 1
	}
	return vec
}
