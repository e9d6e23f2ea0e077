// Package chunk splits extracted document text into a token-indexed,
// contiguous, overlapping cover suitable for embedding and retrieval, in
// the style of bbiangul/go-reason's chunker package adapted to the exact
// token-index invariants spec.md requires (fixed overlapTokens between
// every adjacent pair, not a paragraph/sentence-boundary heuristic).
package chunk

import (
	"strings"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// Config controls chunking behavior.
type Config struct {
	MaxTokens     int // default 700
	OverlapTokens int // default 140 (20% of MaxTokens)
}

// DefaultConfig returns spec.md §4.2's defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 700, OverlapTokens: 140}
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 700
	}
	if c.OverlapTokens <= 0 {
		c.OverlapTokens = 140
	}
	if c.OverlapTokens >= c.MaxTokens {
		c.OverlapTokens = c.MaxTokens / 5
	}
	return c
}

// token is a word-like unit of text with its source character offsets,
// used by the whitespace tokenizer and the 4-chars-per-token fallback
// alike so downstream chunk math never needs to know which produced it.
type token struct {
	text       string
	startChar  int
	endChar    int
}

// Result is the chunker's output for one document: the chunks plus
// whether the degraded character-based heuristic was used (spec.md
// §4.2's "mark the document with a degraded-chunking warning").
type Result struct {
	Chunks   []store.Chunk
	Degraded bool
}

// Chunk tokenizes text and produces store.Chunk records per cfg,
// preserving spec.md invariant 2 exactly: chunks form a contiguous
// cover of the token stream, and every adjacent pair overlaps by
// exactly cfg.OverlapTokens except possibly the final pair.
func Chunk(text string, cfg Config) Result {
	cfg = cfg.withDefaults()

	tokens, degraded := tokenize(text)
	if len(tokens) == 0 {
		return Result{Degraded: degraded}
	}

	stride := cfg.MaxTokens - cfg.OverlapTokens
	if stride <= 0 {
		stride = 1
	}

	var chunks []store.Chunk
	index := 0
	for start := 0; start < len(tokens); start += stride {
		end := start + cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		chunkTokens := tokens[start:end]
		chunks = append(chunks, store.Chunk{
			ChunkIndex: index,
			Text:       joinTokens(chunkTokens),
			TokenCount: len(chunkTokens),
			StartToken: start,
			EndToken:   end,
			StartChar:  chunkTokens[0].startChar,
		})
		index++

		if end == len(tokens) {
			break
		}
	}

	return Result{Chunks: chunks, Degraded: degraded}
}

// tokenize splits text on whitespace. Word-splitting is never itself the
// "degraded" path — spec.md's degraded-chunking fallback only triggers
// when no tokenizer is available at all, which this package treats as
// "text contains no whitespace-delimited words" (e.g. a single giant
// run of non-space bytes), falling back to fixed 4-char windows.
func tokenize(text string) ([]token, bool) {
	fields := splitFieldsWithOffsets(text)
	if len(fields) > 0 {
		return fields, false
	}
	if text == "" {
		return nil, false
	}
	return charWindows(text, 4), true
}

func splitFieldsWithOffsets(text string) []token {
	var tokens []token
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		for i < len(runes) && isSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		start := i
		for i < len(runes) && !isSpace(runes[i]) {
			i++
		}
		tokens = append(tokens, token{
			text:      string(runes[start:i]),
			startChar: start,
			endChar:   i,
		})
	}
	return tokens
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// charWindows splits text into fixed-width character windows, the
// 4-chars-per-token fallback heuristic spec.md §4.2 names.
func charWindows(text string, charsPerToken int) []token {
	runes := []rune(text)
	var tokens []token
	for i := 0; i < len(runes); i += charsPerToken {
		end := i + charsPerToken
		if end > len(runes) {
			end = len(runes)
		}
		tokens = append(tokens, token{
			text:      string(runes[i:end]),
			startChar: i,
			endChar:   end,
		})
	}
	return tokens
}

func joinTokens(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}
