// Package extract defines the Extractor capability and a media-type
// dispatch registry, in the style of bbiangul/go-reason/parser's Parser
// interface and Registry, simplified to the plain-text output
// pkg/chunk consumes (spec.md scopes document structure/vision parsing
// out; only the extract-to-text step is in scope).
package extract

import (
	"context"
	"fmt"
)

// Result is the text an Extractor recovered from a document's bytes.
type Result struct {
	Text string
	// Warning is set when extraction degraded (e.g. partial text
	// recovery) but did not fail outright.
	Warning string
}

// Extractor recovers plain text from one media type's raw bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Result, error)
	SupportedMediaTypes() []string
}

// Registry dispatches to an Extractor by media type, mirroring
// parser/registry.go's Get/Register shape.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// Register associates a media type with an Extractor.
func (r *Registry) Register(mediaType string, e Extractor) {
	r.extractors[mediaType] = e
}

// RegisterAll registers e for every media type it supports.
func (r *Registry) RegisterAll(e Extractor) {
	for _, mt := range e.SupportedMediaTypes() {
		r.Register(mt, e)
	}
}

// Get returns the Extractor registered for mediaType, or ok=false.
func (r *Registry) Get(mediaType string) (Extractor, bool) {
	e, ok := r.extractors[mediaType]
	return e, ok
}

// Extract dispatches to the registered Extractor for mediaType. An
// unregistered media type returns an empty result with a skip warning
// rather than an error, per spec.md §4.2.
func (r *Registry) Extract(ctx context.Context, mediaType string, data []byte) (Result, error) {
	e, ok := r.extractors[mediaType]
	if !ok {
		return Result{Warning: fmt.Sprintf("no extractor registered for media type %q, skipping", mediaType)}, nil
	}
	return e.Extract(ctx, data)
}
