package api

import (
	"context"

	"github.com/nnmtech/verisynthos/pkg/chunk"
	"github.com/nnmtech/verisynthos/pkg/config"
	"github.com/nnmtech/verisynthos/pkg/embed"
	"github.com/nnmtech/verisynthos/pkg/extract"
	"github.com/nnmtech/verisynthos/pkg/extract/plaintext"
	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/ingest/localfs"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/queue"
	"github.com/nnmtech/verisynthos/pkg/retrieve"
	"github.com/nnmtech/verisynthos/pkg/store/memstore"
)

// blockingRunner satisfies queue.JobRunner without ever completing a job,
// so dispatcher.CancelJob has something registered to cancel in tests that
// exercise POST /cancel_job/:id. It never returns, so it is only ever
// driven via the dispatcher's own goroutine, never called directly.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, j *job.Job) {
	<-ctx.Done()
}

func newTestServer() *Server {
	jobs := memstore.NewJobStore()
	docs := memstore.NewDocumentStore()
	blobs := memstore.NewBlobStore()

	registry := extract.NewRegistry()
	registry.RegisterAll(plaintext.New())

	pipeline := &ingest.Pipeline{
		Documents:  docs,
		Blobs:      blobs,
		Extractors: registry,
		Embedder:   embed.NewDeterministic(8),
		ChunkCfg:   chunk.Config{MaxTokens: 20, OverlapTokens: 4},
	}

	search := retrieve.New(docs, embed.NewDeterministic(8))
	dispatcher := queue.NewDispatcher(jobs, blockingRunner{})
	cfg := &config.Config{SoftDeleteRetentionDays: 30, EnableHybridSearch: true, MakerK: 3}

	s := NewServer(cfg, jobs, docs, dispatcher, search, pipeline)
	s.SetFileWatchers(ingest.NewFilesystemWatcherRegistry(pipeline, localfs.New()))
	return s
}
