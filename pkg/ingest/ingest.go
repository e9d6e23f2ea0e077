// Package ingest implements the per-file ingestion pipeline
// (Enumerate→Hash→Dedupe-check→Download→Extract→Chunk→Embed→Commit),
// recursive folder enumeration, the retry queue, watchers, and soft
// delete. Grounded directly on bbiangul/go-reason/chunker (token-aware
// splitting, content hashing) and parser (media-type Extractor dispatch),
// with the watcher/retry supervised-loop shape taken from the teacher's
// pkg/queue/pool.go and pkg/queue/orphan.go (ticker + select + stopCh).
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/chunk"
	"github.com/nnmtech/verisynthos/pkg/embed"
	"github.com/nnmtech/verisynthos/pkg/extract"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// Entry is one enumerable file or folder from a Source, carrying
// whatever cheap metadata the provider exposes up front.
type Entry struct {
	ID             string
	Name           string
	IsFolder       bool
	MediaType      string
	ParentFolder   string
	ModifiedAt     time.Time
	RevisionID     string
	VendorChecksum string // cheap provider checksum, if any; empty means "compute on download"
	DriveLink      string
}

// Source is the capability a folder/object-store/local-path provider
// implements so the pipeline can enumerate and download its files
// without knowing the concrete backend.
type Source interface {
	SourceTag() store.Source
	ListChildren(ctx context.Context, folderID string) ([]Entry, error)
	Download(ctx context.Context, entry Entry) ([]byte, error)
}

// Outcome reports what IngestFile did with one entry. An entry whose
// media type has no registered extractor is not skipped: its document is
// committed with zero chunks and the extractor's skip message is
// returned in Warning.
type Outcome struct {
	DocumentID string
	Skipped    bool
	Reason     string // "dedupe" when skipped, "" otherwise
	Warning    string
	ChunkCount int
}

// Pipeline wires the capabilities the per-file ingestion steps need.
type Pipeline struct {
	Documents  store.DocumentStore
	Blobs      store.BlobStore
	Extractors *extract.Registry
	Embedder   embed.Embedder
	ChunkCfg   chunk.Config

	// Limiter is the QUOTA_LIMIT_PER_MINUTE token bucket guarding every
	// ingestion entry point (HTTP POST /ingest, the memory stage façade,
	// the retry queue, and the filesystem/mail watchers all call
	// IngestFile), per spec.md §5. Nil means unlimited, so tests and
	// other call sites that don't care about quotas can leave it unset.
	Limiter *rate.Limiter
}

// NewQuotaLimiter builds the token bucket an ingestion entry point uses to
// enforce QUOTA_LIMIT_PER_MINUTE: a bucket sized at perMinute tokens,
// refilling at perMinute tokens per minute, per spec.md §6's "token
// bucket size" description of the setting.
func NewQuotaLimiter(perMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
}

// IngestFile runs Hash→Dedupe-check→Download→Extract→Chunk→Embed→Commit
// for one entry, per spec.md §4.2.
func (p *Pipeline) IngestFile(ctx context.Context, src Source, entry Entry, prov store.Provenance) (Outcome, error) {
	if p.Limiter != nil && !p.Limiter.Allow() {
		return Outcome{}, apperrors.New(apperrors.QuotaExceeded, "ingestion quota exceeded, retry after backoff")
	}

	log := slog.With("source", src.SourceTag(), "name", entry.Name, "entry_id", entry.ID)

	contentHash := entry.VendorChecksum
	if contentHash != "" {
		if id, hit, err := p.dedupeCheck(ctx, contentHash); err != nil {
			return Outcome{}, err
		} else if hit {
			log.Debug("skipping, vendor checksum matched an existing document")
			return Outcome{DocumentID: id, Skipped: true, Reason: "dedupe"}, nil
		}
	}

	data, err := src.Download(ctx, entry)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.TransientIO, fmt.Sprintf("downloading %q", entry.Name), err)
	}

	if contentHash == "" {
		contentHash = HashBytes(data)
		if id, hit, err := p.dedupeCheck(ctx, contentHash); err != nil {
			return Outcome{}, err
		} else if hit {
			log.Debug("skipping, computed hash matched an existing document")
			return Outcome{DocumentID: id, Skipped: true, Reason: "dedupe"}, nil
		}
	}

	if err := p.Blobs.Put(ctx, contentHash, data); err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.TransientIO, "storing blob", err)
	}

	var warning string
	extractResult, err := p.Extractors.Extract(ctx, entry.MediaType, data)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.ExtractionFailed, fmt.Sprintf("extracting %q", entry.Name), err)
	}
	if extractResult.Warning != "" {
		warning = extractResult.Warning
	}

	chunkResult := chunk.Chunk(extractResult.Text, p.ChunkCfg)
	if chunkResult.Degraded {
		warning = appendWarning(warning, "degraded chunking: no whitespace tokenizer match")
	}

	embedPending := false
	if len(chunkResult.Chunks) > 0 {
		if err := p.embedChunks(ctx, chunkResult.Chunks); err != nil {
			log.Warn("embedding failed, persisting chunks without vectors", "error", err)
			embedPending = true
		}
	}

	now := time.Now()
	doc := store.Document{
		ContentHash:   contentHash,
		Source:        src.SourceTag(),
		Name:          entry.Name,
		MediaType:     entry.MediaType,
		RevisionID:    entry.RevisionID,
		ParentFolder:  entry.ParentFolder,
		UploadedAt:    now,
		ModifiedAt:    entry.ModifiedAt,
		ChunkCount:    len(chunkResult.Chunks),
		EmbedPending:  embedPending,
		DegradedChunk: chunkResult.Degraded,
		Provenance:    mergeProvenance(prov, entry),
	}

	chunks := make([]store.Chunk, len(chunkResult.Chunks))
	for i, c := range chunkResult.Chunks {
		c.CreatedAt = now
		chunks[i] = c
	}

	if err := p.Documents.CommitDocument(ctx, doc, chunks); err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.TransientIO, "committing document", err)
	}

	return Outcome{
		DocumentID: DeriveDocumentID(contentHash),
		Warning:    warning,
		ChunkCount: len(chunkResult.Chunks),
	}, nil
}

func (p *Pipeline) dedupeCheck(ctx context.Context, contentHash string) (id string, hit bool, err error) {
	id, err = p.Documents.LookupHash(ctx, contentHash)
	if err == nil {
		return id, true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	return "", false, err
}

// embedChunks batches Embed calls in groups of embed.BatchSize, per
// spec.md §4.2, filling in each chunk's Embedding field in place.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []store.Chunk) error {
	if p.Embedder == nil {
		return apperrors.New(apperrors.TransientIO, "no embedder configured")
	}
	for start := 0; start < len(chunks); start += embed.BatchSize {
		end := start + embed.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}
		vectors, err := p.Embedder.Embed(ctx, texts)
		if err != nil {
			return apperrors.Wrap(apperrors.TransientIO, "embedder call failed", err)
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

func mergeProvenance(base store.Provenance, entry Entry) store.Provenance {
	prov := base
	prov.FileName = entry.Name
	prov.FileID = entry.ID
	if prov.RevisionID == "" {
		prov.RevisionID = entry.RevisionID
	}
	if prov.DriveLink == "" {
		prov.DriveLink = entry.DriveLink
	}
	return prov
}

func appendWarning(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

// HashBytes computes the content hash used as document identity, the
// same sha256-hex scheme as the memstore and sqlitevec HashBytes
// helpers, kept local here so pkg/ingest never imports a concrete store
// adapter package just to hash bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DeriveDocumentID mirrors each store adapter's DeriveDocumentID (first
// 16 hex chars of the content hash) so callers that only have a hash —
// e.g. a dedupe hit — can report the same id the store would have
// assigned, without a round trip.
func DeriveDocumentID(contentHash string) string {
	if len(contentHash) <= 16 {
		return contentHash
	}
	return contentHash[:16]
}
