// Package store defines the persistence capability interfaces the rest of
// the platform programs against: JobStore for orchestrator state,
// DocumentStore for ingestion/retrieval state (documents, chunks, the
// content-hash index), and BlobStore for raw bytes. Two adapters are
// provided: postgres (production) and memstore (tests, no external
// infrastructure required).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nnmtech/verisynthos/pkg/job"
)

// ErrNotFound is returned by Get-style methods when a record does not
// exist (or is soft-deleted, for document reads that respect that).
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a compare-and-set precondition fails, e.g.
// a job's status changed between read and update, or a hashIndex entry
// already exists.
var ErrConflict = errors.New("store: conflict")

// Source identifies where a Document originated.
type Source string

const (
	SourceDrive Source = "drive"
	SourceGCS   Source = "gcs"
	SourceLocal Source = "local"
	SourceEmail Source = "email"
)

// Provenance carries the source-specific attributes spec.md §3 requires
// for citation: name, revision, link, and so on. Fields not meaningful for
// a given Source are left zero.
type Provenance struct {
	FileName     string `json:"file_name"`
	FileID       string `json:"file_id"`
	RevisionID   string `json:"revision_id,omitempty"`
	DriveLink    string `json:"drive_link,omitempty"`
	EmailSubject string `json:"email_subject,omitempty"`
	EmailSender  string `json:"email_sender,omitempty"`
	EmailDate    string `json:"email_date,omitempty"`
	MessageID    string `json:"message_id,omitempty"`
}

// Document is the persisted record for one ingested file, per spec.md §3.
type Document struct {
	ID             string     `json:"id"` // derived from ContentHash
	Source         Source     `json:"source"`
	Name           string     `json:"name"`
	MediaType      string     `json:"media_type"`
	ContentHash    string     `json:"content_hash"`
	RevisionID     string     `json:"revision_id,omitempty"`
	ParentFolder   string     `json:"parent_folder,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
	ModifiedAt     time.Time  `json:"modified_at"`
	ChunkCount     int        `json:"chunk_count"`
	Deleted        bool       `json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	EmbedPending   bool       `json:"embed_pending,omitempty"`
	DegradedChunk  bool       `json:"degraded_chunking,omitempty"`
	Provenance     Provenance `json:"provenance"`
}

// Chunk is one token-cover segment of a Document, per spec.md §3.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	StartToken int       `json:"start_token"`
	EndToken   int       `json:"end_token"`
	StartChar  int       `json:"start_char"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FailedIngest records a file that exhausted its retry budget, per
// spec.md §4.2.
type FailedIngest struct {
	Source    Source    `json:"source"`
	Name      string    `json:"name"`
	ParentRef string    `json:"parent_ref"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}

// JobStore persists Job records with single-document atomic updates.
type JobStore interface {
	// Create inserts a new job in StatusQueued. Idempotent on spec.JobID:
	// if a job with that id already exists, Create returns it unchanged
	// rather than erroring, per spec.md §4.4 ("Idempotent on caller-supplied id").
	Create(ctx context.Context, j *job.Job) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)

	// ClaimQueued atomically transitions up to limit jobs in StatusQueued
	// to StatusRunning (compare-and-set on status) and returns them. Only
	// one dispatcher instance will receive a given job from this call.
	ClaimQueued(ctx context.Context, limit int) ([]*job.Job, error)

	// UpdateProgress atomically appends a log entry and sets status/progress,
	// guarded by an expected-previous-status compare-and-set so a
	// cancellation observed concurrently is never silently overwritten.
	UpdateProgress(ctx context.Context, id string, expectedStatus job.Status, newStatus job.Status, progress float64, logMessage string) error

	// Complete sets the terminal state (succeeded/failed/cancelled) plus
	// the final log entry and result/error payload.
	Complete(ctx context.Context, id string, status job.Status, logMessage string, result map[string]any, errMessage string) error

	// Cancel sets status to StatusCancelled if the job is not already
	// terminal. Safe to call concurrently with a running dispatch; the
	// dispatcher observes the flag between stages.
	Cancel(ctx context.Context, id string) error
}

// DocumentFilter narrows which documents a search or enumeration
// considers. Zero-value fields impose no constraint, per spec.md §4.3.
type DocumentFilter struct {
	FolderIDs   []string
	MediaTypes  []string
	DateFrom    *time.Time
	DateTo      *time.Time
	VersionHash string
	IncludeDeleted bool
}

// DocumentStore persists documents, chunks, and the content-hash dedupe
// index.
type DocumentStore interface {
	// LookupHash returns the document id for a content hash, or
	// ErrNotFound if no live document has that hash. Used for the
	// dedupe-check step of ingestion.
	LookupHash(ctx context.Context, contentHash string) (string, error)

	// CommitDocument writes chunks, then the document, then the hashIndex
	// entry, in that order (spec.md §4.2's commit order, making the
	// pipeline idempotent under at-least-once execution: a crash between
	// writes just means the next run re-enumerates and retries, finding
	// no hashIndex entry yet).
	CommitDocument(ctx context.Context, doc Document, chunks []Chunk) error

	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)
	ListChunks(ctx context.Context, documentID string) ([]Chunk, error)

	// CandidateChunks returns chunks (with their owning document's
	// metadata joined in) eligible for retrieval under filter — i.e.
	// excluding soft-deleted documents unless filter.IncludeDeleted.
	CandidateChunks(ctx context.Context, filter DocumentFilter) ([]ChunkWithDocument, error)

	// SoftDelete marks a document (and transitively its chunks, by
	// exclusion from CandidateChunks) deleted.
	SoftDelete(ctx context.Context, id string) error

	// HardDeleteExpired permanently removes documents whose DeletedAt is
	// older than olderThan, cascading to their chunks and hashIndex
	// entries. Returns the number of documents removed.
	HardDeleteExpired(ctx context.Context, olderThan time.Time) (int, error)

	// RecordFailedIngest persists a FailedIngest after maxAttempts per
	// spec.md §4.2.
	RecordFailedIngest(ctx context.Context, f FailedIngest) error
}

// ChunkWithDocument pairs a Chunk with the provenance of its owning
// Document, the shape the hybrid retriever and search API need.
type ChunkWithDocument struct {
	Chunk
	Document Document
}

// BlobStore persists raw bytes for a document (the downloaded file),
// addressed by content hash so repeated ingestion of identical bytes is a
// cache hit.
type BlobStore interface {
	Put(ctx context.Context, contentHash string, data []byte) error
	Get(ctx context.Context, contentHash string) ([]byte, error)
	Has(ctx context.Context, contentHash string) (bool, error)
}
