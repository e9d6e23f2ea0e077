// Package memstore is an in-memory reference implementation of the
// pkg/store capability interfaces. It is used by tests and by operators
// running the platform without external infrastructure; it preserves the
// same create-if-absent / compare-and-set semantics the postgres adapter
// provides so behavior does not change across backends.
package memstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// JobStore is an in-memory store.JobStore.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

// NewJobStore returns an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*job.Job)}
}

func (s *JobStore) Create(ctx context.Context, j *job.Job) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == "" {
		j.ID = NewJobID()
	}
	if existing, ok := s.jobs[j.ID]; ok {
		// Idempotent on caller-supplied id.
		return cloneJob(existing), nil
	}

	now := time.Now()
	j.Status = job.StatusQueued
	j.Progress = 0
	j.CreatedAt = now
	j.UpdatedAt = now
	s.jobs[j.ID] = cloneJob(j)
	return cloneJob(j), nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *JobStore) ClaimQueued(ctx context.Context, limit int) ([]*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.jobs))
	for id, j := range s.jobs {
		if j.Status == job.StatusQueued {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, k int) bool { return s.jobs[ids[i]].CreatedAt.Before(s.jobs[ids[k]].CreatedAt) })

	var claimed []*job.Job
	for _, id := range ids {
		if len(claimed) >= limit {
			break
		}
		j := s.jobs[id]
		j.Status = job.StatusRunning
		j.UpdatedAt = time.Now()
		claimed = append(claimed, cloneJob(j))
	}
	return claimed, nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id string, expectedStatus job.Status, newStatus job.Status, progress float64, logMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if expectedStatus != "" && j.Status != expectedStatus {
		return store.ErrConflict
	}
	j.Status = newStatus
	if progress > j.Progress {
		j.Progress = progress
	}
	j.Logs = append(j.Logs, job.LogEntry{Timestamp: time.Now(), Message: logMessage})
	j.UpdatedAt = time.Now()
	return nil
}

func (s *JobStore) Complete(ctx context.Context, id string, status job.Status, logMessage string, result map[string]any, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = status
	if status == job.StatusSucceeded {
		j.Progress = 1.0
	}
	j.Logs = append(j.Logs, job.LogEntry{Timestamp: time.Now(), Message: logMessage})
	j.Result = result
	j.Error = errMessage
	j.UpdatedAt = time.Now()
	return nil
}

func (s *JobStore) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = job.StatusCancelled
	j.Logs = append(j.Logs, job.LogEntry{Timestamp: time.Now(), Message: "cancellation requested"})
	j.UpdatedAt = time.Now()
	return nil
}

func cloneJob(j *job.Job) *job.Job {
	cp := *j
	cp.Logs = append([]job.LogEntry(nil), j.Logs...)
	return &cp
}

// NewJobID allocates a date-prefixed + random-suffix id, exactly the
// scheme the original researched-and-export orchestrator used
// ("job-YYYYMMDD-xxxxxxxx").
func NewJobID() string {
	const hex = "0123456789abcdef"
	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = hex[rand.Intn(len(hex))]
	}
	return fmt.Sprintf("job-%s-%s", time.Now().UTC().Format("20060102"), string(suffix))
}

// DocumentStore is an in-memory store.DocumentStore.
type DocumentStore struct {
	mu        sync.Mutex
	documents map[string]*store.Document
	chunks    map[string][]store.Chunk // documentID -> chunks
	hashIndex map[string]string        // contentHash -> documentID
	failed    []store.FailedIngest
}

// NewDocumentStore returns an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*store.Document),
		chunks:    make(map[string][]store.Chunk),
		hashIndex: make(map[string]string),
	}
}

func (s *DocumentStore) LookupHash(ctx context.Context, contentHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.hashIndex[contentHash]
	if !ok {
		return "", store.ErrNotFound
	}
	doc, ok := s.documents[id]
	if !ok || doc.Deleted {
		return "", store.ErrNotFound
	}
	return id, nil
}

func (s *DocumentStore) CommitDocument(ctx context.Context, doc store.Document, chunks []store.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// create-if-absent: concurrent ingestion of identical bytes resolves
	// to one winner.
	if existing, ok := s.hashIndex[doc.ContentHash]; ok {
		if d, ok2 := s.documents[existing]; ok2 && !d.Deleted {
			return nil // no-op: another caller already committed this hash
		}
	}

	if doc.ID == "" {
		doc.ID = DeriveDocumentID(doc.ContentHash)
	}
	doc.ChunkCount = len(chunks)

	// Commit order: chunks, then document, then hashIndex — matching
	// spec.md §4.2 exactly, so a crash mid-commit is idempotent under
	// retry (no hashIndex entry yet means the next run treats it as new).
	s.chunks[doc.ID] = append([]store.Chunk(nil), chunks...)
	d := doc
	s.documents[doc.ID] = &d
	s.hashIndex[doc.ContentHash] = doc.ID
	return nil
}

// DeriveDocumentID derives a stable document id from a content hash.
func DeriveDocumentID(contentHash string) string {
	if len(contentHash) >= 16 {
		return contentHash[:16]
	}
	return contentHash
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *DocumentStore) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Document
	for _, d := range s.documents {
		if !matchesFilter(*d, filter) {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *DocumentStore) ListChunks(ctx context.Context, documentID string) ([]store.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.chunks[documentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]store.Chunk(nil), cs...), nil
}

func (s *DocumentStore) CandidateChunks(ctx context.Context, filter store.DocumentFilter) ([]store.ChunkWithDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ChunkWithDocument
	for docID, d := range s.documents {
		if !matchesFilter(*d, filter) {
			continue
		}
		for _, c := range s.chunks[docID] {
			out = append(out, store.ChunkWithDocument{Chunk: c, Document: *d})
		}
	}
	return out, nil
}

func matchesFilter(d store.Document, filter store.DocumentFilter) bool {
	if d.Deleted && !filter.IncludeDeleted {
		return false
	}
	if len(filter.FolderIDs) > 0 && !contains(filter.FolderIDs, d.ParentFolder) {
		return false
	}
	if len(filter.MediaTypes) > 0 && !contains(filter.MediaTypes, d.MediaType) {
		return false
	}
	if filter.DateFrom != nil && d.ModifiedAt.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && d.ModifiedAt.After(*filter.DateTo) {
		return false
	}
	if filter.VersionHash != "" && d.RevisionID != filter.VersionHash {
		return false
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func (s *DocumentStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	d.Deleted = true
	d.DeletedAt = &now
	return nil
}

func (s *DocumentStore) HardDeleteExpired(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, d := range s.documents {
		if d.Deleted && d.DeletedAt != nil && d.DeletedAt.Before(olderThan) {
			delete(s.documents, id)
			delete(s.chunks, id)
			delete(s.hashIndex, d.ContentHash)
			removed++
		}
	}
	return removed, nil
}

func (s *DocumentStore) RecordFailedIngest(ctx context.Context, f store.FailedIngest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, f)
	return nil
}

// FailedIngests returns a snapshot of recorded failures, for tests.
func (s *DocumentStore) FailedIngests() []store.FailedIngest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.FailedIngest(nil), s.failed...)
}

// BlobStore is an in-memory store.BlobStore.
type BlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewBlobStore returns an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

func (b *BlobStore) Put(ctx context.Context, contentHash string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[contentHash] = append([]byte(nil), data...)
	return nil
}

func (b *BlobStore) Get(ctx context.Context, contentHash string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[contentHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *BlobStore) Has(ctx context.Context, contentHash string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[contentHash]
	return ok, nil
}

// HashBytes computes the cryptographic content hash used throughout the
// platform as the document identity key.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
