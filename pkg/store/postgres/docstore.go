package postgres

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// DocumentStore is a postgres-backed store.DocumentStore.
type DocumentStore struct {
	db *stdsql.DB
}

// NewDocumentStore wraps a connection pool.
func NewDocumentStore(db *stdsql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) LookupHash(ctx context.Context, contentHash string) (string, error) {
	const q = `SELECT id FROM documents WHERE content_hash = $1 AND NOT deleted`
	var id string
	err := s.db.QueryRowContext(ctx, q, contentHash).Scan(&id)
	if err == stdsql.ErrNoRows {
		return "", store.ErrNotFound
	}
	return id, err
}

func (s *DocumentStore) CommitDocument(ctx context.Context, doc store.Document, chunks []store.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE content_hash = $1 AND NOT deleted`, doc.ContentHash).Scan(&existingID)
	if err == nil {
		// Another committer already owns this hash: no-op, per spec.md
		// §4.2's create-if-absent dedupe semantics.
		return tx.Commit()
	}
	if err != stdsql.ErrNoRows {
		return fmt.Errorf("check existing hash: %w", err)
	}

	if doc.ID == "" {
		doc.ID = DeriveDocumentID(doc.ContentHash)
	}
	doc.ChunkCount = len(chunks)
	provenanceRaw, err := json.Marshal(doc.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	// Commit order: chunks, then document — document.content_hash acts as
	// the hashIndex entry itself via the partial unique index, so the
	// document insert is also the index insert. Both inserts share one
	// transaction and the chunks foreign key is checked at commit, so a
	// crash between them leaves nothing behind. Re-committing a
	// soft-deleted hash re-derives the same document id: its chunk
	// inserts collide harmlessly under ON CONFLICT DO NOTHING and the
	// document upsert clears the deleted flag.
	const insertChunk = `
		INSERT INTO chunks (document_id, chunk_index, text, token_count, start_token, end_token, start_char, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (document_id, chunk_index) DO NOTHING`
	for _, c := range chunks {
		var embedding interface{}
		if len(c.Embedding) > 0 {
			f64 := make([]float64, len(c.Embedding))
			for i, v := range c.Embedding {
				f64[i] = float64(v)
			}
			embedding = pq.Array(f64)
		}
		if _, err := tx.ExecContext(ctx, insertChunk, doc.ID, c.ChunkIndex, c.Text, c.TokenCount, c.StartToken, c.EndToken, c.StartChar, embedding); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	const insertDoc = `
		INSERT INTO documents (id, source, name, media_type, content_hash, revision_id, parent_folder, uploaded_at, modified_at, chunk_count, embed_pending, degraded_chunk, provenance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			deleted = false,
			deleted_at = NULL,
			chunk_count = EXCLUDED.chunk_count,
			embed_pending = EXCLUDED.embed_pending,
			degraded_chunk = EXCLUDED.degraded_chunk,
			modified_at = EXCLUDED.modified_at`
	_, err = tx.ExecContext(ctx, insertDoc,
		doc.ID, doc.Source, doc.Name, doc.MediaType, doc.ContentHash, doc.RevisionID, doc.ParentFolder,
		doc.UploadedAt, doc.ModifiedAt, doc.ChunkCount, doc.EmbedPending, doc.DegradedChunk, provenanceRaw)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	return tx.Commit()
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	const q = documentSelectColumns + ` FROM documents WHERE id = $1`
	row := s.db.QueryRowContext(ctx, q, id)
	doc, err := scanDocument(row)
	if err == stdsql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return doc, err
}

const documentSelectColumns = `
	SELECT id, source, name, media_type, content_hash, revision_id, parent_folder,
	       uploaded_at, modified_at, chunk_count, deleted, deleted_at, embed_pending, degraded_chunk, provenance`

func scanDocument(row *stdsql.Row) (*store.Document, error) {
	var d store.Document
	var provenanceRaw []byte
	var revisionID, parentFolder stdsql.NullString
	var deletedAt stdsql.NullTime

	if err := row.Scan(&d.ID, &d.Source, &d.Name, &d.MediaType, &d.ContentHash, &revisionID, &parentFolder,
		&d.UploadedAt, &d.ModifiedAt, &d.ChunkCount, &d.Deleted, &deletedAt, &d.EmbedPending, &d.DegradedChunk, &provenanceRaw); err != nil {
		return nil, err
	}
	d.RevisionID = revisionID.String
	d.ParentFolder = parentFolder.String
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	if len(provenanceRaw) > 0 {
		if err := json.Unmarshal(provenanceRaw, &d.Provenance); err != nil {
			return nil, fmt.Errorf("unmarshal provenance: %w", err)
		}
	}
	return &d, nil
}

func (s *DocumentStore) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]store.Document, error) {
	where, args := filterClause(filter)
	q := documentSelectColumns + ` FROM documents` + where
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var d store.Document
		var provenanceRaw []byte
		var revisionID, parentFolder stdsql.NullString
		var deletedAt stdsql.NullTime
		if err := rows.Scan(&d.ID, &d.Source, &d.Name, &d.MediaType, &d.ContentHash, &revisionID, &parentFolder,
			&d.UploadedAt, &d.ModifiedAt, &d.ChunkCount, &d.Deleted, &deletedAt, &d.EmbedPending, &d.DegradedChunk, &provenanceRaw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.RevisionID = revisionID.String
		d.ParentFolder = parentFolder.String
		if deletedAt.Valid {
			d.DeletedAt = &deletedAt.Time
		}
		if len(provenanceRaw) > 0 {
			if err := json.Unmarshal(provenanceRaw, &d.Provenance); err != nil {
				return nil, fmt.Errorf("unmarshal provenance: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DocumentStore) ListChunks(ctx context.Context, documentID string) ([]store.Chunk, error) {
	const q = `
		SELECT document_id, chunk_index, text, token_count, start_token, end_token, start_char, embedding, created_at
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []store.Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, rows.Err()
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunkRow(rows rowScanner) (store.Chunk, error) {
	var c store.Chunk
	var embedding pq.Float64Array
	if err := rows.Scan(&c.DocumentID, &c.ChunkIndex, &c.Text, &c.TokenCount, &c.StartToken, &c.EndToken, &c.StartChar, &embedding, &c.CreatedAt); err != nil {
		return c, fmt.Errorf("scan chunk: %w", err)
	}
	if len(embedding) > 0 {
		c.Embedding = make([]float32, len(embedding))
		for i, v := range embedding {
			c.Embedding[i] = float32(v)
		}
	}
	return c, nil
}

func (s *DocumentStore) CandidateChunks(ctx context.Context, filter store.DocumentFilter) ([]store.ChunkWithDocument, error) {
	where, args := filterClause(filter)
	q := `
		SELECT c.document_id, c.chunk_index, c.text, c.token_count, c.start_token, c.end_token, c.start_char, c.embedding, c.created_at,
		       d.id, d.source, d.name, d.media_type, d.content_hash, d.revision_id, d.parent_folder,
		       d.uploaded_at, d.modified_at, d.chunk_count, d.deleted, d.deleted_at, d.embed_pending, d.degraded_chunk, d.provenance
		FROM chunks c JOIN documents d ON d.id = c.document_id` + replaceTableAlias(where, "d")
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate chunks: %w", err)
	}
	defer rows.Close()

	var out []store.ChunkWithDocument
	for rows.Next() {
		var cwd store.ChunkWithDocument
		var embedding pq.Float64Array
		var provenanceRaw []byte
		var revisionID, parentFolder stdsql.NullString
		var deletedAt stdsql.NullTime
		if err := rows.Scan(
			&cwd.DocumentID, &cwd.ChunkIndex, &cwd.Text, &cwd.TokenCount, &cwd.StartToken, &cwd.EndToken, &cwd.StartChar, &embedding, &cwd.CreatedAt,
			&cwd.Document.ID, &cwd.Document.Source, &cwd.Document.Name, &cwd.Document.MediaType, &cwd.Document.ContentHash, &revisionID, &parentFolder,
			&cwd.Document.UploadedAt, &cwd.Document.ModifiedAt, &cwd.Document.ChunkCount, &cwd.Document.Deleted, &deletedAt, &cwd.Document.EmbedPending, &cwd.Document.DegradedChunk, &provenanceRaw,
		); err != nil {
			return nil, fmt.Errorf("scan candidate chunk: %w", err)
		}
		if len(embedding) > 0 {
			cwd.Embedding = make([]float32, len(embedding))
			for i, v := range embedding {
				cwd.Embedding[i] = float32(v)
			}
		}
		cwd.Document.RevisionID = revisionID.String
		cwd.Document.ParentFolder = parentFolder.String
		if deletedAt.Valid {
			cwd.Document.DeletedAt = &deletedAt.Time
		}
		if len(provenanceRaw) > 0 {
			if err := json.Unmarshal(provenanceRaw, &cwd.Document.Provenance); err != nil {
				return nil, fmt.Errorf("unmarshal provenance: %w", err)
			}
		}
		out = append(out, cwd)
	}
	return out, rows.Err()
}

// replaceTableAlias rewrites a "WHERE ..." clause built for an
// unqualified documents table so its column references use alias d,
// matching the join in CandidateChunks.
func replaceTableAlias(where string, alias string) string {
	if where == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"deleted", alias+".deleted",
		"parent_folder", alias+".parent_folder",
		"media_type", alias+".media_type",
		"modified_at", alias+".modified_at",
		"revision_id", alias+".revision_id",
	)
	return replacer.Replace(where)
}

func filterClause(filter store.DocumentFilter) (string, []any) {
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeDeleted {
		clauses = append(clauses, "NOT deleted")
	}
	if len(filter.FolderIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("parent_folder = ANY(%s)", arg(pq.Array(filter.FolderIDs))))
	}
	if len(filter.MediaTypes) > 0 {
		clauses = append(clauses, fmt.Sprintf("media_type = ANY(%s)", arg(pq.Array(filter.MediaTypes))))
	}
	if filter.DateFrom != nil {
		clauses = append(clauses, fmt.Sprintf("modified_at >= %s", arg(*filter.DateFrom)))
	}
	if filter.DateTo != nil {
		clauses = append(clauses, fmt.Sprintf("modified_at <= %s", arg(*filter.DateTo)))
	}
	if filter.VersionHash != "" {
		clauses = append(clauses, fmt.Sprintf("revision_id = %s", arg(filter.VersionHash)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *DocumentStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET deleted = true, deleted_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) HardDeleteExpired(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE deleted AND deleted_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("hard delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *DocumentStore) RecordFailedIngest(ctx context.Context, f store.FailedIngest) error {
	const q = `
		INSERT INTO failed_ingests (source, name, parent_ref, attempts, last_error, failed_at)
		VALUES ($1, $2, $3, $4, $5, now())`
	_, err := s.db.ExecContext(ctx, q, f.Source, f.Name, f.ParentRef, f.Attempts, f.LastError)
	return err
}
