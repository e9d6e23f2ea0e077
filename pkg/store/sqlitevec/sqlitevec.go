// Package sqlitevec is an optional single-tenant document store for
// operators who don't want to run Postgres: a single SQLite file with
// sqlite-vec for nearest-neighbor search (VectorSearch) and FTS5 for
// lexical search (LexicalSearch). It implements only part of
// store.DocumentStore (no GetDocument, ListDocuments, ListChunks,
// CandidateChunks or RecordFailedIngest); pkg/retrieve does not call it,
// and no configuration setting wires it into the server.
package sqlitevec

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nnmtech/verisynthos/pkg/store"
)

func init() {
	sqlite_vec.Auto()
}

// Store is a single-file SQLite document store with vector + lexical
// search built in.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// Open creates (or opens) the database at path, provisioning schema for
// the given embedding dimension.
func Open(path string, embeddingDim int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlitevec directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open sqlitevec database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlitevec database: %w", err)
	}
	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlitevec schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS documents (
    id             TEXT PRIMARY KEY,
    source         TEXT NOT NULL,
    name           TEXT NOT NULL,
    media_type     TEXT NOT NULL,
    content_hash   TEXT NOT NULL UNIQUE,
    revision_id    TEXT,
    parent_folder  TEXT,
    uploaded_at    DATETIME NOT NULL,
    modified_at    DATETIME NOT NULL,
    chunk_count    INTEGER NOT NULL DEFAULT 0,
    deleted        INTEGER NOT NULL DEFAULT 0,
    deleted_at     DATETIME,
    embed_pending  INTEGER NOT NULL DEFAULT 0,
    degraded_chunk INTEGER NOT NULL DEFAULT 0,
    provenance     JSON
);

CREATE TABLE IF NOT EXISTS chunks (
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
    chunk_index INTEGER NOT NULL,
    text        TEXT NOT NULL,
    token_count INTEGER NOT NULL,
    start_token INTEGER NOT NULL,
    end_token   INTEGER NOT NULL,
    start_char  INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (document_id, chunk_index)
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    document_id TEXT PARTITION KEY,
    chunk_index INTEGER,
    embedding float[%d]
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text,
    content='chunks',
    content_rowid='rowid',
    tokenize='porter unicode61'
);
`, embeddingDim)
}

// CommitDocument mirrors the postgres/memstore adapters' semantics:
// chunks, then the document row, with content-hash uniqueness enforcing
// create-if-absent dedupe.
func (s *Store) CommitDocument(ctx context.Context, doc store.Document, chunks []store.Chunk) error {
	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE content_hash = ? AND NOT deleted`, doc.ContentHash).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range chunks {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (document_id, chunk_index, text, token_count, start_token, end_token, start_char, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, c.ChunkIndex, c.Text, c.TokenCount, c.StartToken, c.EndToken, c.StartChar, time.Now())
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
		// chunks_fts is an external-content table: its index is filled here.
		rowID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("chunk %d rowid: %w", c.ChunkIndex, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts (rowid, text) VALUES (?, ?)`, rowID, c.Text); err != nil {
			return fmt.Errorf("index chunk %d text: %w", c.ChunkIndex, err)
		}
		if len(c.Embedding) > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO vec_chunks (document_id, chunk_index, embedding) VALUES (?, ?, ?)`,
				doc.ID, c.ChunkIndex, serializeFloat32(c.Embedding)); err != nil {
				return fmt.Errorf("insert embedding %d: %w", c.ChunkIndex, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, source, name, media_type, content_hash, revision_id, parent_folder, uploaded_at, modified_at, chunk_count, embed_pending, degraded_chunk, provenance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Source, doc.Name, doc.MediaType, doc.ContentHash, doc.RevisionID, doc.ParentFolder,
		doc.UploadedAt, doc.ModifiedAt, doc.ChunkCount, doc.EmbedPending, doc.DegradedChunk, provenanceRaw); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	return tx.Commit()
}

// LookupHash returns a live document id for a content hash.
func (s *Store) LookupHash(ctx context.Context, contentHash string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE content_hash = ? AND NOT deleted`, contentHash).Scan(&id)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	return id, err
}

// VectorSearch runs a KNN search over vec_chunks and returns candidate
// chunks joined with document provenance, for pkg/retrieve's vector arm.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]store.ChunkWithDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.document_id, v.chunk_index, v.distance,
		       c.text, c.token_count, c.start_token, c.end_token, c.start_char, c.created_at,
		       d.source, d.name, d.media_type, d.content_hash, d.revision_id, d.parent_folder,
		       d.uploaded_at, d.modified_at, d.chunk_count, d.deleted, d.embed_pending, d.degraded_chunk, d.provenance
		FROM vec_chunks v
		JOIN chunks c ON c.document_id = v.document_id AND c.chunk_index = v.chunk_index
		JOIN documents d ON d.id = v.document_id
		WHERE v.embedding MATCH ? AND k = ? AND NOT d.deleted
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []store.ChunkWithDocument
	for rows.Next() {
		var cwd store.ChunkWithDocument
		var distance float64
		var revisionID, parentFolder sql.NullString
		var provenanceRaw []byte
		if err := rows.Scan(
			&cwd.DocumentID, &cwd.ChunkIndex, &distance,
			&cwd.Text, &cwd.TokenCount, &cwd.StartToken, &cwd.EndToken, &cwd.StartChar, &cwd.CreatedAt,
			&cwd.Document.Source, &cwd.Document.Name, &cwd.Document.MediaType, &cwd.Document.ContentHash, &revisionID, &parentFolder,
			&cwd.Document.UploadedAt, &cwd.Document.ModifiedAt, &cwd.Document.ChunkCount, &cwd.Document.Deleted, &cwd.Document.EmbedPending, &cwd.Document.DegradedChunk, &provenanceRaw,
		); err != nil {
			return nil, fmt.Errorf("scan vector result: %w", err)
		}
		cwd.Document.ID = cwd.DocumentID
		cwd.Document.RevisionID = revisionID.String
		cwd.Document.ParentFolder = parentFolder.String
		if len(provenanceRaw) > 0 {
			_ = json.Unmarshal(provenanceRaw, &cwd.Document.Provenance)
		}
		out = append(out, cwd)
	}
	return out, rows.Err()
}

// LexicalSearch runs an FTS5 BM25 query, for pkg/retrieve's lexical arm.
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int) ([]store.ChunkWithDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, c.chunk_index, f.rank,
		       c.text, c.token_count, c.start_token, c.end_token, c.start_char, c.created_at,
		       d.source, d.name, d.media_type, d.content_hash, d.revision_id, d.parent_folder,
		       d.uploaded_at, d.modified_at, d.chunk_count, d.deleted, d.embed_pending, d.degraded_chunk, d.provenance
		FROM chunks_fts f
		JOIN chunks c ON c.rowid = f.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ? AND NOT d.deleted
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []store.ChunkWithDocument
	for rows.Next() {
		var cwd store.ChunkWithDocument
		var rank float64
		var revisionID, parentFolder sql.NullString
		var provenanceRaw []byte
		if err := rows.Scan(
			&cwd.DocumentID, &cwd.ChunkIndex, &rank,
			&cwd.Text, &cwd.TokenCount, &cwd.StartToken, &cwd.EndToken, &cwd.StartChar, &cwd.CreatedAt,
			&cwd.Document.Source, &cwd.Document.Name, &cwd.Document.MediaType, &cwd.Document.ContentHash, &revisionID, &parentFolder,
			&cwd.Document.UploadedAt, &cwd.Document.ModifiedAt, &cwd.Document.ChunkCount, &cwd.Document.Deleted, &cwd.Document.EmbedPending, &cwd.Document.DegradedChunk, &provenanceRaw,
		); err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		cwd.Document.ID = cwd.DocumentID
		cwd.Document.RevisionID = revisionID.String
		cwd.Document.ParentFolder = parentFolder.String
		if len(provenanceRaw) > 0 {
			_ = json.Unmarshal(provenanceRaw, &cwd.Document.Provenance)
		}
		out = append(out, cwd)
	}
	return out, rows.Err()
}

// SoftDelete marks a document deleted, excluding it from future searches.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET deleted = 1, deleted_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
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

// HardDeleteExpired removes documents (and, via cascade, their chunks)
// soft-deleted before olderThan.
func (s *Store) HardDeleteExpired(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE deleted = 1 AND deleted_at < ?`, olderThan)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeriveDocumentID derives a stable document id from a content hash.
func DeriveDocumentID(contentHash string) string {
	if len(contentHash) >= 16 {
		return contentHash[:16]
	}
	return contentHash
}

// HashBytes computes the content hash used as the document identity key.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
