package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// BlobStore is a content-addressed filesystem blob store, sharded by the
// first two hex characters of the content hash to keep any one directory
// from growing unbounded under heavy ingestion.
type BlobStore struct {
	root string
}

// NewBlobStore roots a blob store at dir, creating it if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &BlobStore{root: dir}, nil
}

func (b *BlobStore) path(contentHash string) string {
	shard := contentHash
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(b.root, shard, contentHash)
}

func (b *BlobStore) Put(ctx context.Context, contentHash string, data []byte) error {
	p := b.path(contentHash)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create blob shard dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return os.Rename(tmp, p)
}

func (b *BlobStore) Get(ctx context.Context, contentHash string) ([]byte, error) {
	data, err := os.ReadFile(b.path(contentHash))
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound
	}
	return data, err
}

func (b *BlobStore) Has(ctx context.Context, contentHash string) (bool, error) {
	_, err := os.Stat(b.path(contentHash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
