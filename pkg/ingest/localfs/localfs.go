// Package localfs is the concrete Source adapter for the
// `{local_path, recursive}` ingestion API named in spec.md §6 — entry
// IDs are absolute filesystem paths, so ListChildren/Download need no
// separate id-to-path index.
package localfs

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// Source lists and downloads files under a local directory tree.
type Source struct{}

// New returns a localfs Source.
func New() *Source { return &Source{} }

func (s *Source) SourceTag() store.Source { return store.SourceLocal }

// ListChildren lists the direct children of folderID (a directory
// path). Non-recursive by design — pkg/ingest.Enumerate drives the
// recursion by pushing subfolder entries back onto its work stack.
func (s *Source) ListChildren(ctx context.Context, folderID string) ([]ingest.Entry, error) {
	dirEntries, err := os.ReadDir(folderID)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", folderID, err)
	}

	entries := make([]ingest.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		path := filepath.Join(folderID, de.Name())
		if de.IsDir() {
			entries = append(entries, ingest.Entry{
				ID:           path,
				Name:         de.Name(),
				IsFolder:     true,
				ParentFolder: folderID,
			})
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, ingest.Entry{
			ID:           path,
			Name:         de.Name(),
			MediaType:    mediaTypeFromExt(path),
			ParentFolder: folderID,
			ModifiedAt:   info.ModTime(),
		})
	}
	return entries, nil
}

// Download reads the file at entry.ID (its absolute path).
func (s *Source) Download(ctx context.Context, entry ingest.Entry) ([]byte, error) {
	data, err := os.ReadFile(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", entry.ID, err)
	}
	return data, nil
}

func mediaTypeFromExt(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			return mt[:i]
		}
		return mt
	}
	return "application/octet-stream"
}
