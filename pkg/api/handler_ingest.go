package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// ingestHandler handles POST /ingest. Exactly one of folder_id, gcs_uri, or
// local_path should be set, per spec.md §6; only local_path is backed by a
// wired Source adapter (pkg/ingest/localfs) — folder_id/gcs_uri name Drive
// and GCS connectors this build has no client credentials to reach, so
// they are rejected as unsupported rather than silently no-oping.
func (s *Server) ingestHandler(c *echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch {
	case req.LocalPath != "":
		return s.ingestLocalPath(c, req)
	case req.FolderID != "":
		return mapError(apperrors.New(apperrors.PermanentIO, "folder_id (Drive) ingestion has no wired source adapter"))
	case req.GCSURI != "":
		return mapError(apperrors.New(apperrors.PermanentIO, "gcs_uri ingestion has no wired source adapter"))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "one of folder_id, gcs_uri, or local_path is required")
	}
}

func (s *Server) ingestLocalPath(c *echo.Context, req ingestRequest) error {
	ctx := c.Request().Context()

	var entries []ingest.Entry
	if req.Recursive {
		result, err := ingest.Enumerate(ctx, s.localSrc, req.LocalPath)
		if err != nil {
			return mapError(apperrors.Wrap(apperrors.TransientIO, "enumerating local path", err))
		}
		entries = result.Files
	} else {
		children, err := s.localSrc.ListChildren(ctx, req.LocalPath)
		if err != nil {
			return mapError(apperrors.Wrap(apperrors.TransientIO, "listing local path", err))
		}
		for _, child := range children {
			if !child.IsFolder {
				entries = append(entries, child)
			}
		}
	}

	filesProcessed, chunks := 0, 0
	for _, entry := range entries {
		outcome, err := s.pipeline.IngestFile(ctx, s.localSrc, entry, store.Provenance{})
		if err != nil {
			return mapError(err)
		}
		if !outcome.Skipped {
			filesProcessed++
			chunks += outcome.ChunkCount
		}
	}

	return c.JSON(http.StatusOK, ingestResponse{
		Status:         "completed",
		FilesProcessed: filesProcessed,
		Chunks:         chunks,
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}
