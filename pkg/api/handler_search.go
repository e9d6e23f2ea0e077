package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nnmtech/verisynthos/pkg/retrieve"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// searchHandler handles POST /search, per spec.md §6.
func (s *Server) searchHandler(c *echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	filter := store.DocumentFilter{
		FolderIDs:   req.FolderIDs,
		MediaTypes:  req.MimeTypes,
		VersionHash: req.VersionHash,
	}
	if req.DateFrom != "" {
		t, err := time.Parse(time.RFC3339, req.DateFrom)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_from: must be RFC3339")
		}
		filter.DateFrom = &t
	}
	if req.DateTo != "" {
		t, err := time.Parse(time.RFC3339, req.DateTo)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_to: must be RFC3339")
		}
		filter.DateTo = &t
	}

	results, err := s.search.Search(c.Request().Context(), retrieve.Query{
		Text:   req.Query,
		Filter: filter,
		TopK:   req.TopK,
	})
	if err != nil {
		return mapError(err)
	}

	searchType := "vector"
	if req.UseHybrid {
		searchType = "hybrid"
	}

	items := make([]searchResultItem, len(results))
	for i, r := range results {
		items[i] = searchResultItem{
			Text:       r.Text,
			Score:      r.Score,
			ChunkIndex: r.ChunkIndex,
			Provenance: searchResultProvenance{
				FileName:    r.Document.Provenance.FileName,
				FileID:      r.Document.Provenance.FileID,
				VersionHash: r.Document.ContentHash,
				RevisionID:  r.Document.Provenance.RevisionID,
				ModifiedAt:  r.Document.ModifiedAt.Format(time.RFC3339),
				UploadedAt:  r.Document.UploadedAt.Format(time.RFC3339),
				DriveLink:   r.Document.Provenance.DriveLink,
				Source:      string(r.Document.Source),
			},
		}
	}

	return c.JSON(http.StatusOK, searchResponse{
		Query:      req.Query,
		Results:    items,
		Total:      len(items),
		SearchType: searchType,
	})
}
