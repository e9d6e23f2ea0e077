package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
)

// webhookDriveHandler handles POST /webhook/drive: a Drive push
// notification identifying the channel that fired.
func (s *Server) webhookDriveHandler(c *echo.Context) error {
	return s.handleWebhook(c)
}

// webhookGCSHandler handles POST /webhook/gcs: a GCS push notification
// identifying the channel that fired. Drive and GCS notifications share
// pkg/ingest.PushWatcher's channel registry, so both routes resolve to the
// same Notify call — the provider only determined how the channel was
// originally registered.
func (s *Server) webhookGCSHandler(c *echo.Context) error {
	return s.handleWebhook(c)
}

func (s *Server) handleWebhook(c *echo.Context) error {
	if s.pushWatcher == nil {
		return mapError(apperrors.New(apperrors.PermanentIO, "no push-notification provider configured"))
	}

	var req webhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ChannelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel_id is required")
	}

	s.pushWatcher.Notify(c.Request().Context(), req.ChannelID)
	return c.JSON(http.StatusOK, webhookResponse{Status: "accepted"})
}
