package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/ingest"
)

// watchStartHandler handles POST /watch/start: registers a push-
// notification channel with pkg/ingest.PushWatcher, which takes over
// renewal (at 50% of the channel's remaining TTL) and re-enumeration on
// notification from there.
func (s *Server) watchStartHandler(c *echo.Context) error {
	if s.pushWatcher == nil {
		return mapError(apperrors.New(apperrors.PermanentIO, "no push-notification provider configured"))
	}

	var req watchStartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ChannelID == "" || req.FolderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel_id and folder_id are required")
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	s.pushWatcher.Register(ingest.PushChannel{
		ID:          req.ChannelID,
		FolderID:    req.FolderID,
		WebhookAddr: req.WebhookAddr,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	})

	return c.JSON(http.StatusOK, watchStartResponse{ChannelID: req.ChannelID, Status: "watching"})
}

// watchEmailHandler handles POST /watch/email: runs one poll of the
// configured mail connector immediately, ingesting every attachment from
// currently-matching messages.
func (s *Server) watchEmailHandler(c *echo.Context) error {
	if s.mailPoller == nil {
		return mapError(apperrors.New(apperrors.PermanentIO, "no mail connector configured"))
	}

	outcomes, err := s.mailPoller.PollOnce(c.Request().Context())
	if err != nil {
		return mapError(apperrors.Wrap(apperrors.TransientIO, "polling mail connector", err))
	}

	return c.JSON(http.StatusOK, watchEmailResponse{AttachmentsIngested: len(outcomes)})
}

// watchFileshareStartHandler handles POST /watch/fileshare.
func (s *Server) watchFileshareStartHandler(c *echo.Context) error {
	if s.fileWatchers == nil {
		return mapError(apperrors.New(apperrors.PermanentIO, "no fileshare watcher registry configured"))
	}

	var req watchFileshareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Pattern == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "pattern is required")
	}

	interval := time.Duration(req.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	id := s.fileWatchers.Start(c.Request().Context(), req.Pattern, interval)
	return c.JSON(http.StatusOK, watchFileshareResponse{WatcherID: id, Status: "watching"})
}

// watchFileshareStopHandler handles DELETE /watch/fileshare/:id.
func (s *Server) watchFileshareStopHandler(c *echo.Context) error {
	if s.fileWatchers == nil {
		return mapError(apperrors.New(apperrors.PermanentIO, "no fileshare watcher registry configured"))
	}

	id := c.Param("id")
	if !s.fileWatchers.Stop(id) {
		return echo.NewHTTPError(http.StatusNotFound, "watcher not found")
	}
	return c.JSON(http.StatusOK, watchFileshareResponse{WatcherID: id, Status: "stopped"})
}

// watchFileshareListHandler handles GET /watch/fileshare.
func (s *Server) watchFileshareListHandler(c *echo.Context) error {
	if s.fileWatchers == nil {
		return c.JSON(http.StatusOK, watchFileshareListResponse{Watchers: []watchFileshareInfo{}})
	}

	infos := s.fileWatchers.List()
	out := make([]watchFileshareInfo, len(infos))
	for i, info := range infos {
		out[i] = watchFileshareInfo{
			WatcherID:       info.WatcherID,
			Pattern:         info.Pattern,
			IntervalSeconds: int(info.Interval / time.Second),
		}
	}
	return c.JSON(http.StatusOK, watchFileshareListResponse{Watchers: out})
}
