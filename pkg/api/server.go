// Package api provides the HTTP surface for the research-and-analysis
// platform: job control, ingestion, search, soft delete, and the
// watch/webhook connector endpoints named in spec.md §6.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/nnmtech/verisynthos/pkg/config"
	"github.com/nnmtech/verisynthos/pkg/ingest"
	"github.com/nnmtech/verisynthos/pkg/ingest/localfs"
	"github.com/nnmtech/verisynthos/pkg/queue"
	"github.com/nnmtech/verisynthos/pkg/retrieve"
	"github.com/nnmtech/verisynthos/pkg/store"
	"github.com/nnmtech/verisynthos/pkg/version"
)

// bodyLimit bounds request bodies the router accepts before an ingest or
// search body is deserialized.
const bodyLimit = 10 * 1024 * 1024 // 10 MB

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg        *config.Config
	jobs       store.JobStore
	documents  store.DocumentStore
	dispatcher *queue.Dispatcher
	search     *retrieve.Engine
	pipeline   *ingest.Pipeline
	localSrc   *localfs.Source

	pushWatcher  *ingest.PushWatcher        // nil if no push-notification provider configured
	mailPoller   *ingest.MailPoller         // nil if no mail connector configured
	fileWatchers *ingest.FilesystemWatcherRegistry
}

// NewServer creates an API server wired to the required services. Optional
// watch/webhook services are attached afterward via the Set* methods.
func NewServer(
	cfg *config.Config,
	jobs store.JobStore,
	documents store.DocumentStore,
	dispatcher *queue.Dispatcher,
	search *retrieve.Engine,
	pipeline *ingest.Pipeline,
) *Server {
	e := echo.New()

	s := &Server{
		echo:       e,
		cfg:        cfg,
		jobs:       jobs,
		documents:  documents,
		dispatcher: dispatcher,
		search:     search,
		pipeline:   pipeline,
		localSrc:   localfs.New(),
	}

	s.setupRoutes()
	return s
}

// SetPushWatcher attaches the Drive/GCS push-notification registry backing
// POST /watch/start and POST /webhook/{drive,gcs}.
func (s *Server) SetPushWatcher(w *ingest.PushWatcher) {
	s.pushWatcher = w
}

// SetMailPoller attaches the mail-inbox poller backing POST /watch/email.
func (s *Server) SetMailPoller(p *ingest.MailPoller) {
	s.mailPoller = p
}

// SetFileWatchers attaches the fileshare poller registry backing
// POST/DELETE/GET /watch/fileshare.
func (s *Server) SetFileWatchers(r *ingest.FilesystemWatcherRegistry) {
	s.fileWatchers = r
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(bodyLimit))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/start_job", s.startJobHandler)
	s.echo.GET("/job_status/:id", s.jobStatusHandler)
	s.echo.POST("/cancel_job/:id", s.cancelJobHandler)

	s.echo.POST("/ingest", s.ingestHandler)
	s.echo.POST("/search", s.searchHandler)
	s.echo.DELETE("/doc/:id", s.deleteDocHandler)

	s.echo.POST("/watch/start", s.watchStartHandler)
	s.echo.POST("/watch/email", s.watchEmailHandler)
	s.echo.POST("/watch/fileshare", s.watchFileshareStartHandler)
	s.echo.DELETE("/watch/fileshare/:id", s.watchFileshareStopHandler)
	s.echo.GET("/watch/fileshare", s.watchFileshareListHandler)

	s.echo.POST("/webhook/drive", s.webhookDriveHandler)
	s.echo.POST("/webhook/gcs", s.webhookGCSHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by tests that need an OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	_, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
		Config: ConfigurationStats{
			SoftDeleteRetentionDays: s.cfg.SoftDeleteRetentionDays,
			HybridSearchEnabled:     s.cfg.EnableHybridSearch,
			MakerK:                  s.cfg.MakerK,
		},
	}
	return c.JSON(http.StatusOK, resp)
}
