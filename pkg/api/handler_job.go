package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nnmtech/verisynthos/pkg/job"
)

// startJobHandler handles POST /start_job. The dispatcher's own poll loop
// picks up the newly queued job; this handler only persists it.
func (s *Server) startJobHandler(c *echo.Context) error {
	var req startJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type is required")
	}

	spec := job.Spec{
		JobID:        req.JobID,
		Type:         req.Type,
		Query:        req.Query,
		Deliverables: req.Deliverables,
		Sources:      req.Sources,
		Verify:       req.Verify,
		UserPrefs:    req.UserPrefs,
	}

	j, err := s.jobs.Create(c.Request().Context(), &job.Job{Spec: spec})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusAccepted, startJobResponse{JobID: j.ID, Status: string(job.StatusQueued)})
}

// jobStatusHandler handles GET /job_status/:id.
func (s *Server) jobStatusHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "job id is required")
	}

	j, err := s.jobs.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, jobStatusResponse{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Logs:     j.Logs,
		Result:   j.Result,
	})
}

// cancelJobHandler handles POST /cancel_job/:id. It tries both
// cancellation paths — the in-process dispatcher interrupt (for a job
// running on this instance) and the durable store flag (observed by any
// dispatcher instance between stages) — mirroring the teacher's
// cancelSessionHandler pattern of trying every available path and
// succeeding if any of them applies.
func (s *Server) cancelJobHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "job id is required")
	}

	storeErr := s.jobs.Cancel(c.Request().Context(), id)
	if s.dispatcher != nil {
		s.dispatcher.CancelJob(id)
	}

	if storeErr != nil {
		return mapError(storeErr)
	}

	return c.JSON(http.StatusOK, cancelJobResponse{Status: string(job.StatusCancelled)})
}
