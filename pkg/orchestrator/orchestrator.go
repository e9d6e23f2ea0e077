// Package orchestrator drives one claimed job.Job through its stage DAG,
// calling each stage's worker façade, persisting progress, and observing
// cancellation between stages, per spec.md §4.4. Grounded on the
// teacher's pkg/queue worker/pool shape generalized from "execute a
// chat session" to "execute a stage DAG", and pkg/services/session_service.go's
// atomic field-update pattern for the progress/log append-only semantics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nnmtech/verisynthos/pkg/events"
	"github.com/nnmtech/verisynthos/pkg/facade/monitor"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/store"
	"github.com/nnmtech/verisynthos/pkg/worker"
)

// StageRequest is the JSON body POSTed to a stage's worker façade.
type StageRequest struct {
	JobID    string         `json:"job_id"`
	Spec     job.Spec       `json:"spec"`
	Previous map[string]any `json:"previous,omitempty"` // accumulated result so far, for stages that build on earlier ones
}

// StageResponse is the structured response every worker façade returns.
type StageResponse struct {
	Result map[string]any `json:"result,omitempty"`
	Claims []job.Claim    `json:"claims,omitempty"`
}

// Orchestrator runs a job's stage DAG to completion, failure, or
// cancellation.
type Orchestrator struct {
	Jobs    store.JobStore
	Workers *worker.Registry
	// Events is optional: a nil Events skips publishing (unit tests need
	// not wire a bus to exercise the DAG).
	Events *events.Publisher
	// Monitor is optional: a nil Monitor skips the per-stage health note.
	Monitor *monitor.Facade
}

// New returns an Orchestrator bound to jobs and workers, with no events
// publisher wired. Use WithEvents to attach one.
func New(jobs store.JobStore, workers *worker.Registry) *Orchestrator {
	return &Orchestrator{Jobs: jobs, Workers: workers}
}

// WithEvents attaches an events.Publisher and returns o for chaining.
func (o *Orchestrator) WithEvents(pub *events.Publisher) *Orchestrator {
	o.Events = pub
	return o
}

// WithMonitor attaches a monitor.Facade and returns o for chaining.
func (o *Orchestrator) WithMonitor(m *monitor.Facade) *Orchestrator {
	o.Monitor = m
	return o
}

// monitorNote asks the monitor façade for a health note and appends it to
// logMsg, swallowing any failure: a monitor outage never aborts a job.
func (o *Orchestrator) monitorNote(ctx context.Context, j *job.Job, stage job.Stage, status, logMsg string) string {
	if o.Monitor == nil {
		return logMsg
	}
	note, err := o.Monitor.Note(ctx, j, stage, status)
	if err != nil {
		slog.Warn("monitor note failed", "job_id", j.ID, "stage", stage, "error", err)
		return logMsg
	}
	return logMsg + "; monitor: " + note
}

func (o *Orchestrator) publishStage(jobID string, stage job.Stage, status, message string) {
	if o.Events == nil {
		return
	}
	o.Events.PublishStageStatus(events.StageStatusPayload{JobID: jobID, Stage: string(stage), Status: status, Message: message})
}

func (o *Orchestrator) publishJob(jobID string, status job.Status, progress float64, message string) {
	if o.Events == nil {
		return
	}
	o.Events.PublishJobStatus(events.JobStatusPayload{JobID: jobID, Status: string(status), Progress: progress, Message: message})
}

// Run drives j through its type's stage DAG, per spec.md §4.4. It never
// returns an error to the caller: every terminal outcome (succeeded,
// failed, cancelled) is recorded on the job record itself, which is the
// dispatcher's only observation point.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job) {
	log := slog.With("job_id", j.ID, "type", j.Spec.Type)

	steps, ok := resolveDAG(j.Spec)
	if !ok {
		log.Warn("no DAG for job type or custom job has no stages")
		if err := o.Jobs.Complete(ctx, j.ID, job.StatusFailed, "unknown job type or missing stages", nil, "not_implemented"); err != nil {
			log.Error("failed to record not_implemented failure", "error", err)
		}
		return
	}

	result := make(map[string]any)
	var claims []job.Claim
	for _, step := range steps {
		current, err := o.Jobs.Get(ctx, j.ID)
		if err != nil {
			log.Error("failed to read job before stage", "stage", step.Stage, "error", err)
			return
		}
		if current.Status == job.StatusCancelled {
			log.Info("job cancelled, aborting remaining stages", "stage", step.Stage)
			return
		}

		if step.Optional && !shouldRunOptionalStage(step.Stage, j.Spec) {
			continue
		}

		o.publishStage(j.ID, step.Stage, events.StageStarted, "")

		req := StageRequest{JobID: j.ID, Spec: j.Spec, Previous: result}
		var resp StageResponse
		if err := o.Workers.Call(ctx, step.Stage, req, &resp); err != nil {
			msg := fmt.Sprintf("stage %q failed: %v", step.Stage, err)
			log.Error("stage failed, aborting job", "stage", step.Stage, "error", err)
			o.publishStage(j.ID, step.Stage, events.StageFailed, err.Error())
			if compErr := o.Jobs.Complete(ctx, j.ID, job.StatusFailed, msg, result, err.Error()); compErr != nil {
				log.Error("failed to record stage failure", "error", compErr)
			}
			o.publishJob(j.ID, job.StatusFailed, current.Progress, msg)
			return
		}

		for k, v := range resp.Result {
			result[k] = v
		}
		if len(resp.Claims) > 0 {
			claims = append(claims, resp.Claims...)
			result["claims"] = claims
		}

		logMsg := fmt.Sprintf("stage %q completed", step.Stage)
		logMsg = o.monitorNote(ctx, current, step.Stage, "completed", logMsg)
		if err := o.Jobs.UpdateProgress(ctx, j.ID, job.StatusRunning, job.StatusRunning, step.ProgressOnDone, logMsg); err != nil {
			if errors.Is(err, store.ErrConflict) {
				log.Info("job status changed concurrently, aborting remaining stages", "stage", step.Stage)
				return
			}
			log.Error("failed to record stage progress", "stage", step.Stage, "error", err)
			return
		}
		o.publishStage(j.ID, step.Stage, events.StageCompleted, "")
		o.publishJob(j.ID, job.StatusRunning, step.ProgressOnDone, logMsg)
	}

	if err := o.Jobs.Complete(ctx, j.ID, job.StatusSucceeded, "job completed", result, ""); err != nil {
		log.Error("failed to record job completion", "error", err)
	}
	o.publishJob(j.ID, job.StatusSucceeded, 1.0, "job completed")
}

// resolveDAG returns the stage steps for spec, handling TypeCustom's
// caller-supplied stage list.
func resolveDAG(spec job.Spec) ([]job.StageStep, bool) {
	if spec.Type == job.TypeCustom {
		return job.ResolveCustomDAG(spec.Stages)
	}
	return job.DAG(spec.Type)
}

// shouldRunOptionalStage decides whether an optional DAG step runs for
// this spec. Ingest runs only when the job names sources to ingest;
// Verify runs only when spec.Verify is set, both per spec.md §4.4's DAG
// description.
func shouldRunOptionalStage(stage job.Stage, spec job.Spec) bool {
	switch stage {
	case job.StageVerify:
		return spec.Verify
	case job.StageIngest:
		return len(spec.Sources) > 0
	default:
		return true
	}
}
