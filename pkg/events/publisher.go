package events

import (
	"encoding/json"
	"log/slog"
)

// Event type discriminators, mirroring the teacher's EventType* constants
// but trimmed to the two lifecycle signals the orchestrator actually
// produces (no timeline/chat/streaming-token events in this domain).
const (
	EventTypeJobStatus   = "job.status"
	EventTypeStageStatus = "stage.status"
)

// Stage lifecycle status values, matching job.Status where the stage
// outcome maps onto a job status and adding the two stage-only states.
const (
	StageStarted   = "started"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// JobStatusPayload describes a job-level status transition.
type JobStatusPayload struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// StageStatusPayload describes a single stage's lifecycle transition
// within a job's DAG.
type StageStatusPayload struct {
	JobID   string `json:"job_id"`
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Publisher wraps a Bus with typed publish methods, mirroring the
// teacher's EventPublisher (PublishSessionStatus, PublishStageStatus, ...)
// generalized from session/timeline events to job/stage events. Every
// call is best-effort: a marshal failure is logged and dropped rather
// than returned, since publish failures must never abort job execution.
type Publisher struct {
	bus *Bus
}

// NewPublisher returns a Publisher backed by bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

// PublishJobStatus broadcasts payload to the job's own channel and to the
// global JobsChannel, mirroring the teacher's dual session/global-channel
// broadcast for PublishSessionStatus.
func (p *Publisher) PublishJobStatus(payload JobStatusPayload) {
	m, err := toPayloadMap(payload)
	if err != nil {
		slog.Error("events: failed to marshal job status payload", "job_id", payload.JobID, "error", err)
		return
	}
	evt := Event{Type: EventTypeJobStatus, Payload: m}
	p.bus.Publish(JobChannel(payload.JobID), evt)
	p.bus.Publish(JobsChannel, evt)
}

// PublishStageStatus broadcasts payload to the job's channel only —
// per-stage detail is not interesting to a global dashboard observer.
func (p *Publisher) PublishStageStatus(payload StageStatusPayload) {
	m, err := toPayloadMap(payload)
	if err != nil {
		slog.Error("events: failed to marshal stage status payload", "job_id", payload.JobID, "stage", payload.Stage, "error", err)
		return
	}
	p.bus.Publish(JobChannel(payload.JobID), Event{Type: EventTypeStageStatus, Payload: m})
}

func toPayloadMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
