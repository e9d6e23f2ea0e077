// Package job defines the Job data model and stage DAGs described in
// spec.md §3 and §4.4: a job spec routed through a sequence of worker
// calls, with append-only logs and monotonically non-decreasing progress.
package job

import "time"

// Type enumerates the job types the orchestrator knows how to run.
type Type string

const (
	TypeResearchAndExport Type = "research-and-export"
	TypeDataPipeline      Type = "data-pipeline"
	TypeRAGIngest         Type = "rag-ingest"
	TypeVerification      Type = "verification"
	TypeCustom            Type = "custom"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether status is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Spec is the caller-supplied job request body (POST /start_job).
type Spec struct {
	JobID        string         `json:"job_id,omitempty"`
	Type         Type           `json:"type"`
	Query        string         `json:"query,omitempty"`
	Deliverables []string       `json:"deliverables,omitempty"`
	Sources      []string       `json:"sources,omitempty"`
	Verify       bool           `json:"verify"`
	UserPrefs    map[string]any `json:"user_prefs,omitempty"`
	Stages       []string       `json:"stages,omitempty"` // only honored for TypeCustom
}

// LogEntry is one append-only entry in a job's log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Job is the persisted record an orchestrator owns end to end.
type Job struct {
	ID        string         `json:"id"`
	Spec      Spec           `json:"spec"`
	Status    Status         `json:"status"`
	Progress  float64        `json:"progress"`
	Logs      []LogEntry     `json:"logs"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Claim is the research→verification provenance contract named in
// spec.md §9's third Open Question: the researcher façade emits claims
// with the source ids that back them, and the verifier façade's report
// echoes the same Sources field back per claim so a verdict can always be
// traced to its citations.
type Claim struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources,omitempty"`
}
