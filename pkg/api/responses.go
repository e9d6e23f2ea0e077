package api

import "github.com/nnmtech/verisynthos/pkg/job"

// startJobResponse is returned by POST /start_job, per spec.md §6.
type startJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// jobStatusResponse is returned by GET /job_status/:id, per spec.md §6.
type jobStatusResponse struct {
	JobID    string         `json:"job_id"`
	Status   job.Status     `json:"status"`
	Progress float64        `json:"progress"`
	Logs     []job.LogEntry `json:"logs"`
	Result   map[string]any `json:"result,omitempty"`
}

// cancelJobResponse is returned by POST /cancel_job/:id.
type cancelJobResponse struct {
	Status string `json:"status"`
}

// ingestResponse is returned by POST /ingest, per spec.md §6.
type ingestResponse struct {
	Status        string `json:"status"`
	FilesProcessed int   `json:"files_processed"`
	Chunks        int    `json:"chunks"`
	Timestamp     string `json:"timestamp"`
}

// searchResultProvenance mirrors spec.md §6's search result provenance
// shape.
type searchResultProvenance struct {
	FileName   string `json:"file_name"`
	FileID     string `json:"file_id"`
	VersionHash string `json:"version_hash"`
	RevisionID string `json:"revision_id,omitempty"`
	ModifiedAt string `json:"modified_at"`
	UploadedAt string `json:"uploaded_at"`
	DriveLink  string `json:"drive_link,omitempty"`
	Source     string `json:"source"`
}

// searchResultItem is one entry of POST /search's results array.
type searchResultItem struct {
	Text       string                  `json:"text"`
	Score      float64                 `json:"score"`
	ChunkIndex int                     `json:"chunk_index"`
	Provenance searchResultProvenance  `json:"provenance"`
}

// searchResponse is returned by POST /search, per spec.md §6.
type searchResponse struct {
	Query      string              `json:"query"`
	Results    []searchResultItem  `json:"results"`
	Total      int                 `json:"total"`
	SearchType string              `json:"search_type"`
}

// deleteDocResponse is returned by DELETE /doc/:id, per spec.md §6.
type deleteDocResponse struct {
	Status        string `json:"status"`
	Permanent     bool   `json:"permanent"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// watchStartResponse is returned by POST /watch/start.
type watchStartResponse struct {
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
}

// watchEmailResponse is returned by POST /watch/email.
type watchEmailResponse struct {
	AttachmentsIngested int `json:"attachments_ingested"`
}

// watchFileshareResponse is returned by POST /watch/fileshare.
type watchFileshareResponse struct {
	WatcherID string `json:"watcher_id"`
	Status    string `json:"status"`
}

// watchFileshareListResponse is returned by GET /watch/fileshare.
type watchFileshareListResponse struct {
	Watchers []watchFileshareInfo `json:"watchers"`
}

type watchFileshareInfo struct {
	WatcherID       string `json:"watcher_id"`
	Pattern         string `json:"pattern"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// webhookResponse is returned by POST /webhook/{drive,gcs}.
type webhookResponse struct {
	Status string `json:"status"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Config  ConfigurationStats `json:"config"`
}

// ConfigurationStats summarizes a few operator-relevant config values, the
// way the teacher's health handler reports Agents/Chains/MCPServers counts.
type ConfigurationStats struct {
	SoftDeleteRetentionDays int  `json:"soft_delete_retention_days"`
	HybridSearchEnabled     bool `json:"hybrid_search_enabled"`
	MakerK                  int  `json:"maker_k"`
}
