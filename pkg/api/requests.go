package api

import "github.com/nnmtech/verisynthos/pkg/job"

// startJobRequest is the HTTP request body for POST /start_job, per
// spec.md §6.
type startJobRequest struct {
	JobID        string         `json:"job_id,omitempty"`
	Type         job.Type       `json:"type"`
	Query        string         `json:"query,omitempty"`
	Deliverables []string       `json:"deliverables,omitempty"`
	Sources      []string       `json:"sources,omitempty"`
	Verify       bool           `json:"verify"`
	UserPrefs    map[string]any `json:"user_prefs,omitempty"`
}

// ingestRequest is the HTTP request body for POST /ingest: exactly one of
// FolderID, GCSURI, LocalPath should be set, per spec.md §6.
type ingestRequest struct {
	FolderID  string `json:"folder_id,omitempty"`
	GCSURI    string `json:"gcs_uri,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Recursive bool   `json:"recursive,omitempty"`
}

// searchRequest is the HTTP request body for POST /search, per spec.md §6.
type searchRequest struct {
	Query       string     `json:"query"`
	FolderIDs   []string `json:"folder_ids,omitempty"`
	MimeTypes   []string `json:"mime_types,omitempty"`
	DateFrom    string   `json:"date_from,omitempty"` // RFC3339
	DateTo      string   `json:"date_to,omitempty"`   // RFC3339
	VersionHash string   `json:"version_hash,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	UseHybrid   bool     `json:"use_hybrid"`
}

// deleteDocRequest is the HTTP request body for DELETE /doc/:id.
type deleteDocRequest struct {
	Permanent bool `json:"permanent,omitempty"`
}

// watchStartRequest registers a push-notification channel for a folder,
// backing POST /watch/start (grounded on pkg/ingest.PushChannel).
type watchStartRequest struct {
	ChannelID   string `json:"channel_id"`
	FolderID    string `json:"folder_id"`
	WebhookAddr string `json:"webhook_addr"`
	TTLSeconds  int    `json:"ttl_seconds"`
}

// watchFileshareRequest registers a filesystem poller, backing
// POST /watch/fileshare.
type watchFileshareRequest struct {
	Pattern         string `json:"pattern"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
}

// webhookRequest is the push-notification payload delivered to
// POST /webhook/{drive,gcs}; providers vary in envelope shape, but all of
// them identify the channel that fired.
type webhookRequest struct {
	ChannelID string `json:"channel_id"`
}
