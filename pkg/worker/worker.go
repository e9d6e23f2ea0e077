// Package worker implements the named worker-URL registry and HTTP
// dispatch client the orchestrator uses to call per-stage façades, per
// spec.md §4.4: "Every call is an HTTP POST to a registered worker URL
// with a JSON body, a 300-second ceiling, and structured response
// parsing." Grounded on the teacher's pkg/mcp/client_factory.go +
// router.go (named-endpoint registry, per-call timeout, health tracking)
// generalized from MCP tool routing to worker-URL routing.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/job"
)

// CallTimeout is the HTTP ceiling per spec.md §4.4's "300-second ceiling."
const CallTimeout = 300 * time.Second

// Status is the last-observed health of a registered worker, mirroring
// the teacher's HealthStatus shape (pkg/mcp/health.go).
type Status struct {
	Stage     job.Stage `json:"stage"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}

// Registry maps a job.Stage to the HTTP endpoint that serves it and
// dispatches POST requests with a structured JSON body, recording the
// health outcome of each call.
type Registry struct {
	client *http.Client

	mu       sync.RWMutex
	urls     map[job.Stage]string
	statuses map[job.Stage]*Status
}

// NewRegistry returns an empty Registry. urls is typically populated from
// config (one URL per worker, per spec.md §6).
func NewRegistry() *Registry {
	return &Registry{
		client:   &http.Client{Timeout: CallTimeout},
		urls:     make(map[job.Stage]string),
		statuses: make(map[job.Stage]*Status),
	}
}

// Register binds stage to url, overwriting any previous binding.
func (r *Registry) Register(stage job.Stage, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls[stage] = url
}

// Call POSTs req as JSON to stage's registered URL and decodes the
// response body into resp. A non-2xx response aborts the job per
// spec.md §4.4 ("Non-2xx responses abort the job as FAILED with the
// upstream error recorded in logs"), surfaced as a PermanentIO error so
// the orchestrator does not retry it at the stage level.
func (r *Registry) Call(ctx context.Context, stage job.Stage, req, resp any) error {
	r.mu.RLock()
	url, ok := r.urls[stage]
	r.mu.RUnlock()
	if !ok {
		return apperrors.New(apperrors.Invariant, fmt.Sprintf("no worker registered for stage %q", stage))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return apperrors.Wrap(apperrors.Invariant, "encoding worker request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.Invariant, "building worker request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			r.setStatus(stage, false, ctx.Err().Error())
			return apperrors.Wrap(apperrors.Cancelled, fmt.Sprintf("worker call to %q cancelled", stage), ctx.Err())
		}
		r.setStatus(stage, false, err.Error())
		return apperrors.Wrap(apperrors.TransientIO, fmt.Sprintf("calling worker %q", stage), err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		r.setStatus(stage, false, err.Error())
		return apperrors.Wrap(apperrors.TransientIO, fmt.Sprintf("reading worker %q response", stage), err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		r.setStatus(stage, false, fmt.Sprintf("HTTP %d", httpResp.StatusCode))
		return apperrors.Wrap(apperrors.PermanentIO, fmt.Sprintf("worker %q returned HTTP %d: %s", stage, httpResp.StatusCode, payload), nil)
	}

	if resp != nil {
		if err := json.Unmarshal(payload, resp); err != nil {
			r.setStatus(stage, false, err.Error())
			return apperrors.Wrap(apperrors.PermanentIO, fmt.Sprintf("decoding worker %q response", stage), err)
		}
	}

	r.setStatus(stage, true, "")
	return nil
}

func (r *Registry) setStatus(stage job.Stage, healthy bool, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[stage] = &Status{Stage: stage, Healthy: healthy, LastCheck: time.Now(), Error: errMsg}
}

// Statuses returns a snapshot of every stage's last-observed health.
func (r *Registry) Statuses() map[job.Stage]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[job.Stage]Status, len(r.statuses))
	for k, v := range r.statuses {
		out[k] = *v
	}
	return out
}
