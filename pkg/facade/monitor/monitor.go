// Package monitor is the (NEW, supplemented) MAKER-wrapped monitor façade,
// grounded on agents.monitor.agent.py from original_source/ — the original
// registers a monitor agent that watches the whole pipeline for health and
// anomalies. SPEC_FULL.md narrows this to a thin summarizer the
// orchestrator calls in-process after each stage transition, writing its
// note straight into job.logs rather than standing up the original's
// separate dashboards/alerting store.
//
// Unlike the other façades in pkg/facade, monitor has no HTTP Handler: it
// is not one of the DAG's worker stages and so is never dispatched through
// pkg/worker.Registry. The orchestrator holds a *Facade directly and calls
// Note after every stage transition.
package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/maker"
)

// note is what the Sampler must produce, parsed and voted on by MAKER.
type note struct {
	Note string `json:"note"`
}

// Facade wraps a Sampler capability with the monitor's prompt and parser.
type Facade struct {
	Sampler maker.Sampler
	Params  maker.Params
}

// New returns a Facade calling sampler with params.
func New(sampler maker.Sampler, params maker.Params) *Facade {
	return &Facade{Sampler: sampler, Params: params}
}

// Note summarizes j's timeline plus the stage transition just observed
// into a one-line health/anomaly note, for the caller to append to
// j.logs. A failure to produce a note is never treated as fatal by the
// orchestrator; callers should log and continue rather than abort a job
// over a monitor failure.
func (f *Facade) Note(ctx context.Context, j *job.Job, stage job.Stage, status string) (string, error) {
	input := maker.TaskInput{
		Prompt:   prompt(j, stage, status),
		Metadata: map[string]any{"job_id": j.ID, "stage": string(stage), "status": status},
	}
	result, err := maker.FirstToAheadByK(ctx, input, f.Sampler, parseNote, f.Params)
	if err != nil {
		return "", err
	}
	return result.Note, nil
}

func prompt(j *job.Job, stage job.Stage, status string) string {
	var recent strings.Builder
	for _, entry := range lastLogs(j.Logs, 5) {
		recent.WriteString("- " + entry.Message + "\n")
	}
	return fmt.Sprintf(
		"Summarize this job's health in one short sentence, flagging any anomaly. "+
			"Job %s just transitioned stage %q to %q.\n\nRecent log:\n%s",
		j.ID, stage, status, recent.String(),
	)
}

func lastLogs(logs []job.LogEntry, n int) []job.LogEntry {
	if len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

var strictNote = maker.StrictJSONParser[note]()

func parseNote(raw string) (note, error) {
	n, err := strictNote(raw)
	if err != nil {
		return note{}, err
	}
	if strings.TrimSpace(n.Note) == "" {
		return note{}, apperrors.New(apperrors.RedFlag, "monitor: empty note")
	}
	return n, nil
}
