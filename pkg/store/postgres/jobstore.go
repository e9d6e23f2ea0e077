// Package postgres is the production store.JobStore/DocumentStore/BlobStore
// adapter, backed by raw SQL over database/sql + the pgx stdlib driver
// (no ORM: see DESIGN.md for why ent was dropped in favor of this).
package postgres

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// JobStore is a postgres-backed store.JobStore.
type JobStore struct {
	db *stdsql.DB
}

// NewJobStore wraps a connection pool. Migrations are applied by
// pkg/database.NewClient before this is constructed.
func NewJobStore(db *stdsql.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, j *job.Job) (*job.Job, error) {
	if j.ID == "" {
		j.ID = NewJobID()
	}
	specJSON, err := json.Marshal(j.Spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}

	const q = `
		INSERT INTO jobs (id, spec, status, progress, logs, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '[]', now(), now())
		ON CONFLICT (id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, q, j.ID, specJSON, job.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, j.ID)
}

func (s *JobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	const q = `
		SELECT id, spec, status, progress, logs, result, error, created_at, updated_at
		FROM jobs WHERE id = $1`
	row := s.db.QueryRowContext(ctx, q, id)
	j, err := scanJob(row)
	if err == stdsql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return j, err
}

func (s *JobStore) ClaimQueued(ctx context.Context, limit int) ([]*job.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQ = `
		SELECT id FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`
	rows, err := tx.QueryContext(ctx, selectQ, job.StatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("select queued jobs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	const updateQ = `UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, updateQ, job.StatusRunning, id); err != nil {
			return nil, fmt.Errorf("claim job %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	claimed := make([]*job.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, j)
	}
	return claimed, nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id string, expectedStatus job.Status, newStatus job.Status, progress float64, logMessage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current job.Status
	var logsRaw []byte
	const selectQ = `SELECT status, logs FROM jobs WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, selectQ, id).Scan(&current, &logsRaw); err != nil {
		if err == stdsql.ErrNoRows {
			return store.ErrNotFound
		}
		return fmt.Errorf("select job: %w", err)
	}
	if expectedStatus != "" && current != expectedStatus {
		return store.ErrConflict
	}

	var logs []job.LogEntry
	if err := json.Unmarshal(logsRaw, &logs); err != nil {
		return fmt.Errorf("unmarshal logs: %w", err)
	}
	logs = append(logs, job.LogEntry{Timestamp: time.Now(), Message: logMessage})
	newLogsRaw, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}

	const updateQ = `
		UPDATE jobs
		SET status = $1, progress = GREATEST(progress, $2), logs = $3, updated_at = now()
		WHERE id = $4`
	if _, err := tx.ExecContext(ctx, updateQ, newStatus, progress, newLogsRaw, id); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return tx.Commit()
}

func (s *JobStore) Complete(ctx context.Context, id string, status job.Status, logMessage string, result map[string]any, errMessage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var logsRaw []byte
	if err := tx.QueryRowContext(ctx, `SELECT logs FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&logsRaw); err != nil {
		if err == stdsql.ErrNoRows {
			return store.ErrNotFound
		}
		return fmt.Errorf("select job: %w", err)
	}
	var logs []job.LogEntry
	if err := json.Unmarshal(logsRaw, &logs); err != nil {
		return fmt.Errorf("unmarshal logs: %w", err)
	}
	logs = append(logs, job.LogEntry{Timestamp: time.Now(), Message: logMessage})
	newLogsRaw, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	resultRaw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	progress := 0.0
	if status == job.StatusSucceeded {
		progress = 1.0
	}

	const updateQ = `
		UPDATE jobs
		SET status = $1, progress = GREATEST(progress, $2), logs = $3, result = $4, error = $5, updated_at = now()
		WHERE id = $6`
	if _, err := tx.ExecContext(ctx, updateQ, status, progress, newLogsRaw, resultRaw, errMessage, id); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return tx.Commit()
}

func (s *JobStore) Cancel(ctx context.Context, id string) error {
	const q = `
		UPDATE jobs
		SET status = $1, updated_at = now(),
		    logs = logs || jsonb_build_array(jsonb_build_object('timestamp', now(), 'message', 'cancellation requested'))
		WHERE id = $2 AND status NOT IN ($3, $4, $5)`
	_, err := s.db.ExecContext(ctx, q, job.StatusCancelled, id, job.StatusSucceeded, job.StatusFailed, job.StatusCancelled)
	return err
}

func scanJob(row *stdsql.Row) (*job.Job, error) {
	var j job.Job
	var specRaw, logsRaw []byte
	var resultRaw []byte
	var errMsg stdsql.NullString

	if err := row.Scan(&j.ID, &specRaw, &j.Status, &j.Progress, &logsRaw, &resultRaw, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(specRaw, &j.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	if len(logsRaw) > 0 {
		if err := json.Unmarshal(logsRaw, &j.Logs); err != nil {
			return nil, fmt.Errorf("unmarshal logs: %w", err)
		}
	}
	if len(resultRaw) > 0 {
		if err := json.Unmarshal(resultRaw, &j.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	j.Error = errMsg.String
	return &j, nil
}

// NewJobID allocates a date-prefixed + random-suffix id, matching the
// memstore adapter's scheme so ids are backend-independent.
func NewJobID() string {
	return randomJobID(time.Now())
}
