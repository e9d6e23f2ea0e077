package ingest

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// DefaultMaxAttempts is the retry budget named in spec.md §4.2 before a
// file is recorded as a FailedIngest.
const DefaultMaxAttempts = 5

// baseBackoff and maxBackoff bound the exponential backoff schedule;
// jitter is applied as a uniform ±25% spread so a burst of failures
// doesn't retry in lockstep.
const (
	baseBackoff = 2 * time.Second
	maxBackoff  = 5 * time.Minute
)

// retryTask is one deferred per-file retry, carrying the attempt count
// so the queue can compute backoff and detect exhaustion.
type retryTask struct {
	Source      Source
	Entry       Entry
	Provenance  store.Provenance
	Attempts    int
	LastError   string
	NotBefore   time.Time
}

// RetryQueue defers failed ingestion attempts with exponential backoff
// and jitter, following the teacher's WorkerPool ticker+stopCh
// supervised-loop shape (pkg/queue/pool.go, pkg/queue/orphan.go) rather
// than a generic task library — there is no retry/backoff dependency
// anywhere in the pack to reach for instead.
type RetryQueue struct {
	Pipeline    *Pipeline
	Documents   store.DocumentStore
	MaxAttempts int

	tasks  chan retryTask
	stopCh chan struct{}
}

// NewRetryQueue returns a RetryQueue bound to pipeline, with capacity
// pending deferred tasks in flight.
func NewRetryQueue(pipeline *Pipeline, documents store.DocumentStore, capacity int) *RetryQueue {
	maxAttempts := DefaultMaxAttempts
	return &RetryQueue{
		Pipeline:    pipeline,
		Documents:   documents,
		MaxAttempts: maxAttempts,
		tasks:       make(chan retryTask, capacity),
		stopCh:      make(chan struct{}),
	}
}

// Enqueue schedules entry for a retried ingestion attempt after a
// backoff computed from the task's prior attempt count.
func (q *RetryQueue) Enqueue(src Source, entry Entry, prov store.Provenance, attempts int, lastErr string) {
	task := retryTask{
		Source:     src,
		Entry:      entry,
		Provenance: prov,
		Attempts:   attempts,
		LastError:  lastErr,
		NotBefore:  time.Now().Add(backoffWithJitter(attempts)),
	}
	select {
	case q.tasks <- task:
	default:
		slog.Warn("retry queue full, dropping deferred task", "name", entry.Name)
	}
}

// Run drains deferred tasks until ctx is done or Stop is called,
// retrying each once its NotBefore has elapsed.
func (q *RetryQueue) Run(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var pending []retryTask
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case task := <-q.tasks:
			pending = append(pending, task)
		case <-ticker.C:
			pending = q.drainReady(ctx, pending)
		}
	}
}

// Stop signals Run to return.
func (q *RetryQueue) Stop() { close(q.stopCh) }

func (q *RetryQueue) drainReady(ctx context.Context, pending []retryTask) []retryTask {
	now := time.Now()
	remaining := pending[:0]
	for _, task := range pending {
		if now.Before(task.NotBefore) {
			remaining = append(remaining, task)
			continue
		}
		q.attempt(ctx, task)
	}
	return remaining
}

func (q *RetryQueue) attempt(ctx context.Context, task retryTask) {
	log := slog.With("name", task.Entry.Name, "attempt", task.Attempts+1)

	_, err := q.Pipeline.IngestFile(ctx, task.Source, task.Entry, task.Provenance)
	if err == nil {
		log.Info("retry succeeded")
		return
	}

	attempts := task.Attempts + 1
	maxAttempts := q.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if attempts >= maxAttempts {
		log.Error("retry budget exhausted, recording failed ingest", "error", err)
		failed := store.FailedIngest{
			Source:    task.Source.SourceTag(),
			Name:      task.Entry.Name,
			ParentRef: task.Entry.ParentFolder,
			Attempts:  attempts,
			LastError: err.Error(),
			FailedAt:  time.Now(),
		}
		if recErr := q.Documents.RecordFailedIngest(ctx, failed); recErr != nil {
			log.Error("failed to record FailedIngest", "error", recErr)
		}
		return
	}

	log.Warn("retry failed, re-enqueueing", "error", err)
	q.Enqueue(task.Source, task.Entry, task.Provenance, attempts, err.Error())
}

// backoffWithJitter doubles baseBackoff per attempt up to maxBackoff,
// then applies a uniform ±25% jitter spread.
func backoffWithJitter(attempts int) time.Duration {
	backoff := baseBackoff
	for i := 0; i < attempts; i++ {
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
			break
		}
	}
	jitterRange := float64(backoff) * 0.25
	jitter := time.Duration(rand.Float64()*2*jitterRange - jitterRange)
	return backoff + jitter
}
