// Package queue implements the job dispatcher: a background task that
// polls QUEUED jobs and hands each to a JobRunner for stage-DAG
// execution, per spec.md §4.4. Grounded on the teacher's
// pkg/queue/pool.go (ticker-driven poll loop, session cancel registry)
// and pkg/queue/worker.go's claim→execute→terminal-update shape,
// generalized from "claim one session per worker goroutine" to "claim a
// batch of jobs per tick and fan each out to its own goroutine" — spec.md
// §4.4 names a single poll-and-claim step ("limit 10 per tick, 5-second
// tick"), not a fixed worker-pool size.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nnmtech/verisynthos/pkg/job"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// DefaultClaimLimit and DefaultPollInterval are spec.md §4.4's dispatch
// parameters ("limit 10 per tick, 5-second tick").
const (
	DefaultClaimLimit   = 10
	DefaultPollInterval = 5 * time.Second
)

// JobRunner drives one claimed job through to a terminal status. It never
// returns an error: terminal outcomes are recorded on the job record
// itself (see pkg/orchestrator.Orchestrator.Run).
type JobRunner interface {
	Run(ctx context.Context, j *job.Job)
}

// Dispatcher polls store.JobStore.ClaimQueued on an interval and runs
// each claimed job in its own goroutine, tracking a cancel function per
// in-flight job so CancelJob can interrupt a specific run.
type Dispatcher struct {
	Jobs         store.JobStore
	Runner       JobRunner
	ClaimLimit   int
	PollInterval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDispatcher returns a Dispatcher with spec.md §4.4's default claim
// limit and poll interval.
func NewDispatcher(jobs store.JobStore, runner JobRunner) *Dispatcher {
	return &Dispatcher{
		Jobs:         jobs,
		Runner:       runner,
		ClaimLimit:   DefaultClaimLimit,
		PollInterval: DefaultPollInterval,
		cancels:      make(map[string]context.CancelFunc),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the poll loop in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop signals the poll loop to exit and waits for every in-flight job
// goroutine to return from Runner.Run. It does not cancel their
// contexts: a running job keeps going until its runner returns or ctx
// or CancelJob cancels it.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// CancelJob cancels the context of a job currently running on this
// dispatcher instance, if any. Returns false if the job is not tracked
// here (it may be running on another dispatcher instance, or already
// finished); callers should still persist the cancellation request via
// store.JobStore.Cancel so any dispatcher instance observes it between
// stages.
func (d *Dispatcher) CancelJob(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancel, ok := d.cancels[jobID]
	if ok {
		cancel()
	}
	return ok
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	claimed, err := d.Jobs.ClaimQueued(ctx, d.claimLimit())
	if err != nil {
		slog.Error("dispatcher: claiming queued jobs failed", "error", err)
		return
	}
	for _, j := range claimed {
		d.wg.Add(1)
		go d.dispatch(ctx, j)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, j *job.Job) {
	defer d.wg.Done()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	d.cancels[j.ID] = cancel
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.cancels, j.ID)
		d.mu.Unlock()
	}()

	slog.Info("dispatcher: running job", "job_id", j.ID, "type", j.Spec.Type)
	d.Runner.Run(jobCtx, j)
}

func (d *Dispatcher) claimLimit() int {
	if d.ClaimLimit <= 0 {
		return DefaultClaimLimit
	}
	return d.ClaimLimit
}

func (d *Dispatcher) pollInterval() time.Duration {
	if d.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return d.PollInterval
}
