// Package worker runs queued registry sync jobs from the SQLite job
// queue, so API callers can request reconciliation without waiting for
// the scan to finish.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
	"github.com/Data-Wise/atlas-sub001/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// SyncRunner runs one reconciliation pass.
type SyncRunner interface {
	Sync(ctx context.Context, opts registry.Options) (*registry.SyncResult, error)
}

// SyncPayload is the job payload for registry_sync jobs.
type SyncPayload struct {
	RootPaths     []string `json:"rootPaths"`
	DryRun        bool     `json:"dryRun"`
	RemoveOrphans bool     `json:"removeOrphans"`
}

// Worker polls for registry_sync jobs and executes them sequentially.
type Worker struct {
	store  JobStore
	syncer SyncRunner
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(store JobStore, syncer SyncRunner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		store:  store,
		syncer: syncer,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single registry_sync job. Returns true
// if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{storage.JobTypeRegistrySync})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("sync job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload SyncPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	result, err := w.syncer.Sync(ctx, registry.Options{
		RootPaths:     payload.RootPaths,
		DryRun:        payload.DryRun,
		RemoveOrphans: payload.RemoveOrphans,
	})
	if err != nil {
		return fmt.Errorf("running sync: %w", err)
	}

	// Per-item failures are contained in the result, not job failures.
	w.logger.Info("sync job finished",
		"job_id", job.ID,
		"discovered", len(result.Discovered),
		"updated", len(result.Updated),
		"unchanged", len(result.Unchanged),
		"orphaned", len(result.Orphaned),
		"errors", len(result.Errors),
	)
	return nil
}
