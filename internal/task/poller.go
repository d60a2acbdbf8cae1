// Package task implements the job lifecycle controller and its peers:
// polling a remote job to a terminal status, idempotent run/resume via
// persisted tokens, one-shot shell commands, and idle-cluster reaping.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LotharSee/mortar-luigi/internal/mortar"
	"github.com/LotharSee/mortar-luigi/internal/observability"
)

// PollerConfig holds configuration for a Poller. Zero values use defaults.
type PollerConfig struct {
	Interval   time.Duration          // between fetches and between retries (default: 5s)
	MaxRetries int                    // consecutive transient failures tolerated (default: 3)
	Metrics    *observability.Metrics // optional
	Events     *Notifier              // optional lifecycle event emission
}

// withDefaults fills in zero values with defaults.
func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Poller polls a job at a fixed interval until it reaches a terminal
// status, tolerating a bounded number of consecutive fetch failures.
type Poller struct {
	backend mortar.Backend
	config  PollerConfig
}

// NewPoller creates a poller over the given backend.
func NewPoller(backend mortar.Backend, cfg PollerConfig) *Poller {
	return &Poller{backend: backend, config: cfg.withDefaults()}
}

// Poll blocks until the job reaches a terminal status and returns its
// final snapshot. Status transitions and progress updates are logged
// once per change. A fetch failure is retried after the polling
// interval; the failure counter resets on every successful fetch, and
// once it exceeds MaxRetries the last error propagates. There is no
// bound on total elapsed time: cancellation comes from ctx.
func (p *Poller) Poll(ctx context.Context, jobID string) (mortar.Job, error) {
	logger := slog.With("jobId", jobID)

	currentStatus := ""
	currentProgress := -1
	failures := 0

	for {
		job, err := p.backend.GetJob(ctx, jobID)
		if p.config.Metrics != nil {
			p.config.Metrics.RecordPollFetch(ctx, err == nil)
		}
		if err != nil {
			failures++
			if failures > p.config.MaxRetries {
				return mortar.Job{}, fmt.Errorf("poll job %s: %w", jobID, err)
			}
			logger.Warn("Job status fetch failed, will retry",
				"failures", failures,
				"maxRetries", p.config.MaxRetries,
				"error", err,
			)
			if err := sleep(ctx, p.config.Interval); err != nil {
				return mortar.Job{}, err
			}
			continue
		}
		failures = 0

		if job.StatusCode != currentStatus {
			currentStatus = job.StatusCode
			logger.Info("Job status changed",
				"statusCode", currentStatus,
				"description", job.StatusSummary(),
			)
			p.config.Events.StatusChanged(jobID, currentStatus, job.StatusSummary())
		}

		if job.StatusCode == mortar.StatusRunning && job.Progress != currentProgress {
			currentProgress = job.Progress
			logger.Info("Job progress", "progress", currentProgress)
		}

		if job.Finished() {
			return job, nil
		}

		if err := sleep(ctx, p.config.Interval); err != nil {
			return mortar.Job{}, err
		}
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
