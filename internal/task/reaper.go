package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LotharSee/mortar-luigi/internal/mortar"
	"github.com/LotharSee/mortar-luigi/internal/observability"
)

// Reaper stops running clusters with no active jobs. It does not retry
// and does not wait for clusters to confirm shutdown.
type Reaper struct {
	backend mortar.Backend
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReaper creates a reaper over the given backend. metrics may be nil.
func NewReaper(backend mortar.Backend, metrics *observability.Metrics) *Reaper {
	return &Reaper{
		backend: backend,
		metrics: metrics,
		logger:  slog.With("component", "reaper"),
	}
}

// ShutdownIdleClusters lists clusters and stops every running one with
// no jobs assigned. The first stop failure aborts the sweep.
func (r *Reaper) ShutdownIdleClusters(ctx context.Context) error {
	clusters, err := r.backend.ListClusters(ctx)
	if err != nil {
		return fmt.Errorf("list clusters: %w", err)
	}

	for _, c := range clusters {
		if c.StatusCode != mortar.ClusterStatusRunning || !c.Idle() {
			continue
		}
		r.logger.Info("Stopping idle cluster", "clusterId", c.ClusterID, "size", c.Size)
		if err := r.backend.StopCluster(ctx, c.ClusterID); err != nil {
			return fmt.Errorf("stop cluster %s: %w", c.ClusterID, err)
		}
		if r.metrics != nil {
			r.metrics.RecordClusterStopped(ctx)
		}
	}
	return nil
}
