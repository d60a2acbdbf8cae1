package observability

import (
	"context"
	"testing"

	"github.com/LotharSee/mortar-luigi/internal/mortar"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordTaskMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordSubmission(ctx, "demo", true)
	metrics.RecordSubmission(ctx, "demo", false)
	metrics.RecordTaskStarted(ctx, "demo")
	metrics.RecordPollFetch(ctx, true)
	metrics.RecordPollFetch(ctx, false)
	metrics.RecordJobFinished(ctx, "demo", mortar.StatusSuccess, 120.5)
	metrics.RecordJobFinished(ctx, "demo", mortar.StatusExecutionError, 30.0)
	metrics.RecordClusterStopped(ctx)
}

func TestRecordDispatcherMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordDispatcherDelivered(ctx, 0.02)
	metrics.RecordDispatcherFailed(ctx)
	metrics.RecordDispatcherDropped(ctx)
	metrics.RecordDispatcherQueueSize(ctx, 3)
}
