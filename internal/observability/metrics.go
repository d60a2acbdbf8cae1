// Package observability provides metrics for task orchestration.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics:
// - Traffic: submissions, poll fetches, finished jobs, clusters stopped
// - Errors: poll fetch failures, failed jobs
// - Latency: job duration from submission to terminal status
// - Saturation: tasks currently blocked on a remote job
type Metrics struct {
	meter metric.Meter

	// Submission and polling
	SubmissionsTotal metric.Int64Counter
	PollFetchesTotal metric.Int64Counter
	PollErrorsTotal  metric.Int64Counter

	// Job outcomes
	JobsFinishedTotal metric.Int64Counter
	JobDuration       metric.Float64Histogram
	TasksRunning      metric.Int64UpDownCounter

	// Cluster reaper
	ClustersStoppedTotal metric.Int64Counter

	// Event dispatcher
	DispatcherDuration  metric.Float64Histogram
	DispatcherDelivered metric.Int64Counter
	DispatcherFailed    metric.Int64Counter
	DispatcherDropped   metric.Int64Counter
	DispatcherQueueSize metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("mortar-luigi")
	m := &Metrics{meter: meter}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"job_submissions_total",
		metric.WithDescription("Total jobs submitted to the remote API"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollFetchesTotal, err = meter.Int64Counter(
		"poll_fetches_total",
		metric.WithDescription("Total job status fetches"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollErrorsTotal, err = meter.Int64Counter(
		"poll_errors_total",
		metric.WithDescription("Total transient job status fetch failures"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsFinishedTotal, err = meter.Int64Counter(
		"jobs_finished_total",
		metric.WithDescription("Total jobs that reached a terminal status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Time from submission to terminal status in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(30, 60, 300, 600, 1800, 3600, 7200, 14400, 28800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TasksRunning, err = meter.Int64UpDownCounter(
		"tasks_running",
		metric.WithDescription("Tasks currently blocked on a remote job (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ClustersStoppedTotal, err = meter.Int64Counter(
		"clusters_stopped_total",
		metric.WithDescription("Total idle clusters stopped by the reaper"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherDuration, err = meter.Float64Histogram(
		"dispatcher_duration_seconds",
		metric.WithDescription("Lifecycle event delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherDelivered, err = meter.Int64Counter(
		"dispatcher_delivered_total",
		metric.WithDescription("Total lifecycle events successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherFailed, err = meter.Int64Counter(
		"dispatcher_failed_total",
		metric.WithDescription("Total lifecycle events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherDropped, err = meter.Int64Counter(
		"dispatcher_dropped_total",
		metric.WithDescription("Total lifecycle events dropped (buffer full)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatcherQueueSize, err = meter.Int64Gauge(
		"dispatcher_queue_size",
		metric.WithDescription("Current number of events in dispatcher queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordSubmission records a job submitted to the remote API.
func (m *Metrics) RecordSubmission(ctx context.Context, project string, newCluster bool) {
	m.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(
		projectAttr(project),
		newClusterAttr(newCluster),
	))
}

// RecordPollFetch records one job status fetch and its outcome.
func (m *Metrics) RecordPollFetch(ctx context.Context, success bool) {
	m.PollFetchesTotal.Add(ctx, 1)
	if !success {
		m.PollErrorsTotal.Add(ctx, 1)
	}
}

// RecordTaskStarted records a task entering its polling phase.
func (m *Metrics) RecordTaskStarted(ctx context.Context, project string) {
	m.TasksRunning.Add(ctx, 1, metric.WithAttributes(projectAttr(project)))
}

// RecordTaskAborted records a task leaving its polling phase without
// observing a terminal status (fatal poll error or cancellation).
func (m *Metrics) RecordTaskAborted(ctx context.Context, project string) {
	m.TasksRunning.Add(ctx, -1, metric.WithAttributes(projectAttr(project)))
}

// RecordJobFinished records a job reaching a terminal status.
func (m *Metrics) RecordJobFinished(ctx context.Context, project, statusCode string, durationSeconds float64) {
	m.JobsFinishedTotal.Add(ctx, 1, metric.WithAttributes(
		projectAttr(project),
		statusAttr(statusCode),
	))
	m.JobDuration.Record(ctx, durationSeconds, metric.WithAttributes(projectAttr(project)))
	m.TasksRunning.Add(ctx, -1, metric.WithAttributes(projectAttr(project)))
}

// RecordClusterStopped records an idle cluster stopped by the reaper.
func (m *Metrics) RecordClusterStopped(ctx context.Context) {
	m.ClustersStoppedTotal.Add(ctx, 1)
}

// RecordDispatcherDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.DispatcherDelivered.Add(ctx, 1)
	m.DispatcherDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records a failed event delivery.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.DispatcherFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records a dropped event.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context) {
	m.DispatcherDropped.Add(ctx, 1)
}

// RecordDispatcherQueueSize records the current queue size.
func (m *Metrics) RecordDispatcherQueueSize(ctx context.Context, size int64) {
	m.DispatcherQueueSize.Record(ctx, size)
}
