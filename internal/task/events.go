package task

import (
	"github.com/LotharSee/mortar-luigi/internal/dispatcher"
	"github.com/LotharSee/mortar-luigi/pkg/cloudevent"
)

// Event types for task lifecycle callbacks
const (
	EventTypeSubmitted = "mortar.task.submitted"
	EventTypeStatus    = "mortar.task.status"
	EventTypeFinished  = "mortar.task.finished"
)

// eventSource identifies this orchestrator in emitted CloudEvents.
const eventSource = "mortar-luigi/task"

// Notifier emits task lifecycle events to a configured callback URL via
// an async dispatcher. All methods are safe on a nil receiver, which
// means "events disabled".
type Notifier struct {
	dispatcher  dispatcher.Dispatcher
	destination string
	signingKey  string
	taskID      string
}

// NewNotifier creates a notifier delivering events for one task
// identity to destination. signingKey enables HMAC signing when
// non-empty.
func NewNotifier(d dispatcher.Dispatcher, destination, signingKey, taskID string) *Notifier {
	return &Notifier{
		dispatcher:  d,
		destination: destination,
		signingKey:  signingKey,
		taskID:      taskID,
	}
}

// JobSubmitted emits an event for a fresh job submission.
func (n *Notifier) JobSubmitted(jobID, clusterID string, newCluster bool) {
	if n == nil {
		return
	}
	data := map[string]any{
		"taskId":     n.taskID,
		"jobId":      jobID,
		"newCluster": newCluster,
	}
	if clusterID != "" {
		data["clusterId"] = clusterID
	}
	n.emit(EventTypeSubmitted, data)
}

// StatusChanged emits an event for an observed job status transition.
func (n *Notifier) StatusChanged(jobID, statusCode, description string) {
	if n == nil {
		return
	}
	n.emit(EventTypeStatus, map[string]any{
		"taskId":      n.taskID,
		"jobId":       jobID,
		"statusCode":  statusCode,
		"description": description,
	})
}

// JobFinished emits an event for a job reaching a terminal status.
func (n *Notifier) JobFinished(jobID, statusCode, errorDetail string) {
	if n == nil {
		return
	}
	data := map[string]any{
		"taskId":     n.taskID,
		"jobId":      jobID,
		"statusCode": statusCode,
	}
	if errorDetail != "" {
		data["error"] = errorDetail
	}
	n.emit(EventTypeFinished, data)
}

// emit queues one event; delivery failures are the dispatcher's to log.
func (n *Notifier) emit(eventType string, data map[string]any) {
	event := cloudevent.New(eventType, eventSource, n.taskID, data)
	_ = n.dispatcher.Dispatch(&dispatcher.Event{
		Payload:     event,
		Destination: n.destination,
		SigningKey:  n.signingKey,
	})
}
