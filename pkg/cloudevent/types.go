// Package cloudevent implements the CloudEvents 1.0 structured JSON
// format used for task lifecycle callbacks.
package cloudevent

import (
	"fmt"
	"time"
)

// CloudEvent is a CloudEvents 1.0 event in structured JSON form.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// New creates an event carrying data as a JSON object. The event ID is
// derived from the subject and the creation timestamp, which keeps IDs
// unique and sortable within a single task's lifecycle stream.
func New(eventType, source, subject string, data map[string]any) *CloudEvent {
	now := time.Now().UTC()
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              fmt.Sprintf("%s-%d", subject, now.UnixNano()),
		Time:            now,
		DataContentType: "application/json",
		Data:            data,
	}
}
