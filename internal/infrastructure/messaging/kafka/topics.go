// Package kafka carries the service's asynchronous messaging: deadline
// change audit events out, recalculation requests in.
package kafka

import (
	"encoding/json"
	"time"
)

// Topic constants.
const (
	// TopicDeadlineChanges receives one audit event per deadline date
	// change, whether scheduler-computed or user-edited.
	TopicDeadlineChanges = "planschedule.deadline-changes"

	// TopicRecalculationRequests receives project recalculation requests
	// from the attribute-editing system; the worker consumes them.
	TopicRecalculationRequests = "planschedule.recalculation-requests"
)

// EventEnvelope standardizes event messages across topics.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Event types.
const (
	EventTypeDeadlineChanged      = "deadline.changed"
	EventTypeRecalculationRequest = "project.recalculate"
)

// SchemaVersion is the current envelope schema revision.
const SchemaVersion = "1.0"

// RecalculationRequest asks the worker to rerun scheduling for one project,
// or for every project when ProjectID is empty.
type RecalculationRequest struct {
	ProjectID string    `json:"project_id"`
	Reason    string    `json:"reason,omitempty"`
	Requested time.Time `json:"requested"`
}
