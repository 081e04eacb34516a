package schedule

import (
	"context"
	"time"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
)

// SystemActor identifies scheduler-originated changes in the audit trail.
const SystemActor = "system"

// AuditEvent records one deadline date change for the action log.
type AuditEvent struct {
	Actor      string     `json:"actor"`
	ProjectID  string     `json:"project_id"`
	DeadlineID string     `json:"deadline_id"`
	OldDate    *string    `json:"old_date"`
	NewDate    *string    `json:"new_date"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// AuditEmitter delivers date-change events to the action log.  The
// kafka-backed implementation lives in infrastructure/messaging.
type AuditEmitter interface {
	EmitDateChanges(ctx context.Context, actor, projectID string, changes []domain.DateChange) error
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) EmitDateChanges(context.Context, string, string, []domain.DateChange) error {
	return nil
}

// NewAuditEvents converts engine change pairs into audit events.
func NewAuditEvents(actor, projectID string, changes []domain.DateChange, at time.Time) []AuditEvent {
	events := make([]AuditEvent, 0, len(changes))
	for _, ch := range changes {
		events = append(events, AuditEvent{
			Actor:      actor,
			ProjectID:  projectID,
			DeadlineID: ch.Deadline.ID,
			OldDate:    formatDate(ch.Old),
			NewDate:    formatDate(ch.New),
			OccurredAt: at,
		})
	}
	return events
}
