package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicplan/planschedule/internal/application/schedule"
	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestEmitDateChanges(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewAuditProducerWithWriter(writer, TopicDeadlineChanges, logging.NewNopLogger())
	producer.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) }

	changes := []domain.DateChange{
		{
			Deadline: &domain.Deadline{ID: "oas"},
			Old:      nil,
			New:      date(2024, 2, 1),
		},
		{
			Deadline: &domain.Deadline{ID: "ehdotus"},
			Old:      date(2024, 3, 2),
			New:      date(2024, 3, 5),
		},
	}

	err := producer.EmitDateChanges(context.Background(), "test-user", "p1", changes)
	require.NoError(t, err)
	require.Len(t, writer.messages, 2)

	for _, msg := range writer.messages {
		assert.Equal(t, "p1", string(msg.Key))
	}

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(writer.messages[1].Value, &envelope))
	assert.Equal(t, EventTypeDeadlineChanged, envelope.EventType)
	assert.Equal(t, "planschedule", envelope.Source)
	assert.NotEmpty(t, envelope.EventID)

	var ev schedule.AuditEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &ev))
	assert.Equal(t, "test-user", ev.Actor)
	assert.Equal(t, "ehdotus", ev.DeadlineID)
	require.NotNil(t, ev.OldDate)
	assert.Equal(t, "2024-03-02", *ev.OldDate)
	require.NotNil(t, ev.NewDate)
	assert.Equal(t, "2024-03-05", *ev.NewDate)
}

func TestEmitDateChanges_EmptyIsNoop(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewAuditProducerWithWriter(writer, TopicDeadlineChanges, logging.NewNopLogger())

	require.NoError(t, producer.EmitDateChanges(context.Background(), "system", "p1", nil))
	assert.Empty(t, writer.messages)
}

func TestEmitDateChanges_AfterClose(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewAuditProducerWithWriter(writer, TopicDeadlineChanges, logging.NewNopLogger())
	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)

	err := producer.EmitDateChanges(context.Background(), "system", "p1", []domain.DateChange{
		{Deadline: &domain.Deadline{ID: "oas"}, New: date(2024, 2, 1)},
	})
	assert.ErrorIs(t, err, ErrProducerClosed)
}
