package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

type fakeReader struct {
	messages  []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func recalcMessage(t *testing.T, projectID string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(RecalculationRequest{
		ProjectID: projectID,
		Requested: time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	value, err := json.Marshal(EventEnvelope{
		EventID:       "ev-1",
		EventType:     EventTypeRecalculationRequest,
		Source:        "attribute-editor",
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	})
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestRecalculationConsumer_HandlesRequests(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		recalcMessage(t, "p1"),
		recalcMessage(t, "p2"),
	}}

	var handled []string
	consumer := NewRecalculationConsumerWithReader(reader, func(_ context.Context, req RecalculationRequest) error {
		handled = append(handled, req.ProjectID)
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Run(context.Background()))
	assert.Equal(t, []string{"p1", "p2"}, handled)
	assert.Len(t, reader.committed, 2)
}

func TestRecalculationConsumer_HandlerFailureLeavesUncommitted(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{recalcMessage(t, "p1")}}

	consumer := NewRecalculationConsumerWithReader(reader, func(context.Context, RecalculationRequest) error {
		return fmt.Errorf("storage unavailable")
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Run(context.Background()))
	assert.Empty(t, reader.committed)
}

func TestRecalculationConsumer_DropsMalformedMessages(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Value: []byte("not json")},
		recalcMessage(t, "p1"),
	}}

	var handled []string
	consumer := NewRecalculationConsumerWithReader(reader, func(_ context.Context, req RecalculationRequest) error {
		handled = append(handled, req.ProjectID)
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Run(context.Background()))
	assert.Equal(t, []string{"p1"}, handled)
	// Both the poison message and the handled one are committed.
	assert.Len(t, reader.committed, 2)
}

func TestRecalculationConsumer_DropsUnexpectedEventType(t *testing.T) {
	value, err := json.Marshal(EventEnvelope{
		EventType: "something.else",
		Payload:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	reader := &fakeReader{messages: []kafka.Message{{Value: value}}}

	consumer := NewRecalculationConsumerWithReader(reader, func(context.Context, RecalculationRequest) error {
		t.Fatal("handler should not be called")
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Run(context.Background()))
	assert.Len(t, reader.committed, 1)
}
