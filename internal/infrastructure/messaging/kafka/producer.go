package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/civicplan/planschedule/internal/application/schedule"
	"github.com/civicplan/planschedule/internal/config"
	domain "github.com/civicplan/planschedule/internal/domain/schedule"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
	"github.com/civicplan/planschedule/pkg/errors"
)

// ErrProducerClosed is returned by Emit after Close.
var ErrProducerClosed = errors.New(errors.CodeInternal, "producer closed")

// eventSource identifies this service in event envelopes.
const eventSource = "planschedule"

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditProducer publishes deadline change events to the audit topic.  It
// implements the application layer's AuditEmitter.
type AuditProducer struct {
	writer WriterInterface
	topic  string
	logger logging.Logger
	closed atomic.Bool

	// now is the event clock; overridable in tests.
	now func() time.Time
}

var _ schedule.AuditEmitter = (*AuditProducer)(nil)

// NewAuditProducer builds a producer over the configured brokers.
func NewAuditProducer(cfg config.KafkaConfig, log logging.Logger) *AuditProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.ProducerRetries,
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
		RequiredAcks: kafka.RequireAll,
	}
	return newAuditProducer(writer, cfg.AuditTopic, log)
}

// NewAuditProducerWithWriter wraps an existing writer (for testing).
func NewAuditProducerWithWriter(w WriterInterface, topic string, log logging.Logger) *AuditProducer {
	return newAuditProducer(w, topic, log)
}

func newAuditProducer(w WriterInterface, topic string, log logging.Logger) *AuditProducer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AuditProducer{
		writer: w,
		topic:  topic,
		logger: log,
		now:    time.Now,
	}
}

// EmitDateChanges publishes one event per change, keyed by project so all
// events of a project land in one partition, in order.
func (p *AuditProducer) EmitDateChanges(ctx context.Context, actor, projectID string, changes []domain.DateChange) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(changes) == 0 {
		return nil
	}

	events := schedule.NewAuditEvents(actor, projectID, changes, p.now())
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode audit event")
		}
		envelope, err := json.Marshal(EventEnvelope{
			EventID:       uuid.NewString(),
			EventType:     EventTypeDeadlineChanged,
			Source:        eventSource,
			Timestamp:     ev.OccurredAt,
			SchemaVersion: SchemaVersion,
			Payload:       payload,
		})
		if err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode event envelope")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(projectID),
			Value: envelope,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, errors.CodeExternalService, "failed to publish audit events")
	}

	p.logger.Debug("Published audit events",
		logging.String("project_id", projectID),
		logging.Int("count", len(msgs)),
	)
	return nil
}

// Close flushes and shuts the writer down.
func (p *AuditProducer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
