package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/civicplan/planschedule/internal/config"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// RecalculationHandler processes one recalculation request.  A returned
// error leaves the message uncommitted so it is redelivered.
type RecalculationHandler func(ctx context.Context, req RecalculationRequest) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecalculationConsumer consumes recalculation requests and hands them to
// the scheduling service.  Malformed messages are committed and dropped;
// handler failures are not committed and retry on redelivery.
type RecalculationConsumer struct {
	reader  ReaderInterface
	handler RecalculationHandler
	logger  logging.Logger
}

// NewRecalculationConsumer builds a consumer in the planschedule-worker
// group.
func NewRecalculationConsumer(cfg config.KafkaConfig, handler RecalculationHandler, log logging.Logger) *RecalculationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        "planschedule-worker",
		Topic:          TopicRecalculationRequests,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: 0, // explicit commits
		MaxWait:        time.Second,
	})
	return NewRecalculationConsumerWithReader(reader, handler, log)
}

// NewRecalculationConsumerWithReader wraps an existing reader (for testing).
func NewRecalculationConsumerWithReader(r ReaderInterface, handler RecalculationHandler, log logging.Logger) *RecalculationConsumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RecalculationConsumer{reader: r, handler: handler, logger: log}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *RecalculationConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		req, ok := c.decode(msg)
		if !ok {
			// Poison message: commit so it is not redelivered forever.
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := c.handler(ctx, req); err != nil {
			c.logger.Error("Recalculation request failed, leaving uncommitted",
				logging.String("project_id", req.ProjectID),
				logging.Err(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *RecalculationConsumer) decode(msg kafka.Message) (RecalculationRequest, bool) {
	var envelope EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.logger.Warn("Dropping malformed event envelope", logging.Err(err))
		return RecalculationRequest{}, false
	}
	if envelope.EventType != EventTypeRecalculationRequest {
		c.logger.Warn("Dropping event of unexpected type",
			logging.String("event_type", envelope.EventType))
		return RecalculationRequest{}, false
	}

	var req RecalculationRequest
	if err := json.Unmarshal(envelope.Payload, &req); err != nil {
		c.logger.Warn("Dropping malformed recalculation request", logging.Err(err))
		return RecalculationRequest{}, false
	}
	return req, true
}

// Close shuts the reader down, which also unblocks Run.
func (c *RecalculationConsumer) Close() error {
	return c.reader.Close()
}
