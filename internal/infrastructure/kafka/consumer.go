package kafka

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"
)

// MessageHandler receives the message key, the raw payload and the
// event_type header value.
type MessageHandler func(ctx context.Context, key, value []byte, eventType string) error

type Consumer struct {
	reader *kafka.Reader
	idem   *IdempotencyStore
}

// NewConsumer creates a consumer; idem may be nil to skip offset
// deduplication.
func NewConsumer(brokers []string, topic, groupID string, idem *IdempotencyStore) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, idem: idem}
}

// Consume fetches messages until ctx is cancelled. Handler errors are
// logged and the offset is committed anyway: at-least-once delivery plus
// idempotent handlers is the recovery model, not redelivery loops.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Consumer] error fetching message: %v", err)
			continue
		}

		if c.idem != nil {
			key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
			seen, err := c.idem.Seen(ctx, key)
			if err != nil {
				log.Printf("[Consumer] idempotency check failed: %v", err)
			} else if seen {
				log.Printf("[Consumer] duplicate message skipped: %s", key)
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}
		}

		msgCtx := ExtractTraceHeaders(ctx, msg.Headers)
		eventType := HeaderValue(msg.Headers, "event_type")

		if err := handler(msgCtx, msg.Key, msg.Value, eventType); err != nil {
			log.Printf("[Consumer] error handling %s message: %v", eventType, err)
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
