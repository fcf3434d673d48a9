package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/rs-vn/document-search-platform/pkg/config"

	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic as part of a consumer group and
// dispatches them to a MessageHandler. A message is committed (acknowledged)
// only after the handler succeeds; handler failures are retried in place with
// a constant delay, and a message that exhausts its attempts is published to
// the topic's dead-letter topic instead of being dropped.
// messageWriter is the slice of kafka.Writer the dead-letter path needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       *kafka.Reader
	deadLetters  messageWriter
	handler      MessageHandler
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger

	// OnRetry and OnDeadLetter are optional observability hooks.
	OnRetry      func()
	OnDeadLetter func(topic string)
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        config.DeadLetterTopic(topic),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Consumer{
		reader:       r,
		deadLetters:  dlq,
		handler:      handler,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. Message order is preserved per partition, so events sharing
// a key are never handled out of order or concurrently within the group.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			if dlqErr := c.deadLetter(ctx, msg, err); dlqErr != nil {
				// Leave the message uncommitted so the group redelivers
				// it; committing here would drop it entirely.
				continue
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler with bounded, fixed-backoff retries.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.OnRetry != nil {
				c.OnRetry()
			}
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = c.handler(ctx, msg.Key, msg.Value)
		if lastErr == nil {
			return nil
		}
		c.logger.Warn("handler failed",
			"key", string(msg.Key),
			"offset", msg.Offset,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries+1,
			"error", lastErr,
		)
	}
	return lastErr
}

// deadLetter forwards an exhausted message to the dead-letter topic so it can
// be inspected and replayed manually. The original key is preserved. The
// write itself is retried with the same backoff as the handler; a failure is
// returned so the caller withholds the commit instead of dropping the
// message.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = c.deadLetters.WriteMessages(ctx, kafka.Message{
			Key:   msg.Key,
			Value: msg.Value,
		})
		if lastErr == nil {
			if c.OnDeadLetter != nil {
				c.OnDeadLetter(c.reader.Config().Topic)
			}
			c.logger.Error("message routed to dead-letter topic",
				"key", string(msg.Key),
				"offset", msg.Offset,
				"error", cause,
			)
			return nil
		}
	}
	c.logger.Error("failed to write to dead-letter topic, withholding commit",
		"key", string(msg.Key),
		"offset", msg.Offset,
		"cause", cause,
		"error", lastErr,
	)
	return lastErr
}

// Close closes the underlying Kafka reader and dead-letter writer.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return err
	}
	return c.deadLetters.Close()
}
