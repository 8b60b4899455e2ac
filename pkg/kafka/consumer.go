package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// handlerAttempts is how many times a message is handled before it is
	// dead-lettered (or dropped) and committed.
	handlerAttempts = 3
	handlerBackoff  = 100 * time.Millisecond
)

// Handler processes one event. A non-nil error triggers a retry.
type Handler func(ctx context.Context, event *Event) error

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// EnableDLQ forwards messages that exhaust their attempts to
	// DLQTopic(Topic) instead of dropping them.
	EnableDLQ bool
}

// Consumer reads one topic as part of a consumer group and commits each
// message after it has been handled, dead-lettered or dropped.
type Consumer struct {
	reader  *kafka.Reader
	dlq     *DLQProducer
	handler Handler
	logger  *slog.Logger
	topic   string
	group   string

	closeOnce sync.Once
	closeErr  error
}

func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	c := &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		}),
		handler: handler,
		logger:  logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
		topic:   cfg.Topic,
		group:   cfg.GroupID,
	}
	if cfg.EnableDLQ {
		c.dlq = NewDLQProducer(cfg.Brokers, logger)
	}
	return c
}

// Start consumes until ctx is canceled, then closes the consumer.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.Bool("dlq", c.dlq != nil))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping")
			return c.Close()
		}
		if err != nil {
			c.logger.Error("fetch message failed", slog.String("error", err.Error()))
			continue
		}

		consumerReceived.WithLabelValues(c.topic, c.group).Inc()
		c.process(ctx, msg)
		if ctx.Err() != nil {
			return c.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit message failed",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process decodes and handles msg, dead-lettering it on a decode error or
// once every attempt has failed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("undecodable message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
		return
	}

	start := time.Now()
	err = c.attempt(event.Context(ctx), msg, event)
	consumerDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		consumerProcessed.WithLabelValues(c.topic, c.group).Inc()
	case ctx.Err() != nil:
	default:
		consumerFailed.WithLabelValues(c.topic, c.group).Inc()
		c.logger.Error("giving up on event",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
	}
}

// attempt calls the handler up to handlerAttempts times, doubling the pause
// between tries.
func (c *Consumer) attempt(ctx context.Context, msg kafka.Message, event *Event) error {
	wait := handlerBackoff
	for n := 1; ; n++ {
		err := c.handler(ctx, event)
		if err == nil || n == handlerAttempts {
			return err
		}
		c.logger.WarnContext(ctx, "handler failed, retrying",
			slog.String("event_type", event.EventType),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", n),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			wait *= 2
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if c.dlq.Publish(ctx, msg, cause, c.group) == nil {
		consumerDeadLettered.WithLabelValues(c.topic, c.group).Inc()
	}
}

// Close stops the reader and the DLQ writer. Later calls return the first
// result.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}
