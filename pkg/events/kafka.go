package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/gocomet/rider-service/pkg/logger"
)

// KafkaConfig configures the Kafka publisher and consumer
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	GroupID     string
}

// KafkaPublisher writes events through one shared writer; the topic is set per message
type KafkaPublisher struct {
	writer *kafkago.Writer
	prefix string
}

// NewKafkaPublisher creates a publisher for cfg.Brokers
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		prefix: cfg.TopicPrefix,
	}
}

// Publish sends a JSON-serialised event keyed by user id so one rider's events stay ordered
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: p.prefix + topic,
		Key:   []byte(event.UserID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Handler processes one message value
type Handler func(ctx context.Context, value []byte) error

// messageReader is the part of *kafkago.Reader the consumer drives
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Consume reads topic until ctx is done. A message is committed once handler
// succeeds or fails with an error retryable rejects; other failures are retried
// with backoff. A nil retryable retries every failure.
func Consume(ctx context.Context, cfg KafkaConfig, topic string, log *logger.Logger, handler Handler, retryable func(error) bool) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.TopicPrefix + topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()

	newConsumer(r, topic, log, handler, retryable).run(ctx)
}

type consumer struct {
	reader     messageReader
	topic      string
	log        *logger.Logger
	handler    Handler
	retryable  func(error) bool
	backoff    time.Duration
	maxBackoff time.Duration
}

func newConsumer(r messageReader, topic string, log *logger.Logger, handler Handler, retryable func(error) bool) *consumer {
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	return &consumer{
		reader:     r,
		topic:      topic,
		log:        log,
		handler:    handler,
		retryable:  retryable,
		backoff:    500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

func (c *consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("Kafka fetch error", logger.String("topic", c.topic), logger.Err(err))
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		if !c.handle(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("Kafka commit error",
				logger.String("topic", c.topic),
				logger.Int64("offset", msg.Offset),
				logger.Err(err),
			)
		}
	}
}

// handle runs the handler until it succeeds or fails for good. It returns false
// when ctx ends first, leaving the message uncommitted for redelivery.
func (c *consumer) handle(ctx context.Context, msg kafkago.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, msg.Value)
		if err == nil {
			return true
		}
		if !c.retryable(err) {
			c.log.Warn("Kafka message dropped",
				logger.String("topic", c.topic),
				logger.Int64("offset", msg.Offset),
				logger.Err(err),
			)
			return true
		}

		c.log.Warn("Kafka handler error, retrying",
			logger.String("topic", c.topic),
			logger.Int64("offset", msg.Offset),
			logger.Int("attempt", attempt),
			logger.Err(err),
		)
		if !sleep(ctx, wait) {
			return false
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
