package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"github.com/riskwatch/riskwatch/server/internal/metrics"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("kafka: producer is closed")
	ErrSerializeFailed = errors.New("kafka: failed to serialize message")
)

const sinkName = "kafka"

// Config configures a Producer.
type Config struct {
	Brokers      []string
	TopicPrefix  string
	Compression  string // none|gzip|snappy|lz4|zstd
	RequiredAcks int    // -1 all, 0 none, 1 leader
	MaxRetries   int
	RetryBackoff time.Duration
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// Keyed payloads choose their own partition key. Messages for the same key
// land on the same partition and stay ordered.
type Keyed interface {
	PartitionKey() string
}

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON messages to <prefix><topic>.
type Producer struct {
	cfg    Config
	writer messageWriter
	closed atomic.Bool
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewProducer creates a Producer connected to cfg.Brokers.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            getCompression(cfg.Compression),
		AllowAutoTopicCreation: true,
		// Retries are driven by publishWithRetry.
		MaxAttempts: 1,
	}
	return newProducer(cfg, w), nil
}

func newProducer(cfg Config, w messageWriter) *Producer {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &Producer{cfg: cfg, writer: w, sleep: sleepCtx}
}

func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None
	}
}

// Topic returns the Kafka topic name used for topic.
func (p *Producer) Topic(topic string) string {
	return p.cfg.TopicPrefix + topic
}

// Publish JSON-encodes payload and writes it to the prefixed topic. Payloads
// implementing Keyed are keyed by their partition key.
func (p *Producer) Publish(ctx context.Context, topic string, payload interface{}) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(sinkName, "error").Inc()
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Topic: p.Topic(topic),
		Value: data,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: time.Now(),
	}
	if k, ok := payload.(Keyed); ok {
		msg.Key = []byte(k.PartitionKey())
	}

	if err := p.publishWithRetry(ctx, msg); err != nil {
		metrics.PublishTotal.WithLabelValues(sinkName, "error").Inc()
		return err
	}
	metrics.PublishTotal.WithLabelValues(sinkName, "ok").Inc()
	slog.Debug("kafka: published", "topic", msg.Topic, "key", string(msg.Key), "bytes", len(data))
	return nil
}

// publishWithRetry writes msg with exponential backoff between attempts.
func (p *Producer) publishWithRetry(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("kafka: retrying publish", "topic", msg.Topic, "attempt", attempt, "backoff", backoff)
			if err := p.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}

		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	slog.Error("kafka: publish failed after all retries",
		"topic", msg.Topic, "attempts", p.cfg.MaxRetries+1, "err", lastErr)
	return fmt.Errorf("kafka: publish to %s failed after %d attempts: %w", msg.Topic, p.cfg.MaxRetries+1, lastErr)
}

// Close flushes and closes the writer. Later Publish calls fail with
// ErrProducerClosed.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: close writer: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
