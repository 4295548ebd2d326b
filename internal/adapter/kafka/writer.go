package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/config"
	"github.com/couchcryptid/geocode-orchestrator/internal/geocoder"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces resolved lookups to the results topic.
// It implements geocoder.ResultSink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured results topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and writes one resolution. Messages are keyed by the
// lookup's cache key hash so repeats of a query land on one partition.
func (p *Publisher) Publish(ctx context.Context, r geocoder.Resolution) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}
	p.logger.Debug("resolution published", "queue", r.Queue, "key_hash", r.KeyHash)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Resolution into a Kafka message.
func serializeToMessage(r geocoder.Resolution) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize resolution: %w", err)
	}
	key := r.KeyHash
	if key == "" {
		key = r.Queue + ":" + r.Query
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "queue", Value: []byte(r.Queue)},
			{Key: "resolved_at", Value: []byte(r.ResolvedAt.Format(time.RFC3339))},
		},
	}, nil
}
