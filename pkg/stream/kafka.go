// Package stream writes focus updates to a Kafka topic for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config holds Kafka producer settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Producer publishes JSON payloads keyed by participant, so one participant's updates
// stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a producer. No connection is made until the first Publish.
func NewProducer(cfg Config, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
	logger.Info("kafka stream enabled", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &Producer{writer: w, logger: logger}, nil
}

// Publish writes one message.
func (p *Producer) Publish(ctx context.Context, key string, payload interface{}) error {
	msg, err := message(key, payload, time.Now())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func message(key string, payload interface{}, at time.Time) (kafka.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return kafka.Message{Key: []byte(key), Value: body, Time: at}, nil
}
