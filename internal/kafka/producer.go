// Package kafka feeds the alert integration stream: every persisted
// alert is produced to a topic for downstream consumers such as
// notification workers and analytics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"coldtrace/internal/logger"
	"coldtrace/internal/metrics"
	"coldtrace/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize alert event")
)

// AlertEvent is the record shape written to the alert topic
type AlertEvent struct {
	models.Alert
	ShipmentName string `json:"shipment_name"`
}

// Producer publishes alert events to Kafka, partitioned by shipment id
// so each shipment's alerts stay ordered.
type Producer struct {
	writer *kafka.Writer
	closed atomic.Bool

	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
	bytesWritten   atomic.Uint64
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string
	Topic   string
	// Compression codec name: gzip, snappy, lz4, zstd or empty for none
	Compression  string
	WriteTimeout time.Duration
	MaxRetries   int
}

// NewProducer creates a Kafka producer for the alert topic
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // Partition by key
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Compression:  getCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxRetries + 1,
		Async:        false, // Sync for reliability
	}

	log := logger.WithComponent("kafka")
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka producer initialized")

	return &Producer{writer: writer}, nil
}

// getCompression returns the kafka compression codec
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

// PublishAlert writes one alert event, keyed by shipment id
func (p *Producer) PublishAlert(ctx context.Context, alert *models.Alert, shipmentName string) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	data, err := json.Marshal(AlertEvent{Alert: *alert, ShipmentName: shipmentName})
	if err != nil {
		p.messagesFailed.Add(1)
		metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.ShipmentID),
		Value: data,
	})
	metrics.KafkaPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.messagesFailed.Add(1)
		metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	p.messagesSent.Add(1)
	p.bytesWritten.Add(uint64(len(data)))
	metrics.KafkaPublishTotal.WithLabelValues("success").Inc()
	metrics.KafkaBytesWritten.Add(float64(len(data)))
	return nil
}

// Stats holds producer counters
type Stats struct {
	MessagesSent   uint64
	MessagesFailed uint64
	BytesWritten   uint64
}

// Stats returns producer statistics
func (p *Producer) Stats() Stats {
	return Stats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
		BytesWritten:   p.bytesWritten.Load(),
	}
}

// Close flushes and closes the underlying writer
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
