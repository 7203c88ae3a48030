package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/accident-dashboard/internal/config"
	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// Publisher produces interaction records to the interaction topic.
// It implements session.Publisher.
//
// Writes are asynchronous: Publish never blocks a transition on the broker,
// and delivery outcomes are counted when each batch completes.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured interaction topic.
// Records are keyed by session id, so one session's interactions stay ordered
// within a partition.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	p := &Publisher{metrics: metrics, logger: logger}
	p.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchFlushInterval,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.completed,
	}
	return p
}

// Publish serializes and enqueues records in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, records ...domain.Interaction) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) completed(msgs []kafkago.Message, err error) {
	if err != nil {
		p.metrics.InteractionsPublished.WithLabelValues("error").Add(float64(len(msgs)))
		p.logger.Warn("interaction delivery failed", "messages", len(msgs), "error", err)
		return
	}
	p.metrics.InteractionsPublished.WithLabelValues("success").Add(float64(len(msgs)))
}

// serializeToMessage marshals an Interaction into a Kafka message.
func serializeToMessage(rec domain.Interaction) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize interaction: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_kind", Value: []byte(rec.Event.Kind)},
			{Key: "applied_at", Value: []byte(rec.AppliedAt.Format(time.RFC3339))},
		},
	}, nil
}
