package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"wa-catalog/internal/repo"
)

// Publisher mirrors analytics events onto a Kafka topic for downstream
// consumers. Like every other analytics write it is best-effort.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher builds an async Kafka producer for the given broker/topic.
func NewPublisher(broker, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 100 * time.Millisecond,
		},
		logger: logger.With("component", "events-stream"),
	}
}

// Publish sends one analytics event, keyed by the user identity so one
// user's events stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, evt repo.AnalyticsEvent) error {
	data, err := json.Marshal(map[string]any{
		"event_type":       evt.EventType,
		"user_phone":       evt.UserPhone,
		"event_data":       evt.EventData,
		"response_time_ms": evt.ResponseTimeMs,
		"created_at":       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal analytics event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.UserPhone),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish analytics event: %w", err)
	}
	return nil
}

// Close flushes and releases the Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
