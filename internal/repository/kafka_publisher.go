package repository

import (
	"context"

	"Verdict/internal/domain/models"
	domain "Verdict/internal/domain/repository"
	"Verdict/pkg/kafka"
)

// KafkaPublisher fans recommendations out to a Kafka topic. Messages are
// keyed by session so one session's stream stays ordered on a single
// partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

var _ domain.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher on an existing producer.
func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends one recommendation, JSON-encoded, keyed by session.
func (p *KafkaPublisher) Publish(ctx context.Context, session string, rec *models.Recommendation) error {
	return p.producer.Publish(ctx, p.topic, []byte(session), rec)
}

// Close flushes and closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
