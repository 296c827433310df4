package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=events.go -destination=mock_events.go -package=services

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// KafkaEventPublisher publishes book events to Kafka.
// A nil writer turns publishing into a logged no-op.
type KafkaEventPublisher struct {
	writer KafkaWriter
}

// NewKafkaEventPublisher creates a publisher over writer, which may be nil.
func NewKafkaEventPublisher(writer KafkaWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// NewBookEvent builds an event stamped with the current time.
func NewBookEvent(bookID, userID uuid.UUID, operation string) models.BookEvent {
	return models.BookEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().Unix(),
		BookID:    bookID.String(),
		UserID:    userID.String(),
		Operation: operation,
	}
}

// Publish sends event keyed by its book ID. Failures are logged, never returned.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event models.BookEvent) {
	if p == nil || p.writer == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "event_id", event.EventID)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal book event", "event_id", event.EventID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.BookID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish book event to Kafka", "event_id", event.EventID, "error", err)
		return
	}
	logger.Log.Infow("Book event queued for Kafka", "event_id", event.EventID, "book_id", event.BookID, "operation", event.Operation)
}
