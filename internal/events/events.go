package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Event types emitted by the service.
const (
	EventTestCreated      = "test.created"
	EventAttemptSubmitted = "attempt.submitted"
)

// Event is the envelope for every message published to the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TestCreatedData is the payload of a test.created event.
type TestCreatedData struct {
	TestID         string   `json:"test_id"`
	Name           string   `json:"name"`
	CreatedBy      string   `json:"created_by"`
	Institution    string   `json:"institution"`
	IsPublic       bool     `json:"is_public"`
	AssignedGroups []string `json:"assigned_groups,omitempty"`
	QuestionCount  int      `json:"question_count"`
}

// AttemptSubmittedData is the payload of an attempt.submitted event.
type AttemptSubmittedData struct {
	AttemptID       uint   `json:"attempt_id"`
	TestID          string `json:"test_id"`
	StudentID       string `json:"student_id"`
	Score           int    `json:"score"`
	Total           int    `json:"total"`
	Percentage      int    `json:"percentage"`
	DurationSeconds int    `json:"duration_seconds"`
}

// EventPublisher publishes domain events. Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close() error
}

// NewEvent builds the envelope around a payload.
func NewEvent(eventType string, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "coaching-api",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}, nil
}

// ===== KAFKA PUBLISHER =====

type KafkaEventPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewKafkaEventPublisher(brokers []string, topic string, wmLogger watermill.LoggerAdapter) (*KafkaEventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &KafkaEventPublisher{
		publisher: publisher,
		topic:     topic,
	}, nil
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, data)
	if err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, body)
	msg.Metadata.Set("event_type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.publisher.Close()
}

// ===== NO-OP PUBLISHER =====

// NoopEventPublisher swallows events. Used when Kafka is not configured.
type NoopEventPublisher struct{}

func NewNoopEventPublisher() *NoopEventPublisher { return &NoopEventPublisher{} }

func (p *NoopEventPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	return nil
}

func (p *NoopEventPublisher) Close() error { return nil }
