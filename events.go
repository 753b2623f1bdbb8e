package memberkit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// DomainEvent is the outbound notification emitted after a successful
// transaction. Consumers (notification fan-out, cache invalidation) subscribe
// asynchronously; the engine never waits on them.
type DomainEvent struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CommunityID string         `json:"community_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func newDomainEvent(name, communityID string, payload map[string]any) DomainEvent {
	return DomainEvent{
		ID:          uuid.NewString(),
		Name:        name,
		CommunityID: communityID,
		OccurredAt:  time.Now(),
		Payload:     payload,
	}
}

// NopEmitter discards all events. It is the default when no emitter is
// configured, so MemberKit can be embedded without a broker.
type NopEmitter struct{}

// Emit implements EventEmitter.
func (NopEmitter) Emit(context.Context, DomainEvent) error { return nil }

// KafkaConfig configures the Kafka-backed event emitter.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaEmitter publishes domain events to a Kafka topic, keyed by community ID
// so all events for one community land on the same partition in order.
type KafkaEmitter struct {
	writer *kafka.Writer
}

// NewKafkaEmitter creates a KafkaEmitter.
func NewKafkaEmitter(cfg KafkaConfig) *KafkaEmitter {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaEmitter{writer: w}
}

// Emit implements EventEmitter.
func (e *KafkaEmitter) Emit(ctx context.Context, event DomainEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.CommunityID),
		Value: value,
	}
	return e.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (e *KafkaEmitter) Close() error {
	if e == nil || e.writer == nil {
		return nil
	}
	return e.writer.Close()
}
