package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Event types published to the event stream.
const (
	EventSaleCompleted = "sale.completed"
	EventAudit         = "audit.recorded"
)

// Event is the envelope written to the stream. Key selects the partition so
// all events about the same aggregate stay ordered.
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// EventPublisher publishes domain events after their transaction committed.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error { return nil }

// KafkaPublisher writes events synchronously to a single topic through a
// circuit breaker.
type KafkaPublisher struct {
	writer  *kafka.Writer
	breaker *CircuitBreaker
}

// NewEventPublisher returns a KafkaPublisher when brokers is non-empty and a
// NoopPublisher otherwise.
func NewEventPublisher(brokers []string, topic string) EventPublisher {
	if len(brokers) == 0 {
		log.Info().Msg("event stream disabled: KAFKA_BROKERS is empty")
		return NoopPublisher{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: 5 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf("kafka writer: "+msg, args...)
		}),
	}
	return &KafkaPublisher{
		writer:  w,
		breaker: NewCircuitBreaker(DefaultCBConfig("kafka")),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.breaker.Execute(func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
