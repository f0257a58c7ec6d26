package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bibbank/trust-engine/pkg/events"
	pkgkafka "github.com/bibbank/trust-engine/pkg/kafka"
)

// MessageProducer is the subset of the Kafka producer used by Publisher.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// Publisher implements port.EventPublisher using Kafka. Each event goes to
// the topic named after its event type, keyed by aggregate ID so that events
// for one product stay ordered.
type Publisher struct {
	producer MessageProducer
	logger   *slog.Logger
}

// NewPublisher creates a new Kafka event publisher.
func NewPublisher(producer MessageProducer, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
	}
}

// Publish sends domain events to Kafka.
func (p *Publisher) Publish(ctx context.Context, domainEvents ...events.DomainEvent) error {
	byTopic := make(map[string][]pkgkafka.Message)
	var order []string

	for _, evt := range domainEvents {
		eventType := evt.EventType()

		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
		}

		p.logger.DebugContext(ctx, "publishing event",
			slog.String("event_type", eventType),
			slog.String("event_id", evt.EventID()),
			slog.Int("payload_size", len(payload)),
		)

		if _, seen := byTopic[eventType]; !seen {
			order = append(order, eventType)
		}
		byTopic[eventType] = append(byTopic[eventType], pkgkafka.Message{
			Key:   []byte(evt.AggregateID()),
			Value: payload,
			Headers: map[string]string{
				"event_id":       evt.EventID(),
				"event_type":     eventType,
				"aggregate_type": evt.AggregateType(),
			},
		})
	}

	for _, topic := range order {
		if err := p.producer.Publish(ctx, topic, byTopic[topic]...); err != nil {
			return fmt.Errorf("failed to publish events to %s: %w", topic, err)
		}
	}
	return nil
}
