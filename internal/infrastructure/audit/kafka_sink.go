package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/pkg/kafka"
)

// TopicAuditRecords carries one message per audit record, keyed by product ID.
const TopicAuditRecords = "trust.audit.records"

// MessageProducer is the subset of the Kafka producer used by KafkaSink.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, messages ...kafka.Message) error
}

// KafkaSink ships audit records to a Kafka topic for the log pipeline.
type KafkaSink struct {
	producer MessageProducer
	topic    string
}

// NewKafkaSink creates a KafkaSink. An empty topic uses TopicAuditRecords.
func NewKafkaSink(producer MessageProducer, topic string) *KafkaSink {
	if topic == "" {
		topic = TopicAuditRecords
	}
	return &KafkaSink{producer: producer, topic: topic}
}

// Write implements port.AuditSink.
func (s *KafkaSink) Write(ctx context.Context, records ...model.AuditRecord) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(toPayload(rec))
		if err != nil {
			return fmt.Errorf("marshaling audit record %s: %w", rec.ID(), err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.ProductID()),
			Value: value,
			Headers: map[string]string{
				"audit_id":     rec.ID().String(),
				"content-type": "application/json",
			},
		})
	}
	if err := s.producer.Publish(ctx, s.topic, msgs...); err != nil {
		return fmt.Errorf("writing audit records: %w", err)
	}
	return nil
}
