package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"apihub/internal/event/models"
	"apihub/internal/platform/kafka/producer"
)

// DefaultTopic carries the event log to downstream consumers.
const DefaultTopic = "apihub.events"

// MessageProducer is the subset of the Kafka producer used by KafkaSink.
type MessageProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// KafkaSink publishes events keyed by entity id, so one entity's timeline
// stays in one partition and keeps its order.
type KafkaSink struct {
	producer MessageProducer
	topic    string
}

func NewKafkaSink(p MessageProducer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{producer: p, topic: topic}
}

func (k *KafkaSink) Send(_ context.Context, e models.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return k.producer.ProduceAsync(&producer.Message{
		Topic: k.topic,
		Key:   []byte(e.EntityID),
		Value: payload,
		Headers: map[string]string{
			"event_id":    e.ID.String(),
			"entity_type": string(e.EntityType),
			"event_type":  string(e.EventType),
		},
	})
}
