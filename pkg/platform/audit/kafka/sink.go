// Package kafka publishes audit events to a pre-provisioned Kafka topic.
// Compliance retention and consumer fan-out live downstream of the broker.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"fortaudit/pkg/platform/audit"
)

// producer is the slice of kgo.Client the sink needs; tests substitute a
// fake to avoid a live broker.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Sink struct {
	client producer
	topic  string
}

// New builds a sink over a live Kafka client.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// NewWithProducer wires a custom producer. Exported for tests.
func NewWithProducer(p producer, topic string) *Sink {
	return &Sink{client: p, topic: topic}
}

// Append produces one event synchronously. Audit writes favor delivery
// confirmation over latency: a lost compliance event is worse than a slow
// transition.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.SessionID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
