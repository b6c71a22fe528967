// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"rostersync/internal/audit"
)

// Publisher produces one JSON record per audit event, keyed by scope so
// events for one academy stay ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		return fmt.Errorf("create kafka topic %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(event.ScopeID, 10)),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the underlying client.
func (p *Publisher) Close() {
	p.client.Close()
}
