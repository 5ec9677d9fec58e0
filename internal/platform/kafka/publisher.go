// Package kafka publishes forwarded rows to the analytical pipeline's
// broker, one topic per source table.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher produces masked rows as JSON records on `<prefix>.<table>`
// topics. Production is synchronous: the forwarder's watermark must not
// advance past a row the broker has not acknowledged.
type Publisher struct {
	client *kgo.Client
	prefix string
}

func NewPublisher(brokers []string, topicPrefix string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Publisher{client: client, prefix: topicPrefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, table string, row map[string]any) error {
	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}
	record := &kgo.Record{
		Topic: p.prefix + "." + table,
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", record.Topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}
