// Package kafka publishes committed message changes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/goliatone/go-inbox/core"
)

// Writer is the subset of kafka-go's Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Publisher implements core.EventPublisher. Events are keyed by provider id so
// every change of one message lands on the same partition.
type Publisher struct {
	writer Writer
	source string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	if len(addrs) == 0 {
		return nil, core.NewBadInputError("kafka: at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, core.NewBadInputError("kafka: topic is required")
	}
	return &Publisher{
		writer: &skafka.Writer{
			Addr:         skafka.TCP(addrs...),
			Topic:        strings.TrimSpace(topic),
			Balancer:     &skafka.Hash{},
			RequiredAcks: skafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		source: "go-inbox",
	}, nil
}

// NewPublisherWithWriter allows injecting a test writer.
func NewPublisherWithWriter(writer Writer) *Publisher {
	return &Publisher{writer: writer, source: "go-inbox"}
}

func (p *Publisher) Publish(ctx context.Context, event core.MessageEvent) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("kafka: writer is not configured")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}
	msg := skafka.Message{
		Key:   []byte(event.Message.ProviderID),
		Value: value,
		Headers: []skafka.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "source", Value: []byte(p.source)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

var _ core.EventPublisher = (*Publisher)(nil)
