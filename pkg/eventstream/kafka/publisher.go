// Package kafka publishes stream events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/papercomputeco/reel/pkg/eventstream"
)

// DefaultTopic is the topic used when none is configured.
const DefaultTopic = "reel-events"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses. At least one is
	// required.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic.
	Topic string
}

// Publisher writes stream events to a Kafka topic. Messages are keyed by
// session ID so events for one session land on one partition and keep
// their delivery order.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Publisher{writer: writer}, nil
}

// PublishEvent marshals the event and writes it to the topic.
func (p *Publisher) PublishEvent(ctx context.Context, event *eventstream.StreamEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal stream event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Run.SessionID),
		Value: payload,
		Time:  event.EmittedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("could not publish stream event: %w", err)
	}

	return nil
}

// Close flushes pending messages and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
