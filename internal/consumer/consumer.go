// Package consumer provides Kafka consumer functionality for the change
// events topic emitted by the data-collection layer.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kritinkaul/automated-esg-tracker/internal/events"
)

const (
	// maxPollWait is the maximum time the reader waits before returning
	// whatever data is available.
	maxPollWait = 500 * time.Millisecond
)

// Consumer wraps a Kafka reader and provides a simple interface for
// consuming change events.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// parseBrokers parses a comma-separated broker list and trims whitespace.
func parseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return brokerList
}

// NewConsumer creates a new Kafka consumer with the specified brokers,
// topic, and group ID. The consumer is configured for at-least-once
// delivery semantics; the dedup window downstream absorbs redeliveries.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	brokerList := parseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	// StartOffset only applies when no committed offset exists for the
	// consumer group. FirstOffset ensures all messages are read when
	// starting fresh. Offsets are committed explicitly after processing.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokerList,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     maxPollWait,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// ReadMessage reads the next message from Kafka and deserializes it as a
// ChangeEvent. Returns an error if reading or deserialization fails; on a
// deserialization failure the raw message is returned so the caller can
// commit past it.
func (c *Consumer) ReadMessage(ctx context.Context) (*events.ChangeEvent, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	var ev events.ChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return nil, &msg, fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	return &ev, &msg, nil
}

// CommitMessage commits the offset for the given message.
// This should be called after the event reaches a terminal outcome.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully")
	return nil
}
