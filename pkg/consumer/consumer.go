// Package consumer reads JSON messages of one type from a Kafka topic.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ErrMalformed wraps payloads that could not be decoded. Such messages are
// committed so the reader moves past them.
var ErrMalformed = errors.New("malformed message")

type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer[T any] struct {
	reader messageReader
}

func NewConsumer[T any](cfg Config) *Consumer[T] {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})
	return &Consumer[T]{reader: r}
}

// Read blocks for the next message and decodes it.
func (c *Consumer[T]) Read(ctx context.Context) (T, error) {
	var zero T

	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return zero, err
	}

	var payload T
	decodeErr := json.Unmarshal(msg.Value, &payload)

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return zero, fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}
	if decodeErr != nil {
		return zero, fmt.Errorf("%w at offset %d: %v", ErrMalformed, msg.Offset, decodeErr)
	}
	return payload, nil
}

func (c *Consumer[T]) Close() error {
	return c.reader.Close()
}
