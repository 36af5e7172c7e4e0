// Package mq carries asynchronous jobs between the API and the mail worker
// over RabbitMQ, Google Pub/Sub, or an in-process queue.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/contactsbook/apiserver/config"
)

const (
	AttrContentType = "content-type"
	ContentTypeJSON = "application/json"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string

	// Redelivered is set when the message was nacked before. A redelivered
	// message that fails again is dropped.
	Redelivered bool
}

// Handler processes a message. Returning an error nacks it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// New connects to the broker selected by cfg.Backend.
func New(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "rabbitmq":
		return NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubClient(ctx, cfg.PubSub)
	case "memory":
		return NewMemoryBroker(0), nil
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}

// PublishJSON encodes v and publishes it with a JSON content type.
func PublishJSON(ctx context.Context, b Backend, channel string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return b.Publish(ctx, channel, data, map[string]string{AttrContentType: ContentTypeJSON})
}

// DecodeJSON unmarshals the payload of msg into v.
func DecodeJSON(msg Message, v any) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("decode message %s: %w", msg.ID, err)
	}
	return nil
}
