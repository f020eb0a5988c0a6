// Package mq provides a broker-agnostic message queue used to hand
// outbound email to the mail worker. RabbitMQ and Google Cloud
// Pub/Sub backends are supported.
package mq

import (
	"context"
	"fmt"

	"github.com/lifenippon/apiserver/config"
)

// Message is a broker-agnostic payload delivered to a subscriber.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes one message. A non-nil error nacks the delivery
// and leaves redelivery to the broker.
type Handler func(ctx context.Context, msg Message) error

// Backend is the minimal broker surface the app depends on.
type Backend interface {
	Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) error
	Subscribe(ctx context.Context, queue string, handler Handler) error
	Close() error
}

// NewBackend constructs the broker backend named by cfg.Backend.
func NewBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Queue.Backend {
	case "rabbitmq":
		return NewRabbitMQBackend(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
