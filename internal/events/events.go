// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"fmt"

	"github.com/ukydev/fuel-delivery/internal/config"
)

// Topics.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	PaymentConfirmed   = "payment.confirmed"
)

// Publisher sends JSON encoded events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// New returns the publisher selected by cfg.Broker.
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Broker {
	case "", "none":
		return Nop{}, nil
	case "mqtt":
		p, err := NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "amqp":
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported event broker %q", cfg.Broker)
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
func (Nop) Close() error                                       { return nil }
