package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// TopicPrefix namespaces every MQTT topic of this service.
const TopicPrefix = "fuel/"

// MQTTTopic maps a dotted event name to its MQTT topic,
// e.g. order.created -> fuel/order/created.
func MQTTTopic(topic string) string {
	return TopicPrefix + strings.ReplaceAll(topic, ".", "/")
}

// NewMQTTClient connects an auto reconnecting paho client.
func NewMQTTClient(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

// MQTTPublisher publishes events with QoS 1.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to brokerURL.
func NewMQTTPublisher(brokerURL, clientID string) (*MQTTPublisher, error) {
	client, err := NewMQTTClient(brokerURL, clientID)
	if err != nil {
		return nil, err
	}
	log.WithField("broker", brokerURL).Info("mqtt event publisher connected")
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	token := p.client.Publish(MQTTTopic(topic), 1, false, body)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
