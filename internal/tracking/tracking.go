// Package tracking ingests driver position reports from MQTT.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/events"
	"github.com/ukydev/fuel-delivery/internal/geo"
	"github.com/ukydev/fuel-delivery/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LocationTopic is the subscription filter for every driver.
var LocationTopic = events.TopicPrefix + "drivers/+/location"

// DriverTopic is where a single driver publishes its position.
func DriverTopic(driverID string) string {
	return events.TopicPrefix + "drivers/" + driverID + "/location"
}

// driverFromTopic extracts the driver id from fuel/drivers/<id>/location.
func driverFromTopic(topic string) string {
	parts := strings.Split(strings.TrimPrefix(topic, events.TopicPrefix), "/")
	if len(parts) != 3 || parts[0] != "drivers" || parts[2] != "location" {
		return ""
	}
	return parts[1]
}

// Subscriber stores reported positions.
type Subscriber struct {
	Locations db.DriverLocationCollection
	Timeout   time.Duration
}

// NewSubscriber returns a Subscriber writing to locations.
func NewSubscriber(locations db.DriverLocationCollection) *Subscriber {
	return &Subscriber{Locations: locations, Timeout: 5 * time.Second}
}

// Decode validates a report received on topic. The driver id in the topic
// wins over the one in the payload.
func Decode(topic string, payload []byte) (models.DriverLocation, error) {
	var report models.LocationReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return models.DriverLocation{}, fmt.Errorf("invalid location payload: %w", err)
	}
	driverID := driverFromTopic(topic)
	if driverID == "" {
		driverID = report.DriverID
	}
	oid, err := primitive.ObjectIDFromHex(driverID)
	if err != nil {
		return models.DriverLocation{}, fmt.Errorf("invalid driver id %q", driverID)
	}
	if !geo.ValidCoordinates(report.Lng, report.Lat) {
		return models.DriverLocation{}, fmt.Errorf("coordinates out of range: %v,%v", report.Lat, report.Lng)
	}
	ts := report.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return models.DriverLocation{
		DriverID:  oid,
		Location:  models.NewGeoPoint(report.Lng, report.Lat),
		Speed:     report.Speed,
		Heading:   report.Heading,
		Timestamp: ts,
	}, nil
}

// Handle decodes and stores one message.
func (s *Subscriber) Handle(ctx context.Context, topic string, payload []byte) error {
	loc, err := Decode(topic, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return s.Locations.Upsert(ctx, loc)
}

// Subscribe registers on client until ctx is cancelled.
func (s *Subscriber) Subscribe(ctx context.Context, client mqtt.Client) error {
	token := client.Subscribe(LocationTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("dropping driver location")
		}
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt subscribe to %s timed out", LocationTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	log.WithField("topic", LocationTopic).Info("subscribed to driver locations")

	go func() {
		<-ctx.Done()
		client.Unsubscribe(LocationTopic)
	}()
	return nil
}
