// Command simulator drives fake delivery drivers around service cities and
// publishes their positions over MQTT, the way driver devices do.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/events"
	"github.com/ukydev/fuel-delivery/internal/geo"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/tracking"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64
	Lng float64
}

// Service cities drivers start in and travel between.
var cities = []Point{
	{Lat: 40.7128, Lng: -74.0060},  // New York
	{Lat: 40.7357, Lng: -74.1724},  // Newark
	{Lat: 40.9168, Lng: -74.1718},  // Paterson
	{Lat: 41.0534, Lng: -73.5387},  // Stamford
	{Lat: 39.9526, Lng: -75.1652},  // Philadelphia
	{Lat: 40.2206, Lng: -74.7597},  // Trenton
	{Lat: 41.3083, Lng: -72.9279},  // New Haven
	{Lat: 34.0522, Lng: -118.2437}, // Los Angeles
	{Lat: 33.7701, Lng: -118.1937}, // Long Beach
	{Lat: 34.1478, Lng: -118.1445}, // Pasadena
}

const metersPerDegree = 111320.0

func jitter(base Point, meters float64) Point {
	lngMetersPerDeg := metersPerDegree * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / metersPerDegree)
	dLng := (rand.Float64()*2 - 1) * (meters / lngMetersPerDeg)
	return Point{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}

func randomStart() Point {
	return jitter(cities[rand.Intn(len(cities))], 500)
}

func distanceMiles(a, b Point) float64 {
	return geo.HaversineMiles(a.Lat, a.Lng, b.Lat, b.Lng)
}

func lerp(a, b Point, t float64) Point {
	return Point{Lat: a.Lat + (b.Lat-a.Lat)*t, Lng: a.Lng + (b.Lng-a.Lng)*t}
}

// bearing is the initial compass heading from a to b in degrees.
func bearing(a, b Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

// Route is a polyline a driver follows.
type Route struct {
	Points    []Point
	SegIndex  int
	SegOffset float64 // miles along current segment
}

// DriverState is one simulated driver.
type DriverState struct {
	DriverID string
	Position Point
	Heading  float64
	SpeedMph float64
	Route    *Route
}

// Router plans road routes between two points.
type Router interface {
	Route(start, end Point) ([]Point, error)
}

// OSRMRouter asks an OSRM server for a driving route.
type OSRMRouter struct {
	BaseURL string
	Client  *http.Client
}

func (o OSRMRouter) Route(start, end Point) ([]Point, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		strings.TrimSuffix(o.BaseURL, "/"), start.Lng, start.Lat, end.Lng, end.Lat)
	resp, err := o.Client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var obj struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("no route")
	}
	pts := make([]Point, 0, len(obj.Routes[0].Geometry.Coordinates))
	for _, c := range obj.Routes[0].Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, Point{Lat: c[1], Lng: c[0]})
	}
	return pts, nil
}

// pickDestination chooses a city at least minMiles away, if there is one.
func pickDestination(from Point, minMiles float64) Point {
	for i := 0; i < 10; i++ {
		cand := cities[rand.Intn(len(cities))]
		if distanceMiles(from, cand) > minMiles {
			return jitter(cand, 500)
		}
	}
	return jitter(from, 3000)
}

func planRoute(s *DriverState, router Router) {
	end := pickDestination(s.Position, 5)
	if router != nil {
		pts, err := router.Route(s.Position, end)
		if err == nil {
			s.Route = &Route{Points: pts}
			return
		}
		log.WithError(err).WithField("driver_id", s.DriverID).Debug("routing failed, driving straight")
	}
	s.Route = &Route{Points: []Point{s.Position, end}}
}

// step advances s by tickSec of driving at its current speed.
func step(s *DriverState, tickSec float64, router Router) {
	if s.Route == nil || len(s.Route.Points) < 2 {
		planRoute(s, router)
	}
	remaining := s.SpeedMph * (tickSec / 3600.0)
	for remaining > 0 && s.Route.SegIndex < len(s.Route.Points)-1 {
		a := s.Route.Points[s.Route.SegIndex]
		b := s.Route.Points[s.Route.SegIndex+1]
		segLen := distanceMiles(a, b)
		s.Heading = bearing(a, b)
		left := segLen - s.Route.SegOffset
		if remaining >= left {
			s.Position = b
			s.Route.SegIndex++
			s.Route.SegOffset = 0
			remaining -= left
			continue
		}
		t := (s.Route.SegOffset + remaining) / segLen
		s.Position = lerp(a, b, math.Max(0, math.Min(1, t)))
		s.Route.SegOffset += remaining
		remaining = 0
	}
	if s.Route.SegIndex >= len(s.Route.Points)-1 {
		planRoute(s, router)
	}
}

func report(s *DriverState, now time.Time) models.LocationReport {
	return models.LocationReport{
		DriverID:  s.DriverID,
		Lat:       s.Position.Lat,
		Lng:       s.Position.Lng,
		Speed:     s.SpeedMph,
		Heading:   s.Heading,
		Timestamp: now.UTC(),
	}
}

// Publisher sends a raw message to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func sendReport(pub Publisher, r models.LocationReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	if err := pub.Publish(tracking.DriverTopic(r.DriverID), data); err != nil {
		return fmt.Errorf("publish location: %w", err)
	}
	return nil
}

func simulateDriver(ctx context.Context, pub Publisher, router Router, s *DriverState, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			s.SpeedMph += (rand.Float64()*2 - 1) * 1.5
			s.SpeedMph = math.Max(10, math.Min(55, s.SpeedMph))
			step(s, interval.Seconds(), router)

			if err := sendReport(pub, report(s, now)); err != nil {
				log.WithError(err).WithField("driver_id", s.DriverID).Warn("failed to send location")
				continue
			}
			log.WithFields(log.Fields{
				"driver_id": s.DriverID,
				"lat":       s.Position.Lat,
				"lng":       s.Position.Lng,
			}).Debug("sent location")
		}
	}
}

// driverIDs returns the ids listed in raw or n fresh ones.
func driverIDs(raw string, n int) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if primitive.IsValidObjectID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		return ids
	}
	for i := 0; i < n; i++ {
		ids = append(ids, primitive.NewObjectID().Hex())
	}
	return ids
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	_ = godotenv.Load()

	broker := os.Getenv("MQTT_BROKER_URL")
	if broker == "" {
		broker = "tcp://localhost:1883"
	}
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second
	ids := driverIDs(os.Getenv("SIM_DRIVER_IDS"), envInt("SIM_DRIVERS", 10))

	var router Router
	if u := os.Getenv("SIM_OSRM_URL"); u != "" {
		router = OSRMRouter{BaseURL: u, Client: &http.Client{Timeout: 10 * time.Second}}
	}

	client, err := events.NewMQTTClient(broker, "fuel-delivery-simulator")
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MQTT broker")
	}
	defer client.Disconnect(250)
	pub := mqttPublisher{client: client}

	log.WithFields(log.Fields{
		"drivers":  len(ids),
		"broker":   broker,
		"interval": interval,
	}).Info("starting driver simulation")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, id := range ids {
		s := &DriverState{
			DriverID: id,
			Position: randomStart(),
			SpeedMph: 20 + rand.Float64()*20,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulateDriver(ctx, pub, router, s, interval)
		}()
	}
	wg.Wait()
	log.Info("simulation stopped")
}
