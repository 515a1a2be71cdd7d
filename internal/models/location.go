package models

import (
	"time"

	"github.com/ukydev/fuel-delivery/internal/geo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Valid reports whether p is a well formed point inside WGS84 bounds.
// An empty Type is accepted and treated as "Point".
func (p GeoPoint) Valid() bool {
	if p.Type != "" && p.Type != "Point" {
		return false
	}
	if len(p.Coordinates) != 2 {
		return false
	}
	return geo.ValidCoordinates(p.Coordinates[0], p.Coordinates[1])
}

// Normalized returns p with Type filled in.
func (p GeoPoint) Normalized() GeoPoint {
	return NewGeoPoint(p.Lng(), p.Lat())
}

// Location is a registered service point. Orders are only admitted near one.
type Location struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Address   string             `bson:"address" json:"address"`
	Location  GeoPoint           `bson:"location" json:"location"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
