package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverLocation is the latest reported position of a driver.
type DriverLocation struct {
	DriverID  primitive.ObjectID `bson:"driverId" json:"driverId"`
	Location  GeoPoint           `bson:"location" json:"location"`
	Speed     float64            `bson:"speed" json:"speed"`
	Heading   float64            `bson:"heading" json:"heading"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LocationReport is the message a driver device publishes.
type LocationReport struct {
	DriverID  string    `json:"driverId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}
