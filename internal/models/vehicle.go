package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle is a customer vehicle that receives fuel or a battery swap.
type Vehicle struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Make        string             `bson:"make" json:"make" validate:"required"`
	Model       string             `bson:"model" json:"model" validate:"required"`
	Year        int                `bson:"year" json:"year" validate:"omitempty,gte=1950,lte=2100"`
	PlateNumber string             `bson:"plateNumber" json:"plateNumber" validate:"required"`
	FuelType    FuelType           `bson:"fuelType" json:"fuelType" validate:"required,oneof=Diesel Petrol Electric"`
	Color       string             `bson:"color,omitempty" json:"color,omitempty"`
	IsDeleted   bool               `bson:"isDeleted" json:"-"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
