package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DriverEarning records what a driver earned for a delivery.
type DriverEarning struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"userId" json:"userId" validate:"required"`
	OrderID   *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Amount    float64             `bson:"amount" json:"amount" validate:"gte=0"`
	Note      string              `bson:"note,omitempty" json:"note,omitempty"`
	IsDeleted bool                `bson:"isDeleted" json:"-"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}
