package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Question is a delivery checklist question answered for an order.
type Question struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Text       string              `bson:"text" json:"text" validate:"required"`
	AnswerType string              `bson:"answerType" json:"answerType" validate:"required"`
	Comment    string              `bson:"comment,omitempty" json:"comment,omitempty"`
	OrderID    *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	DriverID   *primitive.ObjectID `bson:"driverId,omitempty" json:"driverId,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}
