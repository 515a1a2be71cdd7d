package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ModelType string

const (
	ModelPayment ModelType = "Payment"
	ModelOrder   ModelType = "Order"
)

// Notification is an in-app message for one receiver.
type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Receiver    primitive.ObjectID  `bson:"receiver" json:"receiver" validate:"required"`
	Message     string              `bson:"message" json:"message" validate:"required"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Reference   *primitive.ObjectID `bson:"reference,omitempty" json:"reference,omitempty"`
	ModelType   ModelType           `bson:"modelType,omitempty" json:"modelType,omitempty"`
	IsRead      bool                `bson:"isRead" json:"isRead"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}
