package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Package is a purchasable subscription plan.
type Package struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name" validate:"required"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Price        float64            `bson:"price" json:"price" validate:"gte=0"`
	DurationDays int                `bson:"durationDays" json:"durationDays" validate:"gte=1"`
	Popularity   int                `bson:"popularity" json:"popularity"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Subscription is created pending and marked paid on checkout confirmation.
type Subscription struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Package   primitive.ObjectID `bson:"package" json:"package"`
	Amount    float64            `bson:"amount" json:"amount"`
	IsPaid    bool               `bson:"isPaid" json:"isPaid"`
	IsExpired bool               `bson:"isExpired" json:"isExpired"`
	TrnID     string             `bson:"trnId,omitempty" json:"trnId,omitempty"`
	ExpiresAt *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateSubscriptionRequest subscribes the caller to a package.
type CreateSubscriptionRequest struct {
	Package string `json:"package" validate:"required,len=24,hexadecimal"`
}
