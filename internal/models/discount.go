package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Discount is a percentage-off voucher. UserID and IsUsed record the most
// recent redemption; UsedBy holds every user that redeemed it.
type Discount struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Code      string               `bson:"code" json:"code" validate:"required"`
	Discount  float64              `bson:"discount" json:"discount" validate:"gt=0,lte=100"`
	EndDate   time.Time            `bson:"endDate" json:"endDate" validate:"required"`
	UserID    *primitive.ObjectID  `bson:"userId,omitempty" json:"userId,omitempty"`
	IsUsed    bool                 `bson:"isUsed" json:"isUsed"`
	UsedBy    []primitive.ObjectID `bson:"usedBy,omitempty" json:"usedBy,omitempty"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Expired reports whether the code is past its end date at now.
func (d *Discount) Expired(now time.Time) bool {
	return d.EndDate.Before(now)
}

// RedeemedBy reports whether user already consumed this code.
func (d *Discount) RedeemedBy(user primitive.ObjectID) bool {
	if d.UserID != nil && *d.UserID == user {
		return true
	}
	for _, u := range d.UsedBy {
		if u == user {
			return true
		}
	}
	return false
}
