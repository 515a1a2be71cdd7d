package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus is the two-phase payment state.
//
//	created -> awaiting_confirmation -> confirmed | failed
//
// IsPaid is true only in the confirmed state.
type PaymentStatus string

const (
	PaymentCreated              PaymentStatus = "created"
	PaymentAwaitingConfirmation PaymentStatus = "awaiting_confirmation"
	PaymentConfirmed            PaymentStatus = "confirmed"
	PaymentFailed               PaymentStatus = "failed"
)

// PaymentTarget says what a payment pays for.
type PaymentTarget int

const (
	TargetNone PaymentTarget = iota
	TargetSubscription
	TargetOrder
)

// Payment joins a monetary transaction to either a subscription or an order.
type Payment struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	User         primitive.ObjectID  `bson:"user" json:"user"`
	Subscription *primitive.ObjectID `bson:"subscription,omitempty" json:"subscription,omitempty"`
	OrderFuel    *primitive.ObjectID `bson:"orderFuel,omitempty" json:"orderFuel,omitempty"`
	Amount       float64             `bson:"amount" json:"amount"`
	TranID       string              `bson:"tranId" json:"tranId"`
	SessionID    string              `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	DiscountCode string              `bson:"discountCode,omitempty" json:"discountCode,omitempty"`
	IsPaid       bool                `bson:"isPaid" json:"isPaid"`
	Status       PaymentStatus       `bson:"status" json:"status"`
	IsDeleted    bool                `bson:"isDeleted" json:"-"`
	ConfirmedAt  *time.Time          `bson:"confirmedAt,omitempty" json:"confirmedAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Target reports which entity the payment references.
func (p *Payment) Target() PaymentTarget {
	switch {
	case p.OrderFuel != nil && !p.OrderFuel.IsZero():
		return TargetOrder
	case p.Subscription != nil && !p.Subscription.IsZero():
		return TargetSubscription
	default:
		return TargetNone
	}
}

// PaymentDetails is a payment with its references populated for reports
// and history listings.
type PaymentDetails struct {
	ID           primitive.ObjectID  `bson:"_id" json:"id"`
	Amount       float64             `bson:"amount" json:"amount"`
	TranID       string              `bson:"tranId" json:"tranId"`
	Status       PaymentStatus       `bson:"status" json:"status"`
	IsPaid       bool                `bson:"isPaid" json:"isPaid"`
	User         *UserSummary        `bson:"user,omitempty" json:"user,omitempty"`
	Subscription *Subscription       `bson:"subscription,omitempty" json:"subscription,omitempty"`
	Package      *Package            `bson:"package,omitempty" json:"package,omitempty"`
	OrderFuel    *primitive.ObjectID `bson:"orderFuel,omitempty" json:"orderFuel,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CheckoutRequest is the body of POST /payments/checkout. Exactly one of
// Subscription and OrderFuel must be set.
type CheckoutRequest struct {
	Subscription string `json:"subscription,omitempty" validate:"omitempty,len=24,hexadecimal"`
	OrderFuel    string `json:"orderFuel,omitempty" validate:"omitempty,len=24,hexadecimal"`
	Code         string `json:"code,omitempty"`
}

// CheckoutResult is returned to the client after a gateway session is opened.
type CheckoutResult struct {
	PaymentID string  `json:"paymentId"`
	SessionID string  `json:"sessionId"`
	URL       string  `json:"url"`
	Amount    float64 `json:"amount"`
}

// UpdatePaymentRequest is the admin payload for PATCH /payments/update/{id}.
type UpdatePaymentRequest struct {
	TranID *string        `json:"tranId,omitempty"`
	Status *PaymentStatus `json:"status,omitempty"`
}
