package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FuelType string

const (
	FuelDiesel   FuelType = "Diesel"
	FuelPetrol   FuelType = "Petrol"
	FuelElectric FuelType = "Electric"
)

type OrderType string

const (
	OrderTypeFuel    OrderType = "Fuel"
	OrderTypeBattery OrderType = "Battery"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderInProgress OrderStatus = "InProgress"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

// IsValidOrderStatus reports whether s is one of the known order states.
func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderInProgress, OrderDelivered, OrderCancelled:
		return true
	default:
		return false
	}
}

// CanMoveTo reports whether an order in state s may move to next. Orders
// only move forward; Delivered and Cancelled are final.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case OrderPending:
		return next == OrderInProgress || next == OrderCancelled
	case OrderInProgress:
		return next == OrderDelivered || next == OrderCancelled
	default:
		return false
	}
}

// Order is a customer's fuel or battery delivery request.
// Price and FinalAmountOfPayment are computed once at creation and never
// rewritten by updates.
type Order struct {
	ID                   primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Location             GeoPoint            `bson:"location" json:"location"`
	VehicleID            primitive.ObjectID  `bson:"vehicleId" json:"vehicleId"`
	UserID               primitive.ObjectID  `bson:"userId" json:"userId"`
	DriverID             *primitive.ObjectID `bson:"driverId,omitempty" json:"driverId,omitempty"`
	FuelType             FuelType            `bson:"fuelType" json:"fuelType"`
	Amount               float64             `bson:"amount" json:"amount"`
	OrderType            OrderType           `bson:"orderType" json:"orderType"`
	OrderStatus          OrderStatus         `bson:"orderStatus" json:"orderStatus"`
	DeliveryFee          float64             `bson:"deliveryFee" json:"deliveryFee"`
	Tip                  float64             `bson:"tip" json:"tip"`
	Price                float64             `bson:"price" json:"price"`
	FinalAmountOfPayment float64             `bson:"finalAmountOfPayment" json:"finalAmountOfPayment"`
	PaymentID            *primitive.ObjectID `bson:"paymentId,omitempty" json:"paymentId"`
	IsPaid               bool                `bson:"isPaid" json:"isPaid"`
	CancelReason         string              `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	IsDeleted            bool                `bson:"isDeleted" json:"-"`
	CreatedAt            time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time           `bson:"updatedAt" json:"updatedAt"`

	// populated from users on listing, never stored
	User *UserSummary `bson:"user,omitempty" json:"user,omitempty"`
}

// CreateOrderRequest is the body of POST /orders/create-orderFuel.
type CreateOrderRequest struct {
	Location    GeoPoint  `json:"location"`
	VehicleID   string    `json:"vehicleId" validate:"required,len=24,hexadecimal"`
	FuelType    FuelType  `json:"fuelType" validate:"required,oneof=Diesel Petrol Electric"`
	Amount      float64   `json:"amount" validate:"gte=0"`
	OrderType   OrderType `json:"orderType" validate:"required,oneof=Fuel Battery"`
	DeliveryFee float64   `json:"deliveryFee" validate:"gte=0"`
	Tip         float64   `json:"tip" validate:"gte=0"`
}

// UpdateOrderRequest lists the fields a client may change after creation.
type UpdateOrderRequest struct {
	OrderStatus  *OrderStatus `json:"orderStatus,omitempty"`
	CancelReason *string      `json:"cancelReason,omitempty"`
	DeliveryFee  *float64     `json:"deliveryFee,omitempty" validate:"omitempty,gte=0"`
	Tip          *float64     `json:"tip,omitempty" validate:"omitempty,gte=0"`
	DriverID     *string      `json:"driverId,omitempty" validate:"omitempty,len=24,hexadecimal"`
	VehicleID    *string      `json:"vehicleId,omitempty" validate:"omitempty,len=24,hexadecimal"`
	Location     *GeoPoint    `json:"location,omitempty"`
}
