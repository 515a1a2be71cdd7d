package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/events"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"github.com/ukydev/fuel-delivery/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderSpec is what order listings accept.
var OrderSpec = query.Spec{
	SearchFields: []string{"fuelType", "orderType", "orderStatus", "cancelReason"},
	Filters: map[string]query.FieldKind{
		"fuelType":    query.String,
		"orderType":   query.String,
		"orderStatus": query.String,
		"isPaid":      query.Bool,
		"vehicleId":   query.ObjectID,
		"driverId":    query.ObjectID,
	},
}

// OrderEvent is the payload of order events.
type OrderEvent struct {
	OrderID     string             `json:"orderId"`
	UserID      string             `json:"userId"`
	OrderStatus models.OrderStatus `json:"orderStatus"`
	FuelType    models.FuelType    `json:"fuelType"`
	Amount      float64            `json:"amount"`
	Final       float64            `json:"finalAmountOfPayment"`
	At          time.Time          `json:"at"`
}

// OrderService implements order creation, views and lifecycle.
type OrderService struct {
	Orders   db.OrderCollection
	Geofence *Geofence
	Events   events.Publisher
	Now      func() time.Time
}

func NewOrderService(orders db.OrderCollection, geofence *Geofence, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderService{
		Orders:   orders,
		Geofence: geofence,
		Events:   publisher,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) publish(ctx context.Context, topic string, o *models.Order) {
	ev := OrderEvent{
		OrderID:     o.ID.Hex(),
		UserID:      o.UserID.Hex(),
		OrderStatus: o.OrderStatus,
		FuelType:    o.FuelType,
		Amount:      o.Amount,
		Final:       o.FinalAmountOfPayment,
		At:          s.Now(),
	}
	if err := s.Events.Publish(ctx, topic, ev); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("failed to publish order event")
	}
}

// Create prices the request, checks the service area and stores a pending,
// unpaid order. Nothing is written when pricing or the area check fails.
func (s *OrderService) Create(ctx context.Context, caller Caller, req models.CreateOrderRequest) (*models.Order, error) {
	if err := validation.Struct(req); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	quote, err := QuoteOrder(req.FuelType, req.Amount, req.DeliveryFee, req.Tip)
	if err != nil {
		return nil, err
	}
	if err := s.Geofence.Admit(ctx, req.Location); err != nil {
		return nil, err
	}

	vehicleID, err := primitive.ObjectIDFromHex(req.VehicleID)
	if err != nil {
		return nil, apperr.InvalidInput("invalid vehicle id")
	}

	order := &models.Order{
		Location:             req.Location.Normalized(),
		VehicleID:            vehicleID,
		UserID:               caller.ID,
		FuelType:             req.FuelType,
		Amount:               req.Amount,
		OrderType:            req.OrderType,
		OrderStatus:          models.OrderPending,
		DeliveryFee:          req.DeliveryFee,
		Tip:                  req.Tip,
		Price:                quote.Price,
		FinalAmountOfPayment: quote.Final,
		IsPaid:               false,
	}
	order.Init(s.Now())

	if err := s.Orders.Insert(ctx, order); err != nil {
		return nil, apperr.PersistenceFailure("Failed to create order", err)
	}

	log.WithFields(log.Fields{"order": order.ID.Hex(), "user": caller.ID.Hex(), "final": order.FinalAmountOfPayment}).Info("order created")
	s.publish(ctx, events.OrderCreated, order)
	return order, nil
}

func (s *OrderService) scope(caller Caller) bson.M {
	return caller.Scope("userId", models.RoleDriver)
}

// Get returns one order visible to caller.
func (s *OrderService) Get(ctx context.Context, caller Caller, id string) (*models.Order, error) {
	oid, err := db.ObjectID(id)
	if err != nil {
		return nil, storeError(err, "order")
	}
	order, err := s.Orders.FindOne(ctx, scoped(s.scope(caller), bson.M{"_id": oid}))
	if err != nil {
		return nil, storeError(err, "order")
	}
	return order, nil
}

// List returns the orders visible to caller.
func (s *OrderService) List(ctx context.Context, caller Caller, values url.Values) (*query.Page[models.Order], error) {
	q, err := query.Parse(values, OrderSpec)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, s.scope(caller), q)
}

// ListByStatus is a paid-order view for one status. The status cannot be
// overridden from the query string.
func (s *OrderService) ListByStatus(ctx context.Context, status models.OrderStatus, values url.Values) (*query.Page[models.Order], error) {
	q, err := query.Parse(values, OrderSpec.Without("orderStatus", "isPaid"))
	if err != nil {
		return nil, err
	}
	base := bson.M{"isPaid": true, "orderStatus": status}
	return s.find(ctx, base, q)
}

func (s *OrderService) find(ctx context.Context, base bson.M, q query.Query) (*query.Page[models.Order], error) {
	orders, total, err := s.Orders.Find(ctx, base, q)
	if err != nil {
		return nil, storeError(err, "order")
	}
	return &query.Page[models.Order]{Data: orders, Meta: q.Meta(total)}, nil
}

// Update applies the mutable fields of req. Price fields and payment state
// are never touched. Customers may only cancel their own orders. A new
// location must pass the geofence.
func (s *OrderService) Update(ctx context.Context, caller Caller, id string, req models.UpdateOrderRequest) (*models.Order, error) {
	if err := validation.Struct(req); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	current, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if req.OrderStatus != nil {
		status := *req.OrderStatus
		if !models.IsValidOrderStatus(status) {
			return nil, apperr.InvalidInput("invalid order status")
		}
		if caller.Role == models.RoleUser && status != models.OrderCancelled {
			return nil, apperr.Forbidden("customers can only cancel orders")
		}
		if !current.OrderStatus.CanMoveTo(status) {
			return nil, apperr.InvalidInput(fmt.Sprintf("order cannot move from %s to %s", current.OrderStatus, status))
		}
		if status == models.OrderCancelled {
			reason := current.CancelReason
			if req.CancelReason != nil {
				reason = strings.TrimSpace(*req.CancelReason)
			}
			if reason == "" {
				return nil, apperr.InvalidInput("cancelReason is required to cancel an order")
			}
		}
		set["orderStatus"] = status
	}
	if req.CancelReason != nil {
		set["cancelReason"] = strings.TrimSpace(*req.CancelReason)
	}
	if req.DeliveryFee != nil {
		set["deliveryFee"] = *req.DeliveryFee
	}
	if req.Tip != nil {
		set["tip"] = *req.Tip
	}
	if req.DriverID != nil {
		if caller.Role == models.RoleUser {
			return nil, apperr.Forbidden("customers cannot assign drivers")
		}
		driverID, err := primitive.ObjectIDFromHex(*req.DriverID)
		if err != nil {
			return nil, apperr.InvalidInput("invalid driver id")
		}
		set["driverId"] = driverID
	}
	if req.VehicleID != nil {
		vehicleID, err := primitive.ObjectIDFromHex(*req.VehicleID)
		if err != nil {
			return nil, apperr.InvalidInput("invalid vehicle id")
		}
		set["vehicleId"] = vehicleID
	}
	if req.Location != nil {
		if err := s.Geofence.Admit(ctx, *req.Location); err != nil {
			return nil, err
		}
		set["location"] = req.Location.Normalized()
	}
	if len(set) == 0 {
		return nil, apperr.InvalidInput("nothing to update")
	}

	updated, err := s.Orders.Update(ctx, id, set)
	if err != nil {
		return nil, storeError(err, "order")
	}
	if req.OrderStatus != nil && *req.OrderStatus != current.OrderStatus {
		s.publish(ctx, events.OrderStatusChanged, updated)
	}
	return updated, nil
}

// Delete hard deletes unpaid orders and soft deletes paid ones.
func (s *OrderService) Delete(ctx context.Context, caller Caller, id string) (*models.Order, error) {
	current, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !current.IsPaid {
		if err := s.Orders.Remove(ctx, id); err != nil {
			return nil, storeError(err, "order")
		}
		return current, nil
	}
	deleted, err := s.Orders.Delete(ctx, id)
	if err != nil {
		return nil, storeError(err, "order")
	}
	return deleted, nil
}
