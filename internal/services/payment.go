package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/events"
	"github.com/ukydev/fuel-delivery/internal/gateway"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"github.com/ukydev/fuel-delivery/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
)

// PaymentSpec is what payment listings accept.
var PaymentSpec = query.Spec{
	SearchFields: []string{"tranId", "status"},
	Filters: map[string]query.FieldKind{
		"status": query.String,
		"isPaid": query.Bool,
	},
}

// CheckoutGateway opens and inspects hosted checkout sessions.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*gateway.Session, error)
}

// ReportInvalidator drops cached reports after money moves.
type ReportInvalidator interface {
	Invalidate(ctx context.Context)
}

// PaymentEvent is the payload of payment.confirmed.
type PaymentEvent struct {
	PaymentID    string    `json:"paymentId"`
	UserID       string    `json:"userId"`
	Amount       float64   `json:"amount"`
	TranID       string    `json:"tranId"`
	OrderFuel    string    `json:"orderFuel,omitempty"`
	Subscription string    `json:"subscription,omitempty"`
	At           time.Time `json:"at"`
}

// PaymentService runs checkout, confirmation and payment history.
type PaymentService struct {
	Payments      db.PaymentCollection
	Orders        db.OrderCollection
	Subscriptions db.SubscriptionCollection
	Packages      db.PackageCollection
	Discounts     db.DiscountCollection
	Users         db.UserCollection
	Gateway       CheckoutGateway
	Notifier      *Notifier
	Events        events.Publisher
	Reports       ReportInvalidator
	Now           func() time.Time
}

func newTranID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:10]
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Checkout opens a gateway session for the caller's subscription or order.
// A repeated checkout for the same target reuses the pending payment.
func (s *PaymentService) Checkout(ctx context.Context, caller Caller, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	hasSub, hasOrder := req.Subscription != "", req.OrderFuel != ""
	if hasSub == hasOrder {
		return nil, apperr.InvalidInput("Exactly one of subscription or orderFuel is required")
	}

	var (
		payment *models.Payment
		err     error
	)
	if hasSub {
		payment, err = s.checkoutSubscription(ctx, caller, req.Subscription, strings.TrimSpace(req.Code))
	} else {
		payment, err = s.checkoutOrder(ctx, caller, req.OrderFuel)
	}
	if err != nil {
		return nil, err
	}

	session, err := s.Gateway.CreateSession(ctx, gateway.SessionRequest{
		PaymentID: payment.ID.Hex(),
		Name:      payment.TranID,
		Amount:    payment.Amount,
		Quantity:  1,
	})
	if err != nil {
		log.WithError(err).WithField("payment", payment.ID.Hex()).Error("failed to create checkout session")
		return nil, apperr.UpstreamGateway("Failed to create checkout session", err)
	}

	payment, err = s.Payments.MarkAwaiting(ctx, payment.ID, session.ID, payment.Amount, payment.DiscountCode)
	if err != nil {
		return nil, storeError(err, "payment")
	}

	return &models.CheckoutResult{
		PaymentID: payment.ID.Hex(),
		SessionID: session.ID,
		URL:       session.URL,
		Amount:    payment.Amount,
	}, nil
}

func (s *PaymentService) checkoutSubscription(ctx context.Context, caller Caller, subscriptionID, code string) (*models.Payment, error) {
	subID, err := db.ObjectID(subscriptionID)
	if err != nil {
		return nil, storeError(err, "subscription")
	}
	sub, err := s.Subscriptions.FindOne(ctx, bson.M{"_id": subID, "user": caller.ID})
	if err != nil {
		return nil, storeError(err, "subscription")
	}
	if sub.IsPaid {
		return nil, apperr.InvalidInput("Subscription is already paid")
	}

	now := s.now()
	amount := sub.Amount
	var (
		discount *models.Discount
		// the caller redeemed this code on an earlier attempt that is
		// still pending
		redeemed bool
	)
	if code != "" {
		d, err := s.Discounts.FindByCode(ctx, code)
		switch {
		case errors.Is(err, db.ErrNotFound):
			log.WithFields(log.Fields{"code": code, "user": caller.ID.Hex()}).Warn("unknown discount code ignored")
		case err != nil:
			return nil, storeError(err, "discount")
		case d.Expired(now):
			return nil, apperr.InvalidInput("Discount code is expired.")
		default:
			discount = d
			redeemed = d.RedeemedBy(caller.ID)
		}
	}

	pending := models.Payment{
		User:         caller.ID,
		Subscription: &subID,
		Amount:       amount,
		TranID:       newTranID(),
	}
	if discount != nil && !redeemed {
		pending.Amount = ApplyDiscount(amount, discount.Discount)
		pending.DiscountCode = discount.Code
	}
	payment, created, err := s.Payments.ReusePending(ctx, pending)
	if err != nil {
		return nil, apperr.PersistenceFailure("Failed to create payment", err)
	}

	// a reused payment keeps the price and code it was created with
	if discount == nil || (!created && payment.DiscountCode == discount.Code) {
		return payment, nil
	}
	if redeemed {
		s.dropCreated(ctx, payment, created)
		return nil, apperr.InvalidInput("You have already used this discount code.")
	}
	if !created {
		return nil, apperr.InvalidInput("A payment for this subscription is already pending without this discount code.")
	}

	if _, err := s.Discounts.Redeem(ctx, discount.ID, caller.ID, now); err != nil {
		s.dropCreated(ctx, payment, created)
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.InvalidInput("You have already used this discount code.")
		}
		return nil, storeError(err, "discount")
	}
	return payment, nil
}

// dropCreated removes a payment inserted by the current checkout.
func (s *PaymentService) dropCreated(ctx context.Context, payment *models.Payment, created bool) {
	if !created {
		return
	}
	if err := s.Payments.Remove(ctx, payment.ID.Hex()); err != nil {
		log.WithError(err).WithField("payment", payment.ID.Hex()).Error("failed to remove payment after lost discount")
	}
}

func (s *PaymentService) checkoutOrder(ctx context.Context, caller Caller, orderID string) (*models.Payment, error) {
	oid, err := db.ObjectID(orderID)
	if err != nil {
		return nil, storeError(err, "order")
	}
	order, err := s.Orders.FindOne(ctx, bson.M{"_id": oid, "userId": caller.ID})
	if err != nil {
		return nil, storeError(err, "order")
	}
	if order.IsPaid {
		return nil, apperr.InvalidInput("Order is already paid")
	}
	if order.OrderStatus == models.OrderCancelled {
		return nil, apperr.InvalidInput("Cancelled orders cannot be paid")
	}

	payment, _, err := s.Payments.ReusePending(ctx, models.Payment{
		User:      caller.ID,
		OrderFuel: &oid,
		Amount:    order.FinalAmountOfPayment,
		TranID:    newTranID(),
	})
	if err != nil {
		return nil, apperr.PersistenceFailure("Failed to create payment", err)
	}
	payment.Amount = order.FinalAmountOfPayment
	return payment, nil
}

// Confirm completes a payment after the gateway redirect. Confirming an
// already confirmed payment returns it unchanged.
func (s *PaymentService) Confirm(ctx context.Context, sessionID, paymentID string) (*models.Payment, error) {
	if sessionID == "" || paymentID == "" {
		return nil, apperr.InvalidInput("sessionId and paymentId are required")
	}
	payment, err := s.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	if payment.Status == models.PaymentConfirmed {
		return payment, nil
	}

	session, err := s.Gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.UpstreamGateway("Failed to retrieve payment session", err)
	}
	// sessions are matched by payment, not by the latest session id
	if session.Metadata["paymentId"] != payment.ID.Hex() {
		return nil, apperr.InvalidInput("session does not belong to this payment")
	}
	switch session.Status {
	case gateway.StatusComplete:
		if session.AmountTotal != gateway.MinorUnits(payment.Amount) {
			log.WithFields(log.Fields{
				"payment": paymentID,
				"session": session.ID,
				"paid":    session.AmountTotal,
				"amount":  payment.Amount,
			}).Error("session amount does not match payment")
			return nil, apperr.InvalidInput("Payment session amount does not match the payment")
		}
	case gateway.StatusExpired:
		if session.ID == payment.SessionID {
			if err := s.Payments.MarkFailed(ctx, payment.ID); err != nil {
				log.WithError(err).WithField("payment", paymentID).Error("failed to mark payment failed")
			}
		}
		return nil, apperr.PaymentIncomplete("Payment session has expired")
	default:
		return nil, apperr.PaymentIncomplete("Payment session is not completed")
	}

	confirmed, err := s.complete(ctx, payment)
	if err != nil {
		log.WithError(err).WithField("payment", paymentID).Error("payment confirmation failed")
		return nil, apperr.UpstreamGateway(apperr.Message(err), err)
	}
	return confirmed, nil
}

// complete applies the target update before the payment transition so a
// retry after a partial failure converges. Side effects run only on the
// call that performed the transition.
func (s *PaymentService) complete(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	var sub *models.Subscription
	switch payment.Target() {
	case models.TargetOrder:
		if err := s.Orders.MarkPaid(ctx, *payment.OrderFuel, payment.ID); err != nil {
			return nil, storeError(err, "order")
		}
	case models.TargetSubscription:
		var err error
		sub, err = s.Subscriptions.MarkPaid(ctx, *payment.Subscription, payment.TranID)
		if err != nil {
			return nil, storeError(err, "subscription")
		}
	default:
		return nil, apperr.InvalidInput("payment has no subscription or order")
	}

	confirmed, transitioned, err := s.Payments.Confirm(ctx, payment.ID)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	if !transitioned {
		return confirmed, nil
	}

	if sub != nil {
		if err := s.Packages.IncrementPopularity(ctx, sub.Package); err != nil {
			log.WithError(err).WithField("package", sub.Package.Hex()).Warn("failed to bump package popularity")
		}
	}
	s.notifyConfirmed(ctx, confirmed)
	s.publishConfirmed(ctx, confirmed)
	if s.Reports != nil {
		s.Reports.Invalidate(ctx)
	}

	log.WithFields(log.Fields{"payment": confirmed.ID.Hex(), "amount": confirmed.Amount}).Info("payment confirmed")
	return confirmed, nil
}

func (s *PaymentService) notifyConfirmed(ctx context.Context, p *models.Payment) {
	if s.Notifier == nil {
		return
	}
	what := "subscription"
	modelType := models.ModelPayment
	if p.Target() == models.TargetOrder {
		what = "order"
		modelType = models.ModelOrder
	}
	ref := p.ID

	s.Notifier.Notify(ctx, models.Notification{
		Receiver:    p.User,
		Message:     "Payment successful",
		Description: fmt.Sprintf("Your %s payment of %.2f was confirmed. Transaction %s.", what, p.Amount, p.TranID),
		Reference:   &ref,
		ModelType:   modelType,
	})

	if s.Users == nil {
		return
	}
	payer := p.User.Hex()
	if u, err := s.Users.FindUserByID(ctx, payer); err == nil {
		payer = u.Email
	}
	admin, err := s.Users.FindAdmin(ctx)
	if err != nil {
		log.WithError(err).Warn("no admin to notify about payment")
		return
	}
	s.Notifier.Notify(ctx, models.Notification{
		Receiver:    admin.ID,
		Message:     "New payment received",
		Description: fmt.Sprintf("%s paid %.2f for a %s. Transaction %s.", payer, p.Amount, what, p.TranID),
		Reference:   &ref,
		ModelType:   modelType,
	})
}

func (s *PaymentService) publishConfirmed(ctx context.Context, p *models.Payment) {
	if s.Events == nil {
		return
	}
	ev := PaymentEvent{
		PaymentID: p.ID.Hex(),
		UserID:    p.User.Hex(),
		Amount:    p.Amount,
		TranID:    p.TranID,
		At:        s.now(),
	}
	if p.OrderFuel != nil {
		ev.OrderFuel = p.OrderFuel.Hex()
	}
	if p.Subscription != nil {
		ev.Subscription = p.Subscription.Hex()
	}
	if err := s.Events.Publish(ctx, events.PaymentConfirmed, ev); err != nil {
		log.WithError(err).Warn("failed to publish payment event")
	}
}

// Get returns one payment. Non-admins only see their own.
func (s *PaymentService) Get(ctx context.Context, caller Caller, id string) (*models.Payment, error) {
	oid, err := db.ObjectID(id)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	payment, err := s.Payments.FindOne(ctx, scoped(caller.Scope("user"), bson.M{"_id": oid}))
	if err != nil {
		return nil, storeError(err, "payment")
	}
	return payment, nil
}

// Update lets an admin fail a payment or correct its transaction id.
// Confirmed payments are immutable.
func (s *PaymentService) Update(ctx context.Context, id string, req models.UpdatePaymentRequest) (*models.Payment, error) {
	current, err := s.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	if current.Status == models.PaymentConfirmed {
		return nil, apperr.Conflict("Confirmed payments cannot be changed")
	}

	set := bson.M{}
	if req.Status != nil {
		if *req.Status != models.PaymentFailed {
			return nil, apperr.InvalidInput("status can only be set to failed")
		}
		set["status"] = models.PaymentFailed
	}
	if req.TranID != nil {
		tranID := strings.TrimSpace(*req.TranID)
		if tranID == "" {
			return nil, apperr.InvalidInput("tranId cannot be empty")
		}
		set["tranId"] = tranID
	}
	if len(set) == 0 {
		return nil, apperr.InvalidInput("nothing to update")
	}

	updated, err := s.Payments.Update(ctx, id, set)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	return updated, nil
}

// Delete soft deletes a payment that has not been confirmed.
func (s *PaymentService) Delete(ctx context.Context, id string) (*models.Payment, error) {
	current, err := s.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	if current.Status == models.PaymentConfirmed {
		return nil, apperr.Conflict("Confirmed payments cannot be deleted")
	}
	deleted, err := s.Payments.Delete(ctx, id)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	return deleted, nil
}

// ListMine returns the caller's paid payments.
func (s *PaymentService) ListMine(ctx context.Context, caller Caller, values url.Values) (*query.Page[models.PaymentDetails], error) {
	return s.details(ctx, bson.M{"user": caller.ID, "isPaid": true}, values)
}

// ListByUser returns every payment of one user.
func (s *PaymentService) ListByUser(ctx context.Context, userID string, values url.Values) (*query.Page[models.PaymentDetails], error) {
	oid, err := db.ObjectID(userID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return s.details(ctx, bson.M{"user": oid}, values)
}

// ListPaidInMonth returns paid payments created in one calendar month.
// month is zero based. With neither given every paid payment is listed.
func (s *PaymentService) ListPaidInMonth(ctx context.Context, year, month string, values url.Values) (*query.Page[models.PaymentDetails], error) {
	base := bson.M{"isPaid": true}
	if year != "" || month != "" {
		start, end, err := monthRange(year, month)
		if err != nil {
			return nil, err
		}
		base["createdAt"] = bson.M{"$gte": start, "$lt": end}
	}
	rest := url.Values{}
	for k, v := range values {
		if k != "year" && k != "month" {
			rest[k] = v
		}
	}
	return s.details(ctx, base, rest)
}

func monthRange(year, month string) (time.Time, time.Time, error) {
	y, yErr := strconv.Atoi(year)
	m, mErr := strconv.Atoi(month)
	if yErr != nil || mErr != nil || y < 1 || m < 0 || m > 11 {
		return time.Time{}, time.Time{}, apperr.InvalidInput("Invalid year or month")
	}
	start := time.Date(y, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

func (s *PaymentService) details(ctx context.Context, base bson.M, values url.Values) (*query.Page[models.PaymentDetails], error) {
	spec := PaymentSpec
	if _, fixed := base["isPaid"]; fixed {
		spec = spec.Without("isPaid")
	}
	q, err := query.Parse(values, spec)
	if err != nil {
		return nil, err
	}
	rows, total, err := s.Payments.FindDetails(ctx, base, q)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	return &query.Page[models.PaymentDetails]{Data: rows, Meta: q.Meta(total)}, nil
}
