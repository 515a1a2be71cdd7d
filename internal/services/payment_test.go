package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/cache"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/db/dbmock"
	"github.com/ukydev/fuel-delivery/internal/events"
	"github.com/ukydev/fuel-delivery/internal/gateway"
	"github.com/ukydev/fuel-delivery/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*gateway.Session)
	return s, args.Error(1)
}

func (m *mockGateway) RetrieveSession(ctx context.Context, sessionID string) (*gateway.Session, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*gateway.Session)
	return s, args.Error(1)
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

type paymentFixture struct {
	svc           *PaymentService
	payments      *dbmock.PaymentCollection
	orders        *dbmock.OrderCollection
	subscriptions *dbmock.SubscriptionCollection
	packages      *dbmock.PackageCollection
	discounts     *dbmock.DiscountCollection
	users         *dbmock.UserCollection
	notifications *dbmock.Repository[models.Notification]
	gateway       *mockGateway
	publisher     *recordingPublisher
	reports       *countingInvalidator
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		payments:      &dbmock.PaymentCollection{},
		orders:        &dbmock.OrderCollection{},
		subscriptions: &dbmock.SubscriptionCollection{},
		packages:      &dbmock.PackageCollection{},
		discounts:     &dbmock.DiscountCollection{},
		users:         &dbmock.UserCollection{},
		notifications: &dbmock.Repository[models.Notification]{},
		gateway:       &mockGateway{},
		publisher:     &recordingPublisher{},
		reports:       &countingInvalidator{},
	}
	f.svc = &PaymentService{
		Payments:      f.payments,
		Orders:        f.orders,
		Subscriptions: f.subscriptions,
		Packages:      f.packages,
		Discounts:     f.discounts,
		Users:         f.users,
		Gateway:       f.gateway,
		Notifier:      NewNotifier(f.notifications, cache.Nop{}),
		Events:        f.publisher,
		Reports:       f.reports,
		Now:           func() time.Time { return fixedNow },
	}
	return f
}

func (f *paymentFixture) expectSession(sessionID string) {
	f.gateway.On("CreateSession", mock.Anything, mock.Anything).
		Return(&gateway.Session{ID: sessionID, URL: "https://pay.example/" + sessionID, Status: gateway.StatusOpen}, nil)
}

func (f *paymentFixture) expectAwaiting() {
	f.payments.On("MarkAwaiting", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, id primitive.ObjectID, sessionID string, amount float64, code string) *models.Payment {
			return &models.Payment{ID: id, SessionID: sessionID, Amount: amount, DiscountCode: code, Status: models.PaymentAwaitingConfirmation}
		}, nil)
}

func TestPaymentService_CheckoutTargets(t *testing.T) {
	ctx := context.Background()
	caller := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}

	t.Run("neither target", func(t *testing.T) {
		f := newPaymentFixture()
		_, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("both targets", func(t *testing.T) {
		f := newPaymentFixture()
		id := primitive.NewObjectID().Hex()
		_, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{Subscription: id, OrderFuel: id})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})
}

func TestPaymentService_CheckoutOrder(t *testing.T) {
	ctx := context.Background()
	caller := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}
	order := &models.Order{ID: primitive.NewObjectID(), UserID: caller.ID, FinalAmountOfPayment: 206.5, OrderStatus: models.OrderPending}

	t.Run("opens a session for the order total", func(t *testing.T) {
		f := newPaymentFixture()
		pending := &models.Payment{ID: primitive.NewObjectID(), User: caller.ID, OrderFuel: &order.ID, TranID: "ABC", Status: models.PaymentCreated}
		f.orders.On("FindOne", mock.Anything, bson.M{"_id": order.ID, "userId": caller.ID}).Return(order, nil)
		f.payments.On("ReusePending", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.OrderFuel != nil && *p.OrderFuel == order.ID && p.Amount == 206.5 && len(p.TranID) == 10
		})).Return(pending, true, nil)
		f.gateway.On("CreateSession", mock.Anything, gateway.SessionRequest{
			PaymentID: pending.ID.Hex(), Name: "ABC", Amount: 206.5, Quantity: 1,
		}).Return(&gateway.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil)
		f.expectAwaiting()

		res, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{OrderFuel: order.ID.Hex()})
		require.NoError(t, err)
		assert.Equal(t, pending.ID.Hex(), res.PaymentID)
		assert.Equal(t, "cs_1", res.SessionID)
		assert.Equal(t, "https://pay.example/cs_1", res.URL)
		assert.Equal(t, 206.5, res.Amount)
		f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertExpectations(t)
	})

	t.Run("repeated checkout reuses the pending payment", func(t *testing.T) {
		f := newPaymentFixture()
		pending := &models.Payment{ID: primitive.NewObjectID(), User: caller.ID, OrderFuel: &order.ID}
		f.orders.On("FindOne", mock.Anything, mock.Anything).Return(order, nil)
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(pending, true, nil).Once()
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(pending, false, nil).Once()
		f.expectSession("cs_2")
		f.expectAwaiting()

		first, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{OrderFuel: order.ID.Hex()})
		require.NoError(t, err)
		second, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{OrderFuel: order.ID.Hex()})
		require.NoError(t, err)
		assert.Equal(t, first.PaymentID, second.PaymentID)
	})

	t.Run("paid order", func(t *testing.T) {
		f := newPaymentFixture()
		paid := *order
		paid.IsPaid = true
		f.orders.On("FindOne", mock.Anything, mock.Anything).Return(&paid, nil)

		_, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{OrderFuel: order.ID.Hex()})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		f.payments.AssertNotCalled(t, "ReusePending", mock.Anything, mock.Anything)
	})

	t.Run("missing order", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindOne", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)

		_, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{OrderFuel: order.ID.Hex()})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("gateway failure", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindOne", mock.Anything, mock.Anything).Return(order, nil)
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(&models.Payment{ID: primitive.NewObjectID()}, true, nil)
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{OrderFuel: order.ID.Hex()})
		assert.Equal(t, apperr.KindUpstreamGateway, apperr.KindOf(err))
		f.payments.AssertNotCalled(t, "MarkAwaiting", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

// inserted returns p the way the store hands back a newly upserted payment.
func inserted(p models.Payment) *models.Payment {
	p.ID = primitive.NewObjectID()
	p.Status = models.PaymentCreated
	return &p
}

func TestPaymentService_CheckoutDiscount(t *testing.T) {
	ctx := context.Background()
	userA := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}
	userB := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}

	setup := func(caller Caller) (*paymentFixture, *models.Subscription) {
		f := newPaymentFixture()
		sub := &models.Subscription{ID: primitive.NewObjectID(), User: caller.ID, Package: primitive.NewObjectID(), Amount: 200}
		f.subscriptions.On("FindOne", mock.Anything, bson.M{"_id": sub.ID, "user": caller.ID}).Return(sub, nil)
		return f, sub
	}

	fresh := func() *models.Discount {
		return &models.Discount{ID: primitive.NewObjectID(), Code: "SAVE10", Discount: 10, EndDate: fixedNow.Add(24 * time.Hour)}
	}
	usedBy := func(d *models.Discount, user primitive.ObjectID) *models.Discount {
		used := *d
		used.UsedBy = []primitive.ObjectID{user}
		used.UserID = &user
		return &used
	}

	t.Run("first redemption applies the discount", func(t *testing.T) {
		d := fresh()
		f, sub := setup(userA)
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(d, nil)
		f.payments.On("ReusePending", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.Amount == 180 && p.DiscountCode == "SAVE10"
		})).Return(inserted, true, nil)
		f.discounts.On("Redeem", mock.Anything, d.ID, userA.ID, fixedNow).Return(usedBy(d, userA.ID), nil)
		f.expectSession("cs_a")
		f.expectAwaiting()

		res, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		require.NoError(t, err)
		assert.Equal(t, 180.0, res.Amount)
		f.payments.AssertCalled(t, "MarkAwaiting", mock.Anything, mock.Anything, "cs_a", 180.0, "SAVE10")
	})

	t.Run("second use by the same user fails", func(t *testing.T) {
		f, sub := setup(userA)
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(usedBy(fresh(), userA.ID), nil)
		f.payments.On("ReusePending", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.Amount == 200 && p.DiscountCode == ""
		})).Return(inserted, true, nil)
		f.payments.On("Remove", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		assert.Equal(t, "You have already used this discount code.", apperr.Message(err))
		f.payments.AssertNumberOfCalls(t, "Remove", 1)
		f.discounts.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	})

	t.Run("gateway failure keeps the redeemed discount for the retry", func(t *testing.T) {
		d := fresh()
		f, sub := setup(userA)
		var stored *models.Payment
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(d, nil).Once()
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(usedBy(d, userA.ID), nil)
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(func(p models.Payment) *models.Payment {
			stored = inserted(p)
			return stored
		}, true, nil).Once()
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(func(p models.Payment) *models.Payment {
			reused := *stored
			reused.TranID = p.TranID
			return &reused
		}, false, nil)
		f.discounts.On("Redeem", mock.Anything, d.ID, userA.ID, fixedNow).Return(usedBy(d, userA.ID), nil).Once()
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()
		f.expectSession("cs_retry")
		f.expectAwaiting()

		_, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		require.Equal(t, apperr.KindUpstreamGateway, apperr.KindOf(err))

		withCode, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		require.NoError(t, err)
		assert.Equal(t, 180.0, withCode.Amount)

		withoutCode, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex()})
		require.NoError(t, err)
		assert.Equal(t, 180.0, withoutCode.Amount)

		assert.Equal(t, stored.ID.Hex(), withCode.PaymentID)
		assert.Equal(t, stored.ID.Hex(), withoutCode.PaymentID)
		f.discounts.AssertNumberOfCalls(t, "Redeem", 1)
		f.payments.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
		f.payments.AssertCalled(t, "MarkAwaiting", mock.Anything, stored.ID, "cs_retry", 180.0, "SAVE10")
	})

	t.Run("a pending payment cannot pick up a code later", func(t *testing.T) {
		f, sub := setup(userA)
		existing := &models.Payment{ID: primitive.NewObjectID(), User: userA.ID, Subscription: &sub.ID, Amount: 200}
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(fresh(), nil)
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(existing, false, nil)

		_, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		f.discounts.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	})

	t.Run("another user can redeem", func(t *testing.T) {
		d := usedBy(fresh(), userA.ID)
		f, sub := setup(userB)
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(d, nil)
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(inserted, true, nil)
		f.discounts.On("Redeem", mock.Anything, d.ID, userB.ID, fixedNow).Return(d, nil)
		f.expectSession("cs_b")
		f.expectAwaiting()

		res, err := f.svc.Checkout(ctx, userB, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		require.NoError(t, err)
		assert.Equal(t, 180.0, res.Amount)
	})

	t.Run("losing the redemption race removes the new payment", func(t *testing.T) {
		d := fresh()
		f, sub := setup(userB)
		var created *models.Payment
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(d, nil)
		f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(func(p models.Payment) *models.Payment {
			created = inserted(p)
			return created
		}, true, nil)
		f.discounts.On("Redeem", mock.Anything, d.ID, userB.ID, fixedNow).Return(nil, db.ErrNotFound)
		f.payments.On("Remove", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.Checkout(ctx, userB, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		f.payments.AssertCalled(t, "Remove", mock.Anything, created.ID.Hex())
		f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	})

	t.Run("expired code", func(t *testing.T) {
		d := fresh()
		d.EndDate = fixedNow.Add(-time.Minute)
		f, sub := setup(userA)
		f.discounts.On("FindByCode", mock.Anything, "SAVE10").Return(d, nil)

		_, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "SAVE10"})
		assert.Equal(t, "Discount code is expired.", apperr.Message(err))
		f.payments.AssertNotCalled(t, "ReusePending", mock.Anything, mock.Anything)
	})

	t.Run("unknown code is ignored", func(t *testing.T) {
		f, sub := setup(userA)
		f.discounts.On("FindByCode", mock.Anything, "NOPE").Return(nil, db.ErrNotFound)
		f.payments.On("ReusePending", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.Amount == 200 && p.DiscountCode == ""
		})).Return(inserted, true, nil)
		f.expectSession("cs_c")
		f.expectAwaiting()

		res, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: sub.ID.Hex(), Code: "NOPE"})
		require.NoError(t, err)
		assert.Equal(t, 200.0, res.Amount)
		f.discounts.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("someone else's subscription", func(t *testing.T) {
		f := newPaymentFixture()
		f.subscriptions.On("FindOne", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)

		_, err := f.svc.Checkout(ctx, userA, models.CheckoutRequest{Subscription: primitive.NewObjectID().Hex()})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestPaymentService_CheckoutSubscriptionReuse(t *testing.T) {
	ctx := context.Background()
	caller := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}
	f := newPaymentFixture()
	sub := &models.Subscription{ID: primitive.NewObjectID(), User: caller.ID, Package: primitive.NewObjectID(), Amount: 75}
	f.subscriptions.On("FindOne", mock.Anything, bson.M{"_id": sub.ID, "user": caller.ID}).Return(sub, nil)

	var stored *models.Payment
	f.payments.On("ReusePending", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
		return p.Subscription != nil && *p.Subscription == sub.ID && p.User == caller.ID
	})).Return(func(p models.Payment) *models.Payment {
		stored = inserted(p)
		return stored
	}, true, nil).Once()
	f.payments.On("ReusePending", mock.Anything, mock.Anything).Return(func(p models.Payment) *models.Payment {
		reused := *stored
		reused.TranID = p.TranID
		return &reused
	}, false, nil)
	f.expectSession("cs_sub")
	f.expectAwaiting()

	first, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{Subscription: sub.ID.Hex()})
	require.NoError(t, err)
	second, err := f.svc.Checkout(ctx, caller, models.CheckoutRequest{Subscription: sub.ID.Hex()})
	require.NoError(t, err)

	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, 75.0, second.Amount)

	var names []string
	for _, call := range f.gateway.Calls {
		if call.Method == "CreateSession" {
			names = append(names, call.Arguments.Get(1).(gateway.SessionRequest).Name)
		}
	}
	require.Len(t, names, 2)
	assert.NotEqual(t, names[0], names[1], "the reused payment gets a fresh transaction id")
}

func TestPaymentService_Confirm(t *testing.T) {
	ctx := context.Background()
	payer := primitive.NewObjectID()
	orderID := primitive.NewObjectID()

	awaitingOrderPayment := func() *models.Payment {
		return &models.Payment{
			ID: primitive.NewObjectID(), User: payer, OrderFuel: &orderID,
			Amount: 50, TranID: "TRN", SessionID: "cs_1", Status: models.PaymentAwaitingConfirmation,
		}
	}
	sessionFor := func(id string, p *models.Payment, status string) *gateway.Session {
		return &gateway.Session{
			ID:          id,
			Status:      status,
			AmountTotal: gateway.MinorUnits(p.Amount),
			Metadata:    map[string]string{"paymentId": p.ID.Hex()},
		}
	}
	confirmedCopy := func(p *models.Payment) *models.Payment {
		c := *p
		c.Status = models.PaymentConfirmed
		c.IsPaid = true
		return &c
	}

	t.Run("missing parameters", func(t *testing.T) {
		f := newPaymentFixture()
		_, err := f.svc.Confirm(ctx, "", "x")
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("already confirmed is idempotent", func(t *testing.T) {
		f := newPaymentFixture()
		p := confirmedCopy(awaitingOrderPayment())
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)

		got, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
		f.gateway.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
		f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("session of another payment", func(t *testing.T) {
		tests := []struct {
			name      string
			sessionID string
		}{
			{"payment with a session", "cs_1"},
			{"payment whose session was never stored", ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newPaymentFixture()
				p := awaitingOrderPayment()
				p.SessionID = tt.sessionID
				other := &models.Payment{ID: primitive.NewObjectID(), Amount: p.Amount}
				f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
				f.gateway.On("RetrieveSession", mock.Anything, "cs_other").Return(sessionFor("cs_other", other, gateway.StatusComplete), nil)

				_, err := f.svc.Confirm(ctx, "cs_other", p.ID.Hex())
				assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
				f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
				f.payments.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("earlier session of the same payment confirms", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		p.SessionID = "cs_2"
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusComplete), nil)
		f.orders.On("MarkPaid", mock.Anything, orderID, p.ID).Return(nil)
		f.payments.On("Confirm", mock.Anything, p.ID).Return(confirmedCopy(p), false, nil)

		got, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
		f.orders.AssertExpectations(t)
	})

	t.Run("paid amount differs from the payment", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		session := sessionFor("cs_1", p, gateway.StatusComplete)
		session.AmountTotal = 100
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(session, nil)

		_, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired session fails the payment", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusExpired), nil)
		f.payments.On("MarkFailed", mock.Anything, p.ID).Return(nil)

		_, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		assert.Equal(t, apperr.KindPaymentIncomplete, apperr.KindOf(err))
		f.payments.AssertCalled(t, "MarkFailed", mock.Anything, p.ID)
	})

	t.Run("expired earlier session leaves the payment open", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		p.SessionID = "cs_2"
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusExpired), nil)

		_, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		assert.Equal(t, apperr.KindPaymentIncomplete, apperr.KindOf(err))
		f.payments.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
	})

	t.Run("open session", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusOpen), nil)

		_, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		assert.Equal(t, apperr.KindPaymentIncomplete, apperr.KindOf(err))
		assert.Equal(t, "Payment session is not completed", apperr.Message(err))
		f.payments.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(nil, errors.New("timeout"))

		_, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		assert.Equal(t, apperr.KindUpstreamGateway, apperr.KindOf(err))
	})

	t.Run("order payment completes", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		admin := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusComplete), nil)
		f.orders.On("MarkPaid", mock.Anything, orderID, p.ID).Return(nil)
		f.payments.On("Confirm", mock.Anything, p.ID).Return(confirmedCopy(p), true, nil)
		f.users.On("FindUserByID", mock.Anything, payer.Hex()).Return(&models.User{ID: payer, Email: "a@example.com"}, nil)
		f.users.On("FindAdmin", mock.Anything).Return(admin, nil)
		f.notifications.On("Insert", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

		got, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
		assert.Equal(t, models.PaymentConfirmed, got.Status)
		f.notifications.AssertNumberOfCalls(t, "Insert", 2)
		assert.Equal(t, []string{events.PaymentConfirmed}, f.publisher.topics)
		assert.Equal(t, 1, f.reports.calls)
	})

	t.Run("concurrent confirmation repeats no side effects", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()

		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusComplete), nil)
		f.orders.On("MarkPaid", mock.Anything, orderID, p.ID).Return(nil)
		f.payments.On("Confirm", mock.Anything, p.ID).Return(confirmedCopy(p), false, nil)

		got, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
		f.notifications.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		assert.Empty(t, f.publisher.topics)
		assert.Zero(t, f.reports.calls)
	})

	t.Run("subscription payment completes", func(t *testing.T) {
		f := newPaymentFixture()
		subID := primitive.NewObjectID()
		pkgID := primitive.NewObjectID()
		p := &models.Payment{ID: primitive.NewObjectID(), User: payer, Subscription: &subID, Amount: 180, TranID: "TRN2", Status: models.PaymentAwaitingConfirmation}

		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_9").Return(sessionFor("cs_9", p, gateway.StatusComplete), nil)
		f.subscriptions.On("MarkPaid", mock.Anything, subID, "TRN2").Return(&models.Subscription{ID: subID, Package: pkgID, IsPaid: true}, nil)
		f.payments.On("Confirm", mock.Anything, p.ID).Return(confirmedCopy(p), true, nil)
		f.packages.On("IncrementPopularity", mock.Anything, pkgID).Return(nil)
		f.users.On("FindUserByID", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
		f.users.On("FindAdmin", mock.Anything).Return(nil, db.ErrNotFound)
		f.notifications.On("Insert", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.Confirm(ctx, "cs_9", p.ID.Hex())
		require.NoError(t, err)
		f.packages.AssertCalled(t, "IncrementPopularity", mock.Anything, pkgID)
		f.notifications.AssertNumberOfCalls(t, "Insert", 1)
	})

	t.Run("failure after the gateway keeps the cause message", func(t *testing.T) {
		f := newPaymentFixture()
		p := awaitingOrderPayment()
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_1").Return(sessionFor("cs_1", p, gateway.StatusComplete), nil)
		f.orders.On("MarkPaid", mock.Anything, orderID, p.ID).Return(db.ErrNotFound)

		_, err := f.svc.Confirm(ctx, "cs_1", p.ID.Hex())
		assert.Equal(t, apperr.KindUpstreamGateway, apperr.KindOf(err))
		assert.Equal(t, "order not found", apperr.Message(err))
		f.payments.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})
}

func TestPaymentService_Admin(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed payments are immutable", func(t *testing.T) {
		f := newPaymentFixture()
		p := &models.Payment{ID: primitive.NewObjectID(), Status: models.PaymentConfirmed}
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)

		failed := models.PaymentFailed
		_, err := f.svc.Update(ctx, p.ID.Hex(), models.UpdatePaymentRequest{Status: &failed})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

		_, err = f.svc.Delete(ctx, p.ID.Hex())
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("only failed can be set", func(t *testing.T) {
		f := newPaymentFixture()
		p := &models.Payment{ID: primitive.NewObjectID(), Status: models.PaymentCreated}
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)

		confirmed := models.PaymentConfirmed
		_, err := f.svc.Update(ctx, p.ID.Hex(), models.UpdatePaymentRequest{Status: &confirmed})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("mark failed", func(t *testing.T) {
		f := newPaymentFixture()
		p := &models.Payment{ID: primitive.NewObjectID(), Status: models.PaymentAwaitingConfirmation}
		f.payments.On("FindByID", mock.Anything, p.ID.Hex()).Return(p, nil)
		f.payments.On("Update", mock.Anything, p.ID.Hex(), bson.M{"status": models.PaymentFailed}).Return(p, nil)

		failed := models.PaymentFailed
		_, err := f.svc.Update(ctx, p.ID.Hex(), models.UpdatePaymentRequest{Status: &failed})
		require.NoError(t, err)
		f.payments.AssertExpectations(t)
	})

	t.Run("paid in month", func(t *testing.T) {
		f := newPaymentFixture()
		start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
		f.payments.On("FindDetails", mock.Anything, bson.M{
			"isPaid":    true,
			"createdAt": bson.M{"$gte": start, "$lt": start.AddDate(0, 1, 0)},
		}, mock.Anything).Return([]models.PaymentDetails{}, int64(0), nil)

		page, err := f.svc.ListPaidInMonth(ctx, "2025", "0", url.Values{"year": {"2025"}, "month": {"0"}})
		require.NoError(t, err)
		assert.Empty(t, page.Data)
		f.payments.AssertExpectations(t)
	})

	t.Run("invalid month", func(t *testing.T) {
		f := newPaymentFixture()
		for _, month := range []string{"12", "-1", "jan"} {
			_, err := f.svc.ListPaidInMonth(ctx, "2025", month, url.Values{})
			assert.Equal(t, "Invalid year or month", apperr.Message(err), month)
		}
	})

	t.Run("my payments", func(t *testing.T) {
		f := newPaymentFixture()
		caller := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}
		f.payments.On("FindDetails", mock.Anything, bson.M{"user": caller.ID, "isPaid": true}, mock.Anything).
			Return([]models.PaymentDetails{{TranID: "X"}}, int64(1), nil)

		page, err := f.svc.ListMine(ctx, caller, url.Values{})
		require.NoError(t, err)
		assert.Len(t, page.Data, 1)
	})
}
