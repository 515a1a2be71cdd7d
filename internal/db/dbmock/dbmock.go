// Package dbmock provides testify mocks for the db collection interfaces.
package dbmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ptr[T any](args mock.Arguments, i int) *T {
	v, _ := args.Get(i).(*T)
	return v
}

func slice[T any](args mock.Arguments, i int) []T {
	v, _ := args.Get(i).([]T)
	return v
}

func int64At(args mock.Arguments, i int) int64 {
	v, _ := args.Get(i).(int64)
	return v
}

// Repository mocks db.Repository[T].
type Repository[T any] struct {
	mock.Mock
}

func (m *Repository[T]) Insert(ctx context.Context, doc *T) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	args := m.Called(ctx, id)
	return ptr[T](args, 0), args.Error(1)
}

func (m *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	args := m.Called(ctx, filter)
	return ptr[T](args, 0), args.Error(1)
}

func (m *Repository[T]) Find(ctx context.Context, base bson.M, q query.Query) ([]T, int64, error) {
	args := m.Called(ctx, base, q)
	return slice[T](args, 0), int64At(args, 1), args.Error(2)
}

func (m *Repository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return int64At(args, 0), args.Error(1)
}

func (m *Repository[T]) Update(ctx context.Context, id string, set bson.M) (*T, error) {
	args := m.Called(ctx, id, set)
	return ptr[T](args, 0), args.Error(1)
}

func (m *Repository[T]) Delete(ctx context.Context, id string) (*T, error) {
	args := m.Called(ctx, id)
	return ptr[T](args, 0), args.Error(1)
}

func (m *Repository[T]) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// OrderCollection mocks db.OrderCollection.
type OrderCollection struct {
	Repository[models.Order]
}

func (m *OrderCollection) MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID primitive.ObjectID) error {
	args := m.Called(ctx, id, paymentID)
	return args.Error(0)
}

// PaymentCollection mocks db.PaymentCollection.
type PaymentCollection struct {
	Repository[models.Payment]
}

func (m *PaymentCollection) ReusePending(ctx context.Context, p models.Payment) (*models.Payment, bool, error) {
	args := m.Called(ctx, p)
	if fn, ok := args.Get(0).(func(models.Payment) *models.Payment); ok {
		return fn(p), args.Bool(1), args.Error(2)
	}
	return ptr[models.Payment](args, 0), args.Bool(1), args.Error(2)
}

func (m *PaymentCollection) MarkAwaiting(ctx context.Context, id primitive.ObjectID, sessionID string, amount float64, discountCode string) (*models.Payment, error) {
	args := m.Called(ctx, id, sessionID, amount, discountCode)
	if fn, ok := args.Get(0).(func(context.Context, primitive.ObjectID, string, float64, string) *models.Payment); ok {
		return fn(ctx, id, sessionID, amount, discountCode), args.Error(1)
	}
	return ptr[models.Payment](args, 0), args.Error(1)
}

func (m *PaymentCollection) Confirm(ctx context.Context, id primitive.ObjectID) (*models.Payment, bool, error) {
	args := m.Called(ctx, id)
	return ptr[models.Payment](args, 0), args.Bool(1), args.Error(2)
}

func (m *PaymentCollection) MarkFailed(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PaymentCollection) FindDetails(ctx context.Context, base bson.M, q query.Query) ([]models.PaymentDetails, int64, error) {
	args := m.Called(ctx, base, q)
	return slice[models.PaymentDetails](args, 0), int64At(args, 1), args.Error(2)
}

func (m *PaymentCollection) Earnings(ctx context.Context, dayStart, dayEnd time.Time) (*models.Earnings, error) {
	args := m.Called(ctx, dayStart, dayEnd)
	return ptr[models.Earnings](args, 0), args.Error(1)
}

func (m *PaymentCollection) RecentPaid(ctx context.Context, limit int64) ([]models.PaymentDetails, error) {
	args := m.Called(ctx, limit)
	return slice[models.PaymentDetails](args, 0), args.Error(1)
}

func (m *PaymentCollection) TotalPaid(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(float64)
	return v, args.Error(1)
}

func (m *PaymentCollection) MonthlyIncome(ctx context.Context, year int) ([]models.MonthBucket, error) {
	args := m.Called(ctx, year)
	return slice[models.MonthBucket](args, 0), args.Error(1)
}

// DiscountCollection mocks db.DiscountCollection.
type DiscountCollection struct {
	Repository[models.Discount]
}

func (m *DiscountCollection) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	args := m.Called(ctx, code)
	return ptr[models.Discount](args, 0), args.Error(1)
}

func (m *DiscountCollection) Redeem(ctx context.Context, id primitive.ObjectID, user primitive.ObjectID, now time.Time) (*models.Discount, error) {
	args := m.Called(ctx, id, user, now)
	return ptr[models.Discount](args, 0), args.Error(1)
}

// SubscriptionCollection mocks db.SubscriptionCollection.
type SubscriptionCollection struct {
	Repository[models.Subscription]
}

func (m *SubscriptionCollection) MarkPaid(ctx context.Context, id primitive.ObjectID, trnID string) (*models.Subscription, error) {
	args := m.Called(ctx, id, trnID)
	return ptr[models.Subscription](args, 0), args.Error(1)
}

// PackageCollection mocks db.PackageCollection.
type PackageCollection struct {
	Repository[models.Package]
}

func (m *PackageCollection) IncrementPopularity(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// LocationCollection mocks db.LocationCollection.
type LocationCollection struct {
	Repository[models.Location]
}

func (m *LocationCollection) ExistsWithin(ctx context.Context, point models.GeoPoint, meters float64) (bool, error) {
	args := m.Called(ctx, point, meters)
	return args.Bool(0), args.Error(1)
}

// DriverLocationCollection mocks db.DriverLocationCollection.
type DriverLocationCollection struct {
	mock.Mock
}

func (m *DriverLocationCollection) Upsert(ctx context.Context, loc models.DriverLocation) error {
	args := m.Called(ctx, loc)
	return args.Error(0)
}

func (m *DriverLocationCollection) FindByDriver(ctx context.Context, driverID string) (*models.DriverLocation, error) {
	args := m.Called(ctx, driverID)
	return ptr[models.DriverLocation](args, 0), args.Error(1)
}

func (m *DriverLocationCollection) FindNear(ctx context.Context, point models.GeoPoint, meters float64, limit int64) ([]models.DriverLocation, error) {
	args := m.Called(ctx, point, meters, limit)
	return slice[models.DriverLocation](args, 0), args.Error(1)
}

// UserCollection mocks db.UserCollection.
type UserCollection struct {
	mock.Mock
}

func (m *UserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	return ptr[models.User](args, 0), args.Error(1)
}

func (m *UserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return ptr[models.User](args, 0), args.Error(1)
}

func (m *UserCollection) FindAdmin(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	return ptr[models.User](args, 0), args.Error(1)
}

func (m *UserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *UserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserCollection) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return int64At(args, 0), args.Error(1)
}

func (m *UserCollection) RecentUsers(ctx context.Context, limit int64) ([]models.UserSummary, error) {
	args := m.Called(ctx, limit)
	return slice[models.UserSummary](args, 0), args.Error(1)
}

func (m *UserCollection) MonthlySignups(ctx context.Context, year int) ([]models.MonthBucket, error) {
	args := m.Called(ctx, year)
	return slice[models.MonthBucket](args, 0), args.Error(1)
}
