package db

import (
	"context"
	"time"

	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repository is the CRUD surface shared by every resource collection.
type Repository[T any] interface {
	Insert(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter bson.M) (*T, error)
	Find(ctx context.Context, base bson.M, q query.Query) ([]T, int64, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	Update(ctx context.Context, id string, set bson.M) (*T, error)
	Delete(ctx context.Context, id string) (*T, error)
	Remove(ctx context.Context, id string) error
}

// OrderCollection stores fuel and battery orders.
type OrderCollection interface {
	Repository[models.Order]
	MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID primitive.ObjectID) error
}

// PaymentCollection stores payments and serves the reporting aggregations.
type PaymentCollection interface {
	Repository[models.Payment]
	// ReusePending returns the open payment for the same payer and target,
	// creating it from p when none exists. created reports whether a new
	// document was written.
	ReusePending(ctx context.Context, p models.Payment) (payment *models.Payment, created bool, err error)
	MarkAwaiting(ctx context.Context, id primitive.ObjectID, sessionID string, amount float64, discountCode string) (*models.Payment, error)
	// Confirm moves a payment to confirmed. transitioned is false when it
	// was already confirmed.
	Confirm(ctx context.Context, id primitive.ObjectID) (payment *models.Payment, transitioned bool, err error)
	MarkFailed(ctx context.Context, id primitive.ObjectID) error
	FindDetails(ctx context.Context, base bson.M, q query.Query) ([]models.PaymentDetails, int64, error)
	Earnings(ctx context.Context, dayStart, dayEnd time.Time) (*models.Earnings, error)
	RecentPaid(ctx context.Context, limit int64) ([]models.PaymentDetails, error)
	TotalPaid(ctx context.Context) (float64, error)
	MonthlyIncome(ctx context.Context, year int) ([]models.MonthBucket, error)
}

// DiscountCollection stores discount codes.
type DiscountCollection interface {
	Repository[models.Discount]
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	// Redeem records user as a redeemer if the code is unexpired at now and
	// user has not redeemed it yet. It returns ErrNotFound otherwise.
	Redeem(ctx context.Context, id primitive.ObjectID, user primitive.ObjectID, now time.Time) (*models.Discount, error)
}

// SubscriptionCollection stores package subscriptions.
type SubscriptionCollection interface {
	Repository[models.Subscription]
	MarkPaid(ctx context.Context, id primitive.ObjectID, trnID string) (*models.Subscription, error)
}

// PackageCollection stores subscription packages.
type PackageCollection interface {
	Repository[models.Package]
	IncrementPopularity(ctx context.Context, id primitive.ObjectID) error
}

// LocationCollection stores service locations.
type LocationCollection interface {
	Repository[models.Location]
	ExistsWithin(ctx context.Context, point models.GeoPoint, meters float64) (bool, error)
}

// DriverLocationCollection stores the latest position of every driver.
type DriverLocationCollection interface {
	Upsert(ctx context.Context, loc models.DriverLocation) error
	FindByDriver(ctx context.Context, driverID string) (*models.DriverLocation, error)
	FindNear(ctx context.Context, point models.GeoPoint, meters float64, limit int64) ([]models.DriverLocation, error)
}
