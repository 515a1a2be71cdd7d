package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection           = "users"
	OrdersCollection          = "orderfuels"
	PaymentsCollection        = "payments"
	SubscriptionsCollection   = "subscriptions"
	PackagesCollection        = "packages"
	DiscountsCollection       = "discounts"
	LocationsCollection       = "locations"
	VehiclesCollection        = "vehicles"
	DriverEarningsCollection  = "driverearnings"
	QuestionsCollection       = "questions"
	NotificationsCollection   = "notifications"
	DriverLocationsCollection = "driver_locations"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned for identifiers that are not ObjectID hex strings.
	ErrInvalidID = errors.New("invalid object id")
	// ErrNilCollection is returned when a wrapper has no backing collection.
	ErrNilCollection = errors.New("mongo collection is nil")
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the queries and uniqueness rules rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		LocationsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		},
		DriverLocationsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "driverId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		DiscountsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		PaymentsCollection: {
			// at most one open payment per payer and target
			{
				Keys: bson.D{
					{Key: "user", Value: 1},
					{Key: "subscription", Value: 1},
					{Key: "orderFuel", Value: 1},
				},
				Options: options.Index().
					SetName("pending_payment_per_target").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isPaid": false, "isDeleted": false}),
			},
			{Keys: bson.D{{Key: "isPaid", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "isPaid", Value: 1}, {Key: "orderStatus", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// ObjectID parses a hex identifier.
func ObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
