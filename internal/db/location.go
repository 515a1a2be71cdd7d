package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/fuel-delivery/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func nearFilter(point models.GeoPoint, meters float64) bson.M {
	return bson.M{"location": bson.M{"$near": bson.M{
		"$geometry":    point.Normalized(),
		"$maxDistance": meters,
	}}}
}

// MongoLocationCollection implements LocationCollection.
type MongoLocationCollection struct {
	*Store[models.Location]
}

// NewLocationCollection wraps coll.
func NewLocationCollection(coll *mongo.Collection) *MongoLocationCollection {
	return &MongoLocationCollection{Store: NewStore[models.Location](coll, false)}
}

// ExistsWithin reports whether any service location lies within meters of
// point. Requires the 2dsphere index from EnsureIndexes.
func (c *MongoLocationCollection) ExistsWithin(ctx context.Context, point models.GeoPoint, meters float64) (bool, error) {
	if c.Collection == nil {
		return false, ErrNilCollection
	}
	err := c.Collection.FindOne(ctx, nearFilter(point, meters),
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MongoDriverLocationCollection implements DriverLocationCollection.
type MongoDriverLocationCollection struct {
	Collection *mongo.Collection
}

// Upsert replaces the stored position of loc.DriverID.
func (c *MongoDriverLocationCollection) Upsert(ctx context.Context, loc models.DriverLocation) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	loc.Location = loc.Location.Normalized()
	loc.UpdatedAt = time.Now().UTC()
	_, err := c.Collection.UpdateOne(ctx,
		bson.M{"driverId": loc.DriverID},
		bson.M{"$set": loc},
		options.Update().SetUpsert(true),
	)
	return err
}

// FindByDriver returns the last known position of a driver.
func (c *MongoDriverLocationCollection) FindByDriver(ctx context.Context, driverID string) (*models.DriverLocation, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := ObjectID(driverID)
	if err != nil {
		return nil, err
	}
	var out models.DriverLocation
	if err := c.Collection.FindOne(ctx, bson.M{"driverId": oid}).Decode(&out); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// FindNear returns drivers within meters of point, nearest first.
func (c *MongoDriverLocationCollection) FindNear(ctx context.Context, point models.GeoPoint, meters float64, limit int64) ([]models.DriverLocation, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	cursor, err := c.Collection.Find(ctx, nearFilter(point, meters), options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]models.DriverLocation, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
