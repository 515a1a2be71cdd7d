package db

import (
	"context"
	"time"

	"github.com/ukydev/fuel-delivery/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubscriptionCollection implements SubscriptionCollection.
type MongoSubscriptionCollection struct {
	*Store[models.Subscription]
}

// NewSubscriptionCollection wraps coll.
func NewSubscriptionCollection(coll *mongo.Collection) *MongoSubscriptionCollection {
	return &MongoSubscriptionCollection{Store: NewStore[models.Subscription](coll, false)}
}

// MarkPaid flags the subscription paid with the gateway transaction id.
func (c *MongoSubscriptionCollection) MarkPaid(ctx context.Context, id primitive.ObjectID, trnID string) (*models.Subscription, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var out models.Subscription
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isPaid": true, "trnId": trnID, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// MongoPackageCollection implements PackageCollection.
type MongoPackageCollection struct {
	*Store[models.Package]
}

// NewPackageCollection wraps coll.
func NewPackageCollection(coll *mongo.Collection) *MongoPackageCollection {
	return &MongoPackageCollection{Store: NewStore[models.Package](coll, false)}
}

// IncrementPopularity adds one purchase to the package counter.
func (c *MongoPackageCollection) IncrementPopularity(ctx context.Context, id primitive.ObjectID) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	res, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"popularity": 1}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
