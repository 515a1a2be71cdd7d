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

// MongoDiscountCollection implements DiscountCollection.
type MongoDiscountCollection struct {
	*Store[models.Discount]
}

// NewDiscountCollection wraps coll.
func NewDiscountCollection(coll *mongo.Collection) *MongoDiscountCollection {
	return &MongoDiscountCollection{Store: NewStore[models.Discount](coll, false)}
}

// FindByCode looks a discount up by its code.
func (c *MongoDiscountCollection) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	return c.FindOne(ctx, bson.M{"code": code})
}

// Redeem is a compare-and-set: it only matches while the code is unexpired
// and user is neither the last nor an earlier redeemer.
func (c *MongoDiscountCollection) Redeem(ctx context.Context, id primitive.ObjectID, user primitive.ObjectID, now time.Time) (*models.Discount, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var out models.Discount
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{
			"_id":     id,
			"endDate": bson.M{"$gte": now},
			"usedBy":  bson.M{"$ne": user},
			"userId":  bson.M{"$ne": user},
		},
		bson.M{
			"$addToSet": bson.M{"usedBy": user},
			"$set":      bson.M{"userId": user, "isUsed": true, "updatedAt": now},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}
