package db

import (
	"context"
	"time"

	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoOrderCollection implements OrderCollection. Orders are soft deleted.
type MongoOrderCollection struct {
	*Store[models.Order]
}

// NewOrderCollection wraps coll.
func NewOrderCollection(coll *mongo.Collection) *MongoOrderCollection {
	return &MongoOrderCollection{Store: NewStore[models.Order](coll, true)}
}

// Find lists orders with the ordering user populated.
func (c *MongoOrderCollection) Find(ctx context.Context, base bson.M, q query.Query) ([]models.Order, int64, error) {
	if c.Collection == nil {
		return nil, 0, ErrNilCollection
	}
	filter := c.visible(q.Filter(base))

	total, err := c.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	pipeline = append(pipeline, q.Stages()...)
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         UsersCollection,
			"localField":   "userId",
			"foreignField": "_id",
			"as":           "user",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$unset", Value: "user.passwordHash"}},
	)
	if p := q.Projection(); p != nil {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: p}})
	}

	orders, err := aggregate[models.Order](ctx, c.Collection, pipeline)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MarkPaid flags the order paid and links the confirming payment.
func (c *MongoOrderCollection) MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID primitive.ObjectID) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	res, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isPaid": true, "paymentId": paymentID, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
