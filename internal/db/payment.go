package db

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPaymentCollection implements PaymentCollection.
type MongoPaymentCollection struct {
	*Store[models.Payment]
}

// NewPaymentCollection wraps coll.
func NewPaymentCollection(coll *mongo.Collection) *MongoPaymentCollection {
	return &MongoPaymentCollection{Store: NewStore[models.Payment](coll, true)}
}

func pendingKey(p models.Payment) bson.M {
	key := bson.M{"user": p.User, "isPaid": false, "isDeleted": false}
	switch p.Target() {
	case models.TargetOrder:
		key["orderFuel"] = *p.OrderFuel
	case models.TargetSubscription:
		key["subscription"] = *p.Subscription
	}
	return key
}

// ReusePending upserts the open payment for p's payer and target. An
// existing payment keeps its amount and discount code and gets p's
// transaction id. The unique
// pending index turns a lost insert race into a duplicate key error, which
// is retried once as a plain reuse.
func (c *MongoPaymentCollection) ReusePending(ctx context.Context, p models.Payment) (*models.Payment, bool, error) {
	if c.Collection == nil {
		return nil, false, ErrNilCollection
	}
	key := pendingKey(p)
	onInsert := bson.M{
		"amount": p.Amount,
	}
	if p.DiscountCode != "" {
		onInsert["discountCode"] = p.DiscountCode
	}

	var (
		res *mongo.UpdateResult
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		res, err = c.Collection.UpdateOne(ctx, key,
			bson.M{
				"$set": bson.M{
					"tranId":    p.TranID,
					"status":    models.PaymentCreated,
					"updatedAt": now,
				},
				"$setOnInsert": withInsertIdentity(onInsert, now),
			},
			options.Update().SetUpsert(true),
		)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return nil, false, err
	}

	created := res.UpsertedID != nil
	filter := key
	if created {
		filter = bson.M{"_id": res.UpsertedID}
	}
	var out models.Payment
	if err := c.Collection.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, false, notFound(err)
	}
	return &out, created, nil
}

func withInsertIdentity(fields bson.M, now time.Time) bson.M {
	out := bson.M{"_id": primitive.NewObjectID(), "createdAt": now}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// MarkAwaiting records the gateway session and final amount of a payment
// that is not confirmed yet.
func (c *MongoPaymentCollection) MarkAwaiting(ctx context.Context, id primitive.ObjectID, sessionID string, amount float64, discountCode string) (*models.Payment, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	set := bson.M{
		"sessionId": sessionID,
		"amount":    amount,
		"status":    models.PaymentAwaitingConfirmation,
		"updatedAt": time.Now().UTC(),
	}
	if discountCode != "" {
		set["discountCode"] = discountCode
	}
	var out models.Payment
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isPaid": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// Confirm atomically moves an unconfirmed payment to confirmed.
func (c *MongoPaymentCollection) Confirm(ctx context.Context, id primitive.ObjectID) (*models.Payment, bool, error) {
	if c.Collection == nil {
		return nil, false, ErrNilCollection
	}
	now := time.Now().UTC()
	var out models.Payment
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{
			"_id":    id,
			"status": bson.M{"$ne": models.PaymentConfirmed},
		},
		bson.M{"$set": bson.M{
			"status":      models.PaymentConfirmed,
			"isPaid":      true,
			"confirmedAt": now,
			"updatedAt":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == nil {
		return &out, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// either missing or confirmed by an earlier call
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, false, notFound(err)
	}
	return &out, false, nil
}

// MarkFailed moves an unconfirmed payment to failed.
func (c *MongoPaymentCollection) MarkFailed(ctx context.Context, id primitive.ObjectID) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	_, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": bson.A{models.PaymentCreated, models.PaymentAwaitingConfirmation}}},
		bson.M{"$set": bson.M{"status": models.PaymentFailed, "updatedAt": time.Now().UTC()}},
	)
	return err
}

// detailStages joins the payer, the subscription and its package.
func detailStages() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         UsersCollection,
			"localField":   "user",
			"foreignField": "_id",
			"as":           "userDetails",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SubscriptionsCollection,
			"localField":   "subscription",
			"foreignField": "_id",
			"as":           "subscriptionDetails",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$subscriptionDetails", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         PackagesCollection,
			"localField":   "subscriptionDetails.package",
			"foreignField": "_id",
			"as":           "packageDetails",
		}}},
		{{Key: "$project", Value: bson.M{
			"amount":       1,
			"tranId":       1,
			"status":       1,
			"isPaid":       1,
			"orderFuel":    1,
			"createdAt":    1,
			"updatedAt":    1,
			"user":         bson.M{"$arrayElemAt": bson.A{"$userDetails", 0}},
			"subscription": "$subscriptionDetails",
			"package":      bson.M{"$arrayElemAt": bson.A{"$packageDetails", 0}},
		}}},
		{{Key: "$unset", Value: "user.passwordHash"}},
	}
}

// FindDetails lists payments with their references populated.
func (c *MongoPaymentCollection) FindDetails(ctx context.Context, base bson.M, q query.Query) ([]models.PaymentDetails, int64, error) {
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
	pipeline = append(pipeline, detailStages()...)

	out, err := aggregate[models.PaymentDetails](ctx, c.Collection, pipeline)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Earnings sums every paid payment, the paid payments created between
// dayStart and dayEnd, and lists all paid payments newest first.
func (c *MongoPaymentCollection) Earnings(ctx context.Context, dayStart, dayEnd time.Time) (*models.Earnings, error) {
	allData := mongo.Pipeline{{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}}}
	allData = append(allData, detailStages()...)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isPaid": true, "isDeleted": bson.M{"$ne": true}}}},
		{{Key: "$facet", Value: bson.M{
			"totalEarnings": bson.A{
				bson.M{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}},
			},
			"todayEarnings": bson.A{
				bson.M{"$match": bson.M{"createdAt": bson.M{"$gte": dayStart, "$lte": dayEnd}}},
				bson.M{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}},
			},
			"allData": allData,
		}}},
	}

	type sum struct {
		Total float64 `bson:"total"`
	}
	type facet struct {
		TotalEarnings []sum                   `bson:"totalEarnings"`
		TodayEarnings []sum                   `bson:"todayEarnings"`
		AllData       []models.PaymentDetails `bson:"allData"`
	}

	res, err := aggregate[facet](ctx, c.Collection, pipeline)
	if err != nil {
		return nil, err
	}

	out := &models.Earnings{AllData: []models.PaymentDetails{}}
	if len(res) == 0 {
		return out, nil
	}
	if len(res[0].TotalEarnings) > 0 {
		out.TotalEarnings = round2(res[0].TotalEarnings[0].Total)
	}
	if len(res[0].TodayEarnings) > 0 {
		out.TodayEarnings = round2(res[0].TodayEarnings[0].Total)
	}
	if res[0].AllData != nil {
		out.AllData = res[0].AllData
	}
	return out, nil
}

// RecentPaid returns the latest paid payments with the payer populated.
func (c *MongoPaymentCollection) RecentPaid(ctx context.Context, limit int64) ([]models.PaymentDetails, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isPaid": true, "isDeleted": bson.M{"$ne": true}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
	pipeline = append(pipeline, detailStages()...)
	return aggregate[models.PaymentDetails](ctx, c.Collection, pipeline)
}

// TotalPaid sums the amount of every paid payment.
func (c *MongoPaymentCollection) TotalPaid(ctx context.Context) (float64, error) {
	type sum struct {
		Total float64 `bson:"total"`
	}
	res, err := aggregate[sum](ctx, c.Collection, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isPaid": true, "isDeleted": bson.M{"$ne": true}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil || len(res) == 0 {
		return 0, err
	}
	return round2(res[0].Total), nil
}

// MonthlyIncome sums paid payments per calendar month of year.
func (c *MongoPaymentCollection) MonthlyIncome(ctx context.Context, year int) ([]models.MonthBucket, error) {
	start, end := yearRange(year)
	return aggregate[models.MonthBucket](ctx, c.Collection, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"isPaid":    true,
			"isDeleted": bson.M{"$ne": true},
			"createdAt": bson.M{"$gte": start, "$lt": end},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$month": "$createdAt"},
			"total": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
}

func yearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
