package db

import (
	"context"
	"time"

	"github.com/ukydev/fuel-delivery/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a Repository backed by a single MongoDB collection.
//
// When SoftDelete is set, Delete flags documents with isDeleted instead of
// removing them and every read skips flagged documents.
type Store[T any] struct {
	Collection *mongo.Collection
	SoftDelete bool
}

// NewStore wraps coll.
func NewStore[T any](coll *mongo.Collection, softDelete bool) *Store[T] {
	return &Store[T]{Collection: coll, SoftDelete: softDelete}
}

func (s *Store[T]) visible(filter bson.M) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	if s.SoftDelete {
		if _, ok := out["isDeleted"]; !ok {
			out["isDeleted"] = bson.M{"$ne": true}
		}
	}
	return out
}

// Insert writes doc. Callers set the identifier and timestamps.
func (s *Store[T]) Insert(ctx context.Context, doc *T) error {
	if s.Collection == nil {
		return ErrNilCollection
	}
	_, err := s.Collection.InsertOne(ctx, doc)
	return err
}

// FindByID returns the document with the given hex id.
func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, bson.M{"_id": oid})
}

// FindOne returns the first document matching filter.
func (s *Store[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	if s.Collection == nil {
		return nil, ErrNilCollection
	}
	var doc T
	if err := s.Collection.FindOne(ctx, s.visible(filter)).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// Find returns one page of documents matching q merged with base, and the
// total number of matches.
func (s *Store[T]) Find(ctx context.Context, base bson.M, q query.Query) ([]T, int64, error) {
	if s.Collection == nil {
		return nil, 0, ErrNilCollection
	}
	filter := s.visible(q.Filter(base))

	total, err := s.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := s.Collection.Find(ctx, filter, q.FindOptions())
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Count returns the number of visible documents matching filter.
func (s *Store[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	if s.Collection == nil {
		return 0, ErrNilCollection
	}
	return s.Collection.CountDocuments(ctx, s.visible(filter))
}

// Update applies set to the document and returns it after the change.
// updatedAt is always refreshed.
func (s *Store[T]) Update(ctx context.Context, id string, set bson.M) (*T, error) {
	if s.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}

	fields := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range set {
		fields[k] = v
	}

	var doc T
	err = s.Collection.FindOneAndUpdate(ctx,
		s.visible(bson.M{"_id": oid}),
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// Delete soft deletes or removes the document depending on SoftDelete and
// returns its last state.
func (s *Store[T]) Delete(ctx context.Context, id string) (*T, error) {
	if !s.SoftDelete {
		return s.findAndRemove(ctx, id)
	}
	return s.Update(ctx, id, bson.M{"isDeleted": true})
}

// Remove deletes the document regardless of SoftDelete.
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	_, err := s.findAndRemove(ctx, id)
	return err
}

func (s *Store[T]) findAndRemove(ctx context.Context, id string) (*T, error) {
	if s.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := s.Collection.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// aggregate runs pipeline and decodes every result into out.
func aggregate[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
