package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/query"
	"github.com/ukydev/fuel-delivery/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
)

// Document is a pointer to a model that can initialise itself for insert.
type Document[T any] interface {
	*T
	Init(now time.Time)
}

// Resource is the create, read, list, update and delete service for
// documents without bespoke business rules.
type Resource[T any, PT Document[T]] struct {
	Name  string
	Store db.Repository[T]
	Spec  query.Spec
	// Mutable lists the JSON fields an update may change.
	Mutable []string

	Now func() time.Time
}

// NewResource returns a Resource over store.
func NewResource[T any, PT Document[T]](name string, store db.Repository[T], spec query.Spec, mutable ...string) *Resource[T, PT] {
	return &Resource[T, PT]{
		Name:    name,
		Store:   store,
		Spec:    spec,
		Mutable: mutable,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func scoped(scope bson.M, extra bson.M) bson.M {
	out := bson.M{}
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range scope {
		out[k] = v
	}
	return out
}

// Create validates and inserts doc.
func (r *Resource[T, PT]) Create(ctx context.Context, doc *T) (*T, error) {
	PT(doc).Init(r.Now())
	if err := validation.Struct(doc); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := r.Store.Insert(ctx, doc); err != nil {
		return nil, apperr.PersistenceFailure(fmt.Sprintf("Failed to create %s", r.Name), err)
	}
	return doc, nil
}

// Get returns one document visible within scope.
func (r *Resource[T, PT]) Get(ctx context.Context, id string, scope bson.M) (*T, error) {
	oid, err := db.ObjectID(id)
	if err != nil {
		return nil, storeError(err, r.Name)
	}
	doc, err := r.Store.FindOne(ctx, scoped(scope, bson.M{"_id": oid}))
	if err != nil {
		return nil, storeError(err, r.Name)
	}
	return doc, nil
}

// List returns one page of documents within scope.
func (r *Resource[T, PT]) List(ctx context.Context, scope bson.M, values url.Values) (*query.Page[T], error) {
	q, err := query.Parse(values, r.Spec)
	if err != nil {
		return nil, err
	}
	docs, total, err := r.Store.Find(ctx, scope, q)
	if err != nil {
		return nil, storeError(err, r.Name)
	}
	return &query.Page[T]{Data: docs, Meta: q.Meta(total)}, nil
}

// Update applies the mutable fields present in the JSON body.
func (r *Resource[T, PT]) Update(ctx context.Context, id string, scope bson.M, body []byte) (*T, error) {
	set, err := r.patch(body)
	if err != nil {
		return nil, err
	}
	if _, err := r.Get(ctx, id, scope); err != nil {
		return nil, err
	}
	doc, err := r.Store.Update(ctx, id, set)
	if err != nil {
		return nil, storeError(err, r.Name)
	}
	return doc, nil
}

// patch decodes body into T and keeps the provided fields that are mutable,
// in their stored (typed) form.
func (r *Resource[T, PT]) patch(body []byte) (bson.M, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperr.InvalidInput("Invalid request body")
	}
	if len(raw) == 0 {
		return nil, apperr.InvalidInput("nothing to update")
	}

	allowed := make(map[string]bool, len(r.Mutable))
	for _, f := range r.Mutable {
		allowed[f] = true
	}
	var rejected []string
	for k := range raw {
		if !allowed[k] {
			rejected = append(rejected, k)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, apperr.InvalidInput("fields cannot be updated: " + strings.Join(rejected, ", "))
	}

	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperr.InvalidInput("Invalid request body")
	}
	encoded, err := bson.Marshal(&doc)
	if err != nil {
		return nil, apperr.InvalidInput("Invalid request body")
	}
	var stored bson.M
	if err := bson.Unmarshal(encoded, &stored); err != nil {
		return nil, apperr.InvalidInput("Invalid request body")
	}

	set := bson.M{}
	for k := range raw {
		if v, ok := stored[k]; ok {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return nil, apperr.InvalidInput("nothing to update")
	}
	return set, nil
}

// Delete removes or soft deletes one document within scope.
func (r *Resource[T, PT]) Delete(ctx context.Context, id string, scope bson.M) (*T, error) {
	if _, err := r.Get(ctx, id, scope); err != nil {
		return nil, err
	}
	doc, err := r.Store.Delete(ctx, id)
	if err != nil {
		return nil, storeError(err, r.Name)
	}
	return doc, nil
}
