package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/db/dbmock"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newVehicleResource() (*Resource[models.Vehicle, *models.Vehicle], *dbmock.Repository[models.Vehicle]) {
	store := &dbmock.Repository[models.Vehicle]{}
	spec := query.Spec{SearchFields: []string{"make", "model"}, Filters: map[string]query.FieldKind{"fuelType": query.String}}
	r := NewResource[models.Vehicle, *models.Vehicle]("vehicle", store, spec, "make", "model", "color", "plateNumber")
	return r, store
}

func TestResource_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		r, store := newVehicleResource()
		store.On("Insert", mock.Anything, mock.AnythingOfType("*models.Vehicle")).Return(nil)

		v, err := r.Create(ctx, &models.Vehicle{Make: "Ford", Model: "Transit", PlateNumber: "AB-1", FuelType: models.FuelDiesel})
		require.NoError(t, err)
		assert.False(t, v.ID.IsZero())
		assert.False(t, v.CreatedAt.IsZero())
	})

	t.Run("invalid", func(t *testing.T) {
		r, store := newVehicleResource()
		_, err := r.Create(ctx, &models.Vehicle{Model: "Transit"})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("insert failure", func(t *testing.T) {
		r, store := newVehicleResource()
		store.On("Insert", mock.Anything, mock.Anything).Return(assert.AnError)

		_, err := r.Create(ctx, &models.Vehicle{Make: "Ford", Model: "Transit", PlateNumber: "AB-1", FuelType: models.FuelDiesel})
		assert.Equal(t, "Failed to create vehicle", apperr.Message(err))
	})
}

func TestResource_Scope(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	id := primitive.NewObjectID()

	t.Run("get within scope", func(t *testing.T) {
		r, store := newVehicleResource()
		store.On("FindOne", mock.Anything, bson.M{"_id": id, "userId": owner}).Return(&models.Vehicle{ID: id, UserID: owner}, nil)

		v, err := r.Get(ctx, id.Hex(), bson.M{"userId": owner})
		require.NoError(t, err)
		assert.Equal(t, id, v.ID)
	})

	t.Run("get outside scope", func(t *testing.T) {
		r, store := newVehicleResource()
		store.On("FindOne", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)

		_, err := r.Get(ctx, id.Hex(), bson.M{"userId": owner})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		assert.Equal(t, "vehicle not found", apperr.Message(err))
	})

	t.Run("list passes scope as base filter", func(t *testing.T) {
		r, store := newVehicleResource()
		store.On("Find", mock.Anything, bson.M{"userId": owner}, mock.Anything).
			Return([]models.Vehicle{{ID: id}}, int64(1), nil)

		page, err := r.List(ctx, bson.M{"userId": owner}, url.Values{"fuelType": {"Diesel"}, "limit": {"5"}})
		require.NoError(t, err)
		assert.Len(t, page.Data, 1)
		assert.Equal(t, 5, page.Meta.Limit)
	})

	t.Run("list rejects unknown filters", func(t *testing.T) {
		r, _ := newVehicleResource()
		_, err := r.List(ctx, nil, url.Values{"userId": {owner.Hex()}})
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})
}

func TestResource_Update(t *testing.T) {
	ctx := context.Background()
	id := primitive.NewObjectID()

	t.Run("mutable fields only", func(t *testing.T) {
		r, store := newVehicleResource()
		_, err := r.Update(ctx, id.Hex(), nil, []byte(`{"userId":"`+id.Hex()+`","isDeleted":true,"color":"red"}`))
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
		assert.Contains(t, apperr.Message(err), "isDeleted, userId")
		store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("applies provided fields", func(t *testing.T) {
		r, store := newVehicleResource()
		store.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Vehicle{ID: id}, nil)
		store.On("Update", mock.Anything, id.Hex(), bson.M{"color": "red", "plateNumber": "XY-9"}).
			Return(&models.Vehicle{ID: id, Color: "red", PlateNumber: "XY-9"}, nil)

		v, err := r.Update(ctx, id.Hex(), nil, []byte(`{"color":"red","plateNumber":"XY-9"}`))
		require.NoError(t, err)
		assert.Equal(t, "red", v.Color)
		store.AssertExpectations(t)
	})

	t.Run("empty body", func(t *testing.T) {
		r, _ := newVehicleResource()
		_, err := r.Update(ctx, id.Hex(), nil, []byte(`{}`))
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("malformed body", func(t *testing.T) {
		r, _ := newVehicleResource()
		_, err := r.Update(ctx, id.Hex(), nil, []byte(`{"color":`))
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})
}

func TestResource_Delete(t *testing.T) {
	ctx := context.Background()
	id := primitive.NewObjectID()

	r, store := newVehicleResource()
	store.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Vehicle{ID: id}, nil)
	store.On("Delete", mock.Anything, id.Hex()).Return(&models.Vehicle{ID: id}, nil)

	_, err := r.Delete(ctx, id.Hex(), nil)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestSubscriptionService_Subscribe(t *testing.T) {
	ctx := context.Background()
	caller := Caller{ID: primitive.NewObjectID(), Role: models.RoleUser}
	pkg := &models.Package{ID: primitive.NewObjectID(), Name: "Gold", Price: 49.99}

	t.Run("priced from the package", func(t *testing.T) {
		subs := &dbmock.SubscriptionCollection{}
		packages := &dbmock.PackageCollection{}
		packages.On("FindByID", mock.Anything, pkg.ID.Hex()).Return(pkg, nil)
		subs.On("Insert", mock.Anything, mock.AnythingOfType("*models.Subscription")).Return(nil)

		sub, err := NewSubscriptionService(subs, packages).Subscribe(ctx, caller, models.CreateSubscriptionRequest{Package: pkg.ID.Hex()})
		require.NoError(t, err)
		assert.Equal(t, caller.ID, sub.User)
		assert.Equal(t, pkg.ID, sub.Package)
		assert.Equal(t, 49.99, sub.Amount)
		assert.False(t, sub.IsPaid)
	})

	t.Run("unknown package", func(t *testing.T) {
		subs := &dbmock.SubscriptionCollection{}
		packages := &dbmock.PackageCollection{}
		packages.On("FindByID", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)

		_, err := NewSubscriptionService(subs, packages).Subscribe(ctx, caller, models.CreateSubscriptionRequest{Package: pkg.ID.Hex()})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		subs.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})
}
