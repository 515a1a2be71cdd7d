package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/db/dbmock"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/services"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newVehicleHandler() (*ResourceHandler[models.Vehicle, *models.Vehicle], *dbmock.Repository[models.Vehicle]) {
	store := &dbmock.Repository[models.Vehicle]{}
	h := NewResourceHandler("Vehicle", services.NewVehicleResource(store))
	h.Scope = func(c services.Caller) bson.M { return c.Scope("userId", models.RoleDriver) }
	h.Prepare = func(c services.Caller, v *models.Vehicle) error {
		v.UserID = c.ID
		return nil
	}
	return h, store
}

func TestResourceHandler_Create(t *testing.T) {
	owner := primitive.NewObjectID()

	t.Run("owner comes from the token", func(t *testing.T) {
		h, store := newVehicleHandler()
		store.On("Insert", mock.Anything, mock.MatchedBy(func(v *models.Vehicle) bool {
			return v.UserID == owner && !v.ID.IsZero()
		})).Return(nil)

		w := httptest.NewRecorder()
		req := withClaims(newRequest("POST", "/api/v1/vehicles/create", map[string]interface{}{
			"userId":      primitive.NewObjectID().Hex(),
			"make":        "Toyota",
			"model":       "Corolla",
			"year":        2020,
			"plateNumber": "ABC-123",
			"fuelType":    "Petrol",
		}), owner, models.RoleUser)
		h.Create(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "Vehicle created successfully", env.Message)
		var got models.Vehicle
		decodeData(t, env, &got)
		assert.Equal(t, owner, got.UserID)
		store.AssertExpectations(t)
	})

	t.Run("validation failure", func(t *testing.T) {
		h, store := newVehicleHandler()

		w := httptest.NewRecorder()
		req := withClaims(newRequest("POST", "/api/v1/vehicles/create", map[string]string{"make": "Toyota"}), owner, models.RoleUser)
		h.Create(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})
}

func TestResourceHandler_List(t *testing.T) {
	owner := primitive.NewObjectID()

	t.Run("customers are scoped to their own", func(t *testing.T) {
		h, store := newVehicleHandler()
		store.On("Find", mock.Anything, bson.M{"userId": owner}, mock.Anything).
			Return([]models.Vehicle{{ID: primitive.NewObjectID(), UserID: owner}}, int64(1), nil)

		w := httptest.NewRecorder()
		h.List(w, withClaims(newRequest("GET", "/api/v1/vehicles?limit=5", nil), owner, models.RoleUser))

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "Vehicles retrieved successfully", env.Message)
		if assert.NotNil(t, env.Meta) {
			assert.Equal(t, 5, env.Meta.Limit)
			assert.Equal(t, int64(1), env.Meta.Total)
		}
	})

	t.Run("drivers see every vehicle", func(t *testing.T) {
		h, store := newVehicleHandler()
		store.On("Find", mock.Anything, bson.M(nil), mock.Anything).Return([]models.Vehicle{}, int64(0), nil)

		w := httptest.NewRecorder()
		h.List(w, withClaims(newRequest("GET", "/api/v1/vehicles", nil), primitive.NewObjectID(), models.RoleDriver))

		assert.Equal(t, http.StatusOK, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("bad page", func(t *testing.T) {
		h, _ := newVehicleHandler()
		w := httptest.NewRecorder()
		h.List(w, withClaims(newRequest("GET", "/api/v1/vehicles?page=0", nil), owner, models.RoleUser))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourceHandler_UpdateDelete(t *testing.T) {
	owner := primitive.NewObjectID()
	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), UserID: owner, Make: "Toyota"}
	id := vehicle.ID.Hex()

	t.Run("mutable field", func(t *testing.T) {
		h, store := newVehicleHandler()
		updated := *vehicle
		updated.Color = "red"
		store.On("FindOne", mock.Anything, bson.M{"_id": vehicle.ID, "userId": owner}).Return(vehicle, nil)
		store.On("Update", mock.Anything, id, bson.M{"color": "red"}).Return(&updated, nil)

		w := httptest.NewRecorder()
		req := withParam(withClaims(newRequest("PATCH", "/api/v1/vehicles/update/"+id, map[string]string{"color": "red"}), owner, models.RoleUser), "id", id)
		h.Update(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("owner cannot be reassigned", func(t *testing.T) {
		h, store := newVehicleHandler()

		w := httptest.NewRecorder()
		req := withParam(withClaims(newRequest("PATCH", "/api/v1/vehicles/update/"+id, map[string]string{"userId": primitive.NewObjectID().Hex()}), owner, models.RoleUser), "id", id)
		h.Update(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete someone else's", func(t *testing.T) {
		h, store := newVehicleHandler()
		store.On("FindOne", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)

		w := httptest.NewRecorder()
		req := withParam(withClaims(newRequest("DELETE", "/api/v1/vehicles/"+id, nil), primitive.NewObjectID(), models.RoleUser), "id", id)
		h.Delete(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
