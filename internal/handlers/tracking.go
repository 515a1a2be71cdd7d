package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/geo"
	"github.com/ukydev/fuel-delivery/internal/models"
)

const (
	defaultNearbyLimit = 20
	maxNearbyLimit     = 100
)

// DriverNearby is a driver position annotated with its distance to the
// requested point.
type DriverNearby struct {
	models.DriverLocation
	DistanceMiles float64 `json:"distanceMiles"`
}

// TrackingHandler serves the latest known driver positions.
type TrackingHandler struct {
	locations   db.DriverLocationCollection
	radiusMiles float64
}

func NewTrackingHandler(locations db.DriverLocationCollection, radiusMiles float64) *TrackingHandler {
	return &TrackingHandler{locations: locations, radiusMiles: radiusMiles}
}

func (h *TrackingHandler) Location(w http.ResponseWriter, r *http.Request) {
	loc, err := h.locations.FindByDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, r, apperr.NotFound("driver location not found"))
		case errors.Is(err, db.ErrInvalidID):
			respondError(w, r, apperr.InvalidInput("invalid driver id"))
		default:
			respondError(w, r, apperr.PersistenceFailure("Failed to load driver location", err))
		}
		return
	}
	respond(w, http.StatusOK, "Driver location retrieved successfully", loc)
}

func floatParam(raw, name string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.InvalidInput(name + " must be a number")
	}
	return v, nil
}

// Nearby lists drivers closest to ?lng=&lat= within ?radius= miles.
func (h *TrackingHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lng, err := floatParam(q.Get("lng"), "lng")
	if err != nil {
		respondError(w, r, err)
		return
	}
	lat, err := floatParam(q.Get("lat"), "lat")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !geo.ValidCoordinates(lng, lat) {
		respondError(w, r, apperr.InvalidInput("invalid coordinates"))
		return
	}

	radius := h.radiusMiles
	if raw := q.Get("radius"); raw != "" {
		if radius, err = floatParam(raw, "radius"); err != nil || radius <= 0 {
			respondError(w, r, apperr.InvalidInput("radius must be a positive number"))
			return
		}
	}
	limit := int64(defaultNearbyLimit)
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, r, apperr.InvalidInput("limit must be a positive integer"))
			return
		}
		if n > maxNearbyLimit {
			n = maxNearbyLimit
		}
		limit = int64(n)
	}

	found, err := h.locations.FindNear(r.Context(), models.NewGeoPoint(lng, lat), geo.MilesToMeters(radius), limit)
	if err != nil {
		respondError(w, r, apperr.PersistenceFailure("Failed to find nearby drivers", err))
		return
	}
	out := make([]DriverNearby, 0, len(found))
	for _, d := range found {
		out = append(out, DriverNearby{
			DriverLocation: d,
			DistanceMiles:  geo.HaversineMiles(lat, lng, d.Location.Lat(), d.Location.Lng()),
		})
	}
	respond(w, http.StatusOK, "Nearby drivers retrieved successfully", out)
}
