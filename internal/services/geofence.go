package services

import (
	"context"

	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/geo"
	"github.com/ukydev/fuel-delivery/internal/models"
)

// LocationFinder answers proximity queries against service locations.
type LocationFinder interface {
	ExistsWithin(ctx context.Context, point models.GeoPoint, meters float64) (bool, error)
}

// Geofence admits points within RadiusMiles of a registered location.
type Geofence struct {
	Locations   LocationFinder
	RadiusMiles float64
}

// NewGeofence returns a Geofence, using the default radius when miles <= 0.
func NewGeofence(locations LocationFinder, miles float64) *Geofence {
	if miles <= 0 {
		miles = geo.DefaultServiceRadiusMiles
	}
	return &Geofence{Locations: locations, RadiusMiles: miles}
}

// Admit returns nil when point is inside the service area.
func (g *Geofence) Admit(ctx context.Context, point models.GeoPoint) error {
	if !point.Valid() {
		return apperr.InvalidInput("location must be a GeoJSON point with valid [longitude, latitude]")
	}
	ok, err := g.Locations.ExistsWithin(ctx, point.Normalized(), geo.MilesToMeters(g.RadiusMiles))
	if err != nil {
		return apperr.PersistenceFailure("failed to check service area", err)
	}
	if !ok {
		return apperr.ServiceUnavailable("service is not available in your area")
	}
	return nil
}
