package geo

import "math"

const (
	// MetersPerMile converts the service radius into the unit MongoDB's
	// $maxDistance expects for GeoJSON points.
	MetersPerMile = 1609.34
	// EarthRadiusMiles is Earth's radius in miles for Haversine calculation.
	EarthRadiusMiles = 3958.7613
	// DefaultServiceRadiusMiles is how far a registered location serves.
	DefaultServiceRadiusMiles = 10.0
)

// MilesToMeters converts miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

// HaversineMiles calculates the great-circle distance between two points
// on Earth in miles.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

// IsWithinRadius checks if two coordinates are within radiusMiles of each other.
func IsWithinRadius(lat1, lng1, lat2, lng2, radiusMiles float64) bool {
	return HaversineMiles(lat1, lng1, lat2, lng2) <= radiusMiles
}

// ValidCoordinates reports whether lng/lat are inside WGS84 bounds.
func ValidCoordinates(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}
