// Package geo implements great-circle distance on a spherical Earth.
package geo

import (
	"math"

	"github.com/kilianp07/civicdispatch/core/model"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKm returns the haversine distance between a and b in kilometres.
//
// The longitude delta is not normalised across the antimeridian. Because the
// haversine term only depends on sin²(Δλ/2), a raw delta of 359.8° yields the
// same value as -0.2°, so points on either side of ±180° still come out close.
func DistanceKm(a, b model.GeoPoint) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	sLat := math.Sin(dLat / 2)
	sLng := math.Sin(dLng / 2)
	h := sLat*sLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sLng*sLng
	// Rounding can push h a hair outside [0,1] near antipodes.
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
