package model

import (
	"errors"
	"fmt"
)

// ErrInvalidPoint is returned when a coordinate lies outside the WGS 84 range.
var ErrInvalidPoint = errors.New("invalid geo point")

// GeoPoint is a WGS 84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// Validate checks that the point lies within -90..90 latitude and -180..180 longitude.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lat != p.Lat {
		return fmt.Errorf("%w: latitude %v", ErrInvalidPoint, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 || p.Lng != p.Lng {
		return fmt.Errorf("%w: longitude %v", ErrInvalidPoint, p.Lng)
	}
	return nil
}

// String formats the point with six decimals, e.g. "19.076000, 72.877700".
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}
