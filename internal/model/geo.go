package model

import (
	"math"

	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distances.
const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between p and q.
func (p Point) DistanceMeters(q Point) float64 {
	a := s2.LatLngFromDegrees(p.Lat, p.Lon)
	b := s2.LatLngFromDegrees(q.Lat, q.Lon)
	return a.Distance(b).Radians() * earthRadiusMeters
}

// Valid reports whether p is a finite WGS84 coordinate.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
