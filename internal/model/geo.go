package model

import "math"

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance in meters between two
// coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Interpolate returns the point at fraction t along the straight segment
// from (lat1,lng1) to (lat2,lng2). t is clamped to [0,1].
func Interpolate(lat1, lng1, lat2, lng2, t float64) (float64, float64) {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return lat1 + (lat2-lat1)*t, lng1 + (lng2-lng1)*t
}
