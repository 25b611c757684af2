package model

import "math"

// DistanceKm approximates the distance between two coordinates using an
// equirectangular degree-delta model: one degree is taken as 111.32 km.
// Good enough for scoring and carrier range checks at continental scale.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	return math.Sqrt(dLat*dLat+dLon*dLon) * 111.32
}
