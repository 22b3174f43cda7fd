// README: Pure geographic helpers: great-circle distance and ETA.
package location

import (
	"math"

	"myride/internal/types"
)

const earthRadiusKm = 6371.0

// DefaultSpeedKmh is the average city speed used for ETA estimates.
const DefaultSpeedKmh = 30.0

// DistanceKm returns the great-circle distance between a and b. It is 0 when
// either point is not yet resolved.
func DistanceKm(a, b *types.Point) float64 {
	if a == nil || b == nil {
		return 0
	}
	return haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// EtaMinutes converts a distance into minutes at speedKmh.
func EtaMinutes(km, speedKmh float64) float64 {
	if km <= 0 {
		return 0
	}
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return km / speedKmh * 60
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
