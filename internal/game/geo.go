package game

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000

// DistanceMeters computes the haversine great-circle distance between two
// points. Always meters; callers format to km where it reads better.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// CompassDirection buckets the bearing from (lat1,lon1) to (lat2,lon2)
// into one of the 8 compass directions.
func CompassDirection(lat1, lon1, lat2, lon2 float64) string {
	dLon := toRadians(lon2 - lon1)
	y := math.Sin(dLon) * math.Cos(toRadians(lat2))
	x := math.Cos(toRadians(lat1))*math.Sin(toRadians(lat2)) -
		math.Sin(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Cos(dLon)

	bearing := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)

	switch {
	case bearing < 22.5 || bearing >= 337.5:
		return "north"
	case bearing < 67.5:
		return "northeast"
	case bearing < 112.5:
		return "east"
	case bearing < 157.5:
		return "southeast"
	case bearing < 202.5:
		return "south"
	case bearing < 247.5:
		return "southwest"
	case bearing < 292.5:
		return "west"
	default:
		return "northwest"
	}
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// FormatDistance renders a distance for clue text: meters under 1km,
// otherwise one-decimal kilometers.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f meters", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// WalkingTimeMinutes estimates travel time at 5 km/h, rounded up.
func WalkingTimeMinutes(meters float64) int {
	minutes := meters / (5000.0 / 60.0)
	return int(math.Ceil(minutes))
}
