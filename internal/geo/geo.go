// Package geo contains pure geographic computation helpers.
package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle (Haversine) distance in kilometres
// between two points specified in decimal degrees. Symmetric, and zero on
// identical points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
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

// Match pairs a candidate with its distance from the queried origin.
type Match[T any] struct {
	Candidate  T
	DistanceKm float64
}

// FindWithinRadius computes the distance from origin to every candidate and
// returns those within radiusKm, closest first. The sort is stable: ties keep
// candidate insertion order.
func FindWithinRadius[T any](originLat, originLng float64, candidates []T, radiusKm float64, position func(T) (lat, lng float64)) []Match[T] {
	matches := make([]Match[T], 0, len(candidates))
	for _, c := range candidates {
		lat, lng := position(c)
		d := DistanceKm(originLat, originLng, lat, lng)
		if d <= radiusKm {
			matches = append(matches, Match[T]{Candidate: c, DistanceKm: d})
		}
	}
	sortByDistance(matches, func(m Match[T]) float64 { return m.DistanceKm })
	return matches
}

// sortByDistance performs an insertion sort (fine for small N, and stable) on
// any slice where each element exposes a distance via the accessor function.
func sortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
