// README: Distance and radius-filter tests.
package geo

import (
	"math"
	"testing"
)

func TestDistanceKmSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{12.9, 77.6, 13.0, 77.7},
		{0, 0, 1, 0},
		{-33.9, 151.2, 51.5, -0.1},
		{89.9, 10, -89.9, -170},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("DistanceKm(%v) = %f, reversed = %f", p, ab, ba)
		}
	}
}

func TestDistanceKmIdenticalPoints(t *testing.T) {
	if d := DistanceKm(12.9, 77.6, 12.9, 77.6); d != 0 {
		t.Errorf("distance between identical points = %f, want 0", d)
	}
}

func TestDistanceKmKnownValues(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want, tolerance        float64
	}{
		// one degree of latitude is ~111.19 km on a 6371 km sphere
		{"one degree latitude", 0, 0, 1, 0, 111.19, 0.1},
		{"tenth of a degree latitude", 0, 0, 0.1, 0, 11.12, 0.05},
	}
	for _, tc := range cases {
		got := DistanceKm(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
		if math.Abs(got-tc.want) > tc.tolerance {
			t.Errorf("%s: got %f, want %f ± %f", tc.name, got, tc.want, tc.tolerance)
		}
	}
}

type site struct {
	name     string
	lat, lng float64
}

func TestFindWithinRadius(t *testing.T) {
	candidates := []site{
		{"origin", 0, 0},
		{"near", 0.1, 0},
		{"far", 1, 0},
	}
	matches := FindWithinRadius(0, 0, candidates, 50, func(s site) (float64, float64) {
		return s.lat, s.lng
	})
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Candidate.name != "origin" || matches[0].DistanceKm != 0 {
		t.Errorf("first match = %s at %f km, want origin at 0 km", matches[0].Candidate.name, matches[0].DistanceKm)
	}
	if matches[1].Candidate.name != "near" {
		t.Errorf("second match = %s, want near", matches[1].Candidate.name)
	}
	if math.Abs(matches[1].DistanceKm-11.12) > 0.05 {
		t.Errorf("second match distance = %f, want ~11.12", matches[1].DistanceKm)
	}
}

func TestFindWithinRadiusStableOnTies(t *testing.T) {
	candidates := []site{
		{"a", 0.1, 0},
		{"b", -0.1, 0}, // same distance as a
		{"c", 0, 0},
	}
	matches := FindWithinRadius(0, 0, candidates, 50, func(s site) (float64, float64) {
		return s.lat, s.lng
	})
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	order := []string{matches[0].Candidate.name, matches[1].Candidate.name, matches[2].Candidate.name}
	if order[0] != "c" || order[1] != "a" || order[2] != "b" {
		t.Errorf("order = %v, want [c a b]", order)
	}
}

func TestFindWithinRadiusEmpty(t *testing.T) {
	matches := FindWithinRadius(0, 0, nil, 50, func(s site) (float64, float64) {
		return s.lat, s.lng
	})
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}
