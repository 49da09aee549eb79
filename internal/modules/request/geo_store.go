// README: Advisory Redis GEO index over pending breakdown requests.
package request

import (
	"context"

	"github.com/redis/go-redis/v9"

	"roadaid/internal/types"
)

const pendingGeoKey = "requests:pending:geo"

// GeoStore keeps pending request positions in a Redis GEO set so nearby
// lookups can pre-filter candidates instead of scanning every pending row.
// The set is advisory: stale members are filtered out by the SQL status
// re-check in ListPendingByIDs.
type GeoStore struct {
	redis *redis.Client
}

func NewGeoStore(redis *redis.Client) *GeoStore {
	return &GeoStore{redis: redis}
}

func (s *GeoStore) Add(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, pendingGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *GeoStore) Remove(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, pendingGeoKey, string(id)).Err()
}

// Count returns the set membership size so the service can cross-check it
// against the SQL pending count before trusting the index.
func (s *GeoStore) Count(ctx context.Context) (int64, error) {
	return s.redis.ZCard(ctx, pendingGeoKey).Result()
}

// Rebuild replaces the whole set with the given pending positions.
func (s *GeoStore) Rebuild(ctx context.Context, points map[types.ID]types.Point) error {
	locations := make([]*redis.GeoLocation, 0, len(points))
	for id, p := range points {
		locations = append(locations, &redis.GeoLocation{
			Name:      string(id),
			Longitude: p.Lng,
			Latitude:  p.Lat,
		})
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pendingGeoKey)
		if len(locations) > 0 {
			pipe.GeoAdd(ctx, pendingGeoKey, locations...)
		}
		return nil
	})
	return err
}

func (s *GeoStore) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, pendingGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
