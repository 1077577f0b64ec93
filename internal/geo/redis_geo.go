package geo

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/example/skate-spots/internal/models"
)

// RedisGeo implements Geo using Redis GEO commands.
type RedisGeo struct {
	client   *redis.Client
	key      string
	radiusKm float64
	logger   *slog.Logger
}

func NewRedisGeo(client *redis.Client, key string, logger *slog.Logger) *RedisGeo {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisGeo{client: client, key: key, radiusKm: 5000, logger: logger}
}

func (r *RedisGeo) Upsert(e models.SpotEvent) {
	ctx := context.Background()
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: e.Loc.Lng, Latitude: e.Loc.Lat, Name: e.IndexKey()}).Err(); err != nil {
		r.logger.Error("geo upsert failed", slog.String("key", e.IndexKey()), slog.Any("err", err))
	}
}

func (r *RedisGeo) Remove(e models.SpotEvent) {
	if err := r.client.ZRem(context.Background(), r.key, e.IndexKey()).Err(); err != nil {
		r.logger.Error("geo remove failed", slog.String("key", e.IndexKey()), slog.Any("err", err))
	}
}

// Nearby searches a continent-sized radius; every indexed spot is inside the
// map bounds so the radius only acts as an upper limit.
func (r *RedisGeo) Nearby(lat, lng float64, limit int) []Hit {
	res, err := r.client.GeoSearchLocation(context.Background(), r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     r.radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		r.logger.Error("geo search failed", slog.Any("err", err))
		return nil
	}
	out := make([]Hit, 0, len(res))
	for _, g := range res {
		out = append(out, Hit{
			Key:      g.Name,
			Loc:      models.Coord{Lat: g.Latitude, Lng: g.Longitude},
			Distance: g.Dist * 1000,
		})
	}
	return out
}
