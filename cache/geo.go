package cache

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	geoKey      = "points:geo"
	earthRadius = 6371.0 // km
)

// Hit is one point found by a radius search
type Hit struct {
	PointID    int64
	DistanceKm float64
}

// GeoIndex answers "which points lie within radiusKm of (lat, lon)", nearest
// first.
type GeoIndex interface {
	Add(ctx context.Context, pointID int64, lat, lon float64) error
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]Hit, error)
	Size(ctx context.Context) (int64, error)
}

// RedisGeoIndex keeps point coordinates in a Redis GEO set.
type RedisGeoIndex struct {
	client *redis.Client
}

func NewRedisGeoIndex(client *redis.Client) *RedisGeoIndex {
	return &RedisGeoIndex{client: client}
}

func (g *RedisGeoIndex) Add(ctx context.Context, pointID int64, lat, lon float64) error {
	err := g.client.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      strconv.FormatInt(pointID, 10),
		Longitude: lon,
		Latitude:  lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd point %d: %w", pointID, err)
	}
	return nil
}

func (g *RedisGeoIndex) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]Hit, error) {
	results, err := g.client.GeoRadius(ctx, geoKey, lon, lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.Name, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{PointID: id, DistanceKm: r.Dist})
	}
	return hits, nil
}

func (g *RedisGeoIndex) Size(ctx context.Context) (int64, error) {
	return g.client.ZCard(ctx, geoKey).Result()
}

// Reset drops every indexed point.
func (g *RedisGeoIndex) Reset(ctx context.Context) error {
	return g.client.Del(ctx, geoKey).Err()
}

// HaversineKm is the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
