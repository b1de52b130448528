package redisgeo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/pkg/cache"
)

const defaultClaimTTL = 7 * 24 * time.Hour

var (
	keys         = cache.NewKeys("riders")
	locationsKey = keys.Key("locations")
)

// LocationIndex keeps rider positions in a Redis GEO set
type LocationIndex struct {
	redis *redis.Client
}

// NewLocationIndex creates a GEO-backed rider.LocationIndex
func NewLocationIndex(client *redis.Client) *LocationIndex {
	return &LocationIndex{redis: client}
}

// Upsert records a rider position. GEOADD refuses latitudes past MaxIndexedLatitude.
func (l *LocationIndex) Upsert(ctx context.Context, userID string, longitude, latitude float64) error {
	if err := rider.ValidateSearchPoint(longitude, latitude); err != nil {
		return err
	}
	err := l.redis.GeoAdd(ctx, locationsKey, &redis.GeoLocation{
		Name:      userID,
		Longitude: longitude,
		Latitude:  latitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index rider location: %w", err)
	}
	return nil
}

// Remove drops a rider from the GEO set
func (l *LocationIndex) Remove(ctx context.Context, userID string) error {
	if err := l.redis.ZRem(ctx, locationsKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to remove rider location: %w", err)
	}
	return nil
}

// Nearby runs GEOSEARCH ordered by distance ascending
func (l *LocationIndex) Nearby(ctx context.Context, longitude, latitude, radiusMeters float64, limit int) ([]rider.GeoHit, error) {
	results, err := l.redis.GeoSearchLocation(ctx, locationsKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  longitude,
			Latitude:   latitude,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby riders: %w", err)
	}

	hits := make([]rider.GeoHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, rider.GeoHit{UserID: res.Name, DistanceMeters: res.Dist})
	}
	return hits, nil
}

// DeliveryGuard makes delivery outcomes idempotent with SET NX per delivery id
type DeliveryGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewDeliveryGuard creates a Redis-backed guard. Claims expire after ttl.
func NewDeliveryGuard(client *redis.Client, ttl time.Duration) *DeliveryGuard {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &DeliveryGuard{redis: client, ttl: ttl}
}

// Claim reports whether deliveryID has not been applied before
func (g *DeliveryGuard) Claim(ctx context.Context, deliveryID string) (bool, error) {
	ok, err := cache.Claim(ctx, g.redis, keys.Key("delivery", deliveryID), g.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	return ok, nil
}

// Release removes the claim so a failed apply can be retried
func (g *DeliveryGuard) Release(ctx context.Context, deliveryID string) error {
	if err := cache.Release(ctx, g.redis, keys.Key("delivery", deliveryID)); err != nil {
		return fmt.Errorf("failed to release delivery: %w", err)
	}
	return nil
}
