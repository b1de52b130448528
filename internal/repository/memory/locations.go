package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/gocomet/rider-service/internal/domain/rider"
)

const earthRadiusMeters = 6371000

type point struct {
	lon, lat float64
}

// LocationIndex is an in-process rider.LocationIndex with brute-force haversine search
type LocationIndex struct {
	mu     sync.RWMutex
	points map[string]point
}

// NewLocationIndex creates an empty index
func NewLocationIndex() *LocationIndex {
	return &LocationIndex{points: make(map[string]point)}
}

// Upsert records a rider position. Like Redis GEO it refuses polar latitudes.
func (l *LocationIndex) Upsert(ctx context.Context, userID string, longitude, latitude float64) error {
	if err := rider.ValidateSearchPoint(longitude, latitude); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points[userID] = point{lon: longitude, lat: latitude}
	return nil
}

// Remove drops a rider from the index
func (l *LocationIndex) Remove(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.points, userID)
	return nil
}

// Nearby returns riders within radiusMeters, nearest first
func (l *LocationIndex) Nearby(ctx context.Context, longitude, latitude, radiusMeters float64, limit int) ([]rider.GeoHit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var hits []rider.GeoHit
	for id, pt := range l.points {
		d := DistanceMeters(latitude, longitude, pt.lat, pt.lon)
		if d <= radiusMeters {
			hits = append(hits, rider.GeoHit{UserID: id, DistanceMeters: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].UserID < hits[j].UserID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DistanceMeters calculates haversine distance between two points
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
