package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocomet/rider-service/internal/domain/rider"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/monitoring"
)

// Service answers which riders can take work where
type Service struct {
	repo      rider.Repository
	locations rider.LocationIndex
	metrics   *monitoring.NewRelicApp
	logger    *logger.Logger
	config    Config
}

// Config holds availability query configuration
type Config struct {
	DefaultRadiusMeters       float64 // radius when the caller gives none
	MaxRadiusMeters           float64 // larger radii are rejected
	CandidateBatch            int     // index hits fetched per round; doubled until the radius is exhausted
	TopPerformerMinDeliveries int
	DefaultTopLimit           int
	MaxTopLimit               int
}

// Candidate is an eligible rider and their distance from the query point
type Candidate struct {
	Rider          rider.View `json:"rider"`
	DistanceMeters float64    `json:"distanceMeters"`
}

// NewService creates a new availability service
func NewService(repo rider.Repository, locations rider.LocationIndex, metrics *monitoring.NewRelicApp, log *logger.Logger, config Config) *Service {
	if config.DefaultRadiusMeters <= 0 {
		config.DefaultRadiusMeters = 10000
	}
	if config.MaxRadiusMeters <= 0 {
		config.MaxRadiusMeters = 50000
	}
	if config.CandidateBatch <= 0 {
		config.CandidateBatch = 200
	}
	if config.TopPerformerMinDeliveries <= 0 {
		config.TopPerformerMinDeliveries = 10
	}
	if config.DefaultTopLimit <= 0 {
		config.DefaultTopLimit = 10
	}
	if config.MaxTopLimit <= 0 {
		config.MaxTopLimit = 100
	}
	if metrics == nil {
		metrics = monitoring.Disabled()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		repo:      repo,
		locations: locations,
		metrics:   metrics,
		logger:    log,
		config:    config,
	}
}

// FindAvailableRiders returns dispatchable riders within maxDistanceMeters of the point,
// nearest first. Equidistant riders are ordered by most recent activity, then user id.
// A zero maxDistanceMeters uses the default radius.
func (s *Service) FindAvailableRiders(ctx context.Context, latitude, longitude, maxDistanceMeters float64) ([]Candidate, error) {
	startTime := time.Now()

	if err := rider.ValidateSearchPoint(longitude, latitude); err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	if maxDistanceMeters < 0 {
		return nil, apperrors.Validation("maxDistance must not be negative", rider.ErrInvalidInput)
	}
	if maxDistanceMeters > s.config.MaxRadiusMeters {
		return nil, apperrors.Validation(
			fmt.Sprintf("maxDistance must be at most %.0f meters", s.config.MaxRadiusMeters),
			rider.ErrInvalidInput,
		)
	}
	radius := maxDistanceMeters
	if radius == 0 {
		radius = s.config.DefaultRadiusMeters
	}

	hits, err := s.nearby(ctx, longitude, latitude, radius)
	if err != nil {
		return nil, apperrors.Internal("failed to search nearby riders", err)
	}
	if len(hits) == 0 {
		s.record(startTime, 0)
		return []Candidate{}, nil
	}

	distances := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		distances[hit.UserID] = hit.DistanceMeters
		ids = append(ids, hit.UserID)
	}

	profiles, err := s.repo.GetByUserIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load nearby riders", err)
	}

	eligible := make([]*rider.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !p.Dispatchable() {
			continue
		}
		eligible = append(eligible, p)
	}
	sortByProximity(eligible, distances)

	candidates := make([]Candidate, 0, len(eligible))
	for _, p := range eligible {
		candidates = append(candidates, Candidate{
			Rider:          rider.RedactedView(p),
			DistanceMeters: distances[p.UserID],
		})
	}

	s.record(startTime, len(candidates))
	s.logger.Debug("Available riders found",
		logger.Float64("latitude", latitude),
		logger.Float64("longitude", longitude),
		logger.Float64("radius_meters", radius),
		logger.Int("index_hits", len(hits)),
		logger.Int("eligible", len(candidates)),
	)
	return candidates, nil
}

// FindByServiceArea returns listed riders working city and, when given, zipCode
func (s *Service) FindByServiceArea(ctx context.Context, city, zipCode string) ([]rider.View, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, apperrors.Validation("city is required", rider.ErrInvalidInput)
	}

	profiles, err := s.repo.ListByServiceArea(ctx, city)
	if err != nil {
		return nil, apperrors.Internal("failed to list riders by service area", err)
	}

	matched := make([]*rider.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Listed() && p.ServesArea(city, zipCode) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UserID < matched[j].UserID
	})
	return rider.RedactedViews(matched), nil
}

// GetTopPerformers returns the best rated riders with enough deliveries to rank.
// A zero limit uses the default; larger limits are clamped.
func (s *Service) GetTopPerformers(ctx context.Context, limit int) ([]rider.View, error) {
	if limit < 0 {
		return nil, apperrors.Validation("limit must not be negative", rider.ErrInvalidInput)
	}
	if limit == 0 {
		limit = s.config.DefaultTopLimit
	}
	if limit > s.config.MaxTopLimit {
		limit = s.config.MaxTopLimit
	}

	profiles, err := s.repo.TopPerformers(ctx, s.config.TopPerformerMinDeliveries, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to rank riders", err)
	}
	return rider.RedactedViews(profiles), nil
}

// RebuildIndex re-adds every dispatchable rider with a searchable position to the
// location index and drops everyone else. It returns the number of riders indexed.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	indexed := 0
	err := s.repo.ForEach(ctx, func(p *rider.Profile) error {
		if !p.Indexed() {
			return s.locations.Remove(ctx, p.UserID)
		}
		loc := p.CurrentLocation
		if err := s.locations.Upsert(ctx, p.UserID, loc.Longitude(), loc.Latitude()); err != nil {
			return err
		}
		indexed++
		return nil
	})
	if err != nil {
		return indexed, apperrors.Internal("failed to rebuild location index", err)
	}

	s.logger.Info("Rider location index rebuilt", logger.Int("indexed", indexed))
	return indexed, nil
}

// nearby returns every indexed rider within radius. A full batch means the
// radius may hold more, so the batch doubles until the index runs short.
func (s *Service) nearby(ctx context.Context, longitude, latitude, radius float64) ([]rider.GeoHit, error) {
	batch := s.config.CandidateBatch
	for {
		hits, err := s.locations.Nearby(ctx, longitude, latitude, radius, batch)
		if err != nil {
			return nil, err
		}
		if len(hits) < batch {
			return hits, nil
		}
		s.logger.Debug("Widening availability candidate batch",
			logger.Int("batch", batch),
			logger.Float64("radius_meters", radius),
		)
		batch *= 2
	}
}

func (s *Service) record(startTime time.Time, results int) {
	s.metrics.RecordAvailabilityQuery(float64(time.Since(startTime).Microseconds())/1000, results)
}

// sortByProximity orders by distance ascending, lastActiveAt descending, then user id
func sortByProximity(profiles []*rider.Profile, distances map[string]float64) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i], profiles[j]
		da, db := distances[a.UserID], distances[b.UserID]
		if da != db {
			return da < db
		}
		ta, tb := lastActive(a), lastActive(b)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.UserID < b.UserID
	})
}

func lastActive(p *rider.Profile) time.Time {
	if p.LastActiveAt == nil {
		return time.Time{}
	}
	return *p.LastActiveAt
}
