package rider

import (
	"context"
	"errors"
)

var (
	ErrProfileNotFound          = errors.New("rider profile not found")
	ErrVersionConflict          = errors.New("rider profile was modified concurrently")
	ErrInvalidInput             = errors.New("invalid rider data")
	ErrInvalidSchedule          = errors.New("invalid work schedule")
	ErrInvalidOutcome           = errors.New("invalid delivery outcome")
	ErrInvalidCoordinates       = errors.New("invalid coordinates")
	ErrSuspended                = errors.New("suspended riders cannot go available")
	ErrSuspensionReasonRequired = errors.New("suspension reason is required")
	ErrDocumentsIncomplete      = errors.New("all required documents must be verified before approval")
	ErrAdminRequired            = errors.New("only admins can change account status")
)

// Repository defines the interface for rider profile data access.
// Update is a compare-and-swap on Version and returns ErrVersionConflict
// when the stored profile moved on since it was read.
type Repository interface {
	// Create inserts p unless a profile for p.UserID exists. It reports whether p was inserted.
	Create(ctx context.Context, p *Profile) (bool, error)
	GetByUserID(ctx context.Context, userID string) (*Profile, error)
	GetByUserIDs(ctx context.Context, userIDs []string) ([]*Profile, error)
	Update(ctx context.Context, p *Profile) error
	// AccountNumber returns the stored bank account number, the only path that reads it.
	AccountNumber(ctx context.Context, userID string) (string, error)
	// ListByServiceArea returns listed profiles naming area among their service areas, case-insensitively
	ListByServiceArea(ctx context.Context, area string) ([]*Profile, error)
	// TopPerformers returns listed profiles with at least minDeliveries, ranked by SortTopPerformers
	TopPerformers(ctx context.Context, minDeliveries, limit int) ([]*Profile, error)
	// ForEach visits every profile in user id order; returning an error stops the walk.
	ForEach(ctx context.Context, fn func(*Profile) error) error
}

// GeoHit is one rider found by a proximity query
type GeoHit struct {
	UserID         string
	DistanceMeters float64
}

// LocationIndex answers proximity queries over rider positions
type LocationIndex interface {
	Upsert(ctx context.Context, userID string, longitude, latitude float64) error
	Remove(ctx context.Context, userID string) error
	// Nearby returns riders within radiusMeters ordered by distance
	Nearby(ctx context.Context, longitude, latitude, radiusMeters float64, limit int) ([]GeoHit, error)
}
