package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gocomet/rider-service/internal/domain/document"
	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/pkg/blobstore"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/events"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/monitoring"
	"github.com/gocomet/rider-service/pkg/websocket"
)

// Notifier pushes realtime messages to connected clients
type Notifier interface {
	SendToUser(userID string, message websocket.Message)
	BroadcastToType(userType string, message websocket.Message)
	PublishToWatchers(riderID string, message websocket.Message)
}

// DeliveryGuard remembers applied delivery ids
type DeliveryGuard interface {
	Claim(ctx context.Context, deliveryID string) (bool, error)
	Release(ctx context.Context, deliveryID string) error
}

// Config holds onboarding configuration
type Config struct {
	MaxUpdateAttempts int           // read-modify-write attempts before reporting a conflict
	BlobDeleteTimeout time.Duration // budget for each background blob deletion
	BlobFolder        string        // root folder for rider uploads
}

// Dependencies are the collaborators of the service. Repository and Blobs are required.
type Dependencies struct {
	Repository rider.Repository
	Locations  rider.LocationIndex
	Blobs      blobstore.Store
	Publisher  events.Publisher
	Notifier   Notifier
	Deliveries DeliveryGuard
	Metrics    *monitoring.NewRelicApp
	Logger     *logger.Logger
	Clock      func() time.Time
}

// Service runs every rider profile operation as a load, mutate, compare-and-swap cycle
type Service struct {
	repo      rider.Repository
	locations rider.LocationIndex
	blobs     blobstore.Store
	publisher events.Publisher
	notifier  Notifier
	guard     DeliveryGuard
	metrics   *monitoring.NewRelicApp
	logger    *logger.Logger
	now       func() time.Time
	config    Config

	background sync.WaitGroup
}

// NewService creates a new onboarding service
func NewService(deps Dependencies, config Config) *Service {
	if config.MaxUpdateAttempts <= 0 {
		config.MaxUpdateAttempts = 3
	}
	if config.BlobDeleteTimeout <= 0 {
		config.BlobDeleteTimeout = 30 * time.Second
	}
	if config.BlobFolder == "" {
		config.BlobFolder = "riders"
	}

	s := &Service{
		repo:      deps.Repository,
		locations: deps.Locations,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		guard:     deps.Deliveries,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Clock,
		config:    config,
	}
	if s.publisher == nil {
		s.publisher = events.Noop{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = monitoring.Disabled()
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Wait blocks until background blob deletions have finished
func (s *Service) Wait() {
	s.background.Wait()
}

// GetOrCreate returns the rider's profile, creating it with defaults on first access.
// Concurrent first calls converge on the one stored profile.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*rider.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.Validation("user id is required", nil)
	}

	p, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, rider.ErrProfileNotFound) {
		return nil, translate(err)
	}

	now := s.now()
	fresh := rider.NewProfile(userID, now)
	fresh.Normalize(now)
	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		return nil, translate(err)
	}
	if created {
		s.logger.Info("Rider profile created", logger.UserID(userID))
	}

	p, err = s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// GetProfile returns the redacted view of the rider's profile
func (s *Service) GetProfile(ctx context.Context, userID string) (rider.View, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return rider.View{}, err
	}
	return rider.RedactedView(p), nil
}

// FindProfile returns the redacted view of an existing profile. Unlike
// GetProfile it never creates one, so unknown riders are NotFound.
func (s *Service) FindProfile(ctx context.Context, userID string) (rider.View, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return rider.View{}, err
	}
	return rider.RedactedView(p), nil
}

// FindDocumentsStatus reports on an existing profile's documents without creating one
func (s *Service) FindDocumentsStatus(ctx context.Context, userID string) (rider.StatusReport, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return rider.StatusReport{}, err
	}
	return p.DocumentsStatus(), nil
}

func (s *Service) load(ctx context.Context, userID string) (*rider.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.Validation("user id is required", nil)
	}
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// UpdatePersonalInfo merges personal details
func (s *Service) UpdatePersonalInfo(ctx context.Context, userID string, u rider.PersonalInfoUpdate) (rider.View, error) {
	p, err := s.mutate(ctx, "personal_info", userID, true, func(p *rider.Profile, now time.Time) error {
		return p.UpdatePersonalInfo(u, now)
	})
	if err != nil {
		return rider.View{}, err
	}
	return rider.RedactedView(p), nil
}

// UpdateVehicle merges vehicle details
func (s *Service) UpdateVehicle(ctx context.Context, userID string, u rider.VehicleUpdate) (rider.View, error) {
	p, err := s.mutate(ctx, "vehicle", userID, true, func(p *rider.Profile, now time.Time) error {
		return p.UpdateVehicle(u)
	})
	if err != nil {
		return rider.View{}, err
	}
	return rider.RedactedView(p), nil
}

// UpdateBankDetails replaces the payout details
func (s *Service) UpdateBankDetails(ctx context.Context, userID string, u rider.BankDetailsUpdate) (rider.View, error) {
	p, err := s.mutate(ctx, "bank_details", userID, true, func(p *rider.Profile, now time.Time) error {
		return p.SetBankDetails(u)
	})
	if err != nil {
		return rider.View{}, err
	}
	s.logger.Info("Bank details updated", logger.UserID(userID))
	return rider.RedactedView(p), nil
}

// AccountNumberLastFour performs the explicit account number read and truncates it
func (s *Service) AccountNumberLastFour(ctx context.Context, actor document.Actor, userID string) (string, error) {
	if !actor.IsAdmin() && actor.ID != userID {
		return "", apperrors.Forbidden("cannot read another rider's bank details", nil)
	}
	number, err := s.repo.AccountNumber(ctx, userID)
	if err != nil {
		return "", translate(err)
	}
	if number == "" {
		return "", apperrors.NotFound("no bank account on file", nil)
	}
	return rider.LastFour(number), nil
}

// DocumentsStatus reports the review state of every document
func (s *Service) DocumentsStatus(ctx context.Context, userID string) (rider.StatusReport, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return rider.StatusReport{}, err
	}
	return p.DocumentsStatus(), nil
}

// UpdateAvailability sets availability flags, work schedule and service areas
func (s *Service) UpdateAvailability(ctx context.Context, userID string, u rider.AvailabilityUpdate) (rider.View, error) {
	p, err := s.mutate(ctx, "availability", userID, true, func(p *rider.Profile, now time.Time) error {
		return p.UpdateAvailability(u)
	})
	if err != nil {
		return rider.View{}, err
	}
	return rider.RedactedView(p), nil
}

// UpdateLocation records the rider's position; dispatchable riders are re-indexed
func (s *Service) UpdateLocation(ctx context.Context, userID string, longitude, latitude float64) (rider.View, error) {
	if err := rider.ValidateCoordinates(longitude, latitude); err != nil {
		return rider.View{}, translate(err)
	}
	p, err := s.mutate(ctx, "location", userID, true, func(p *rider.Profile, now time.Time) error {
		return p.UpdateLocation(longitude, latitude, now)
	})
	if err != nil {
		return rider.View{}, err
	}
	s.metrics.RecordLocationUpdate()
	return rider.RedactedView(p), nil
}

// Suspend takes a rider off the platform
func (s *Service) Suspend(ctx context.Context, actor document.Actor, userID, reason string) (rider.View, error) {
	if !actor.IsAdmin() {
		return rider.View{}, translate(rider.ErrAdminRequired)
	}
	p, err := s.mutate(ctx, "suspend", userID, false, func(p *rider.Profile, now time.Time) error {
		return p.Suspend(reason, actor, now)
	})
	if err != nil {
		return rider.View{}, err
	}

	s.logger.Info("Rider suspended",
		logger.UserID(userID),
		logger.String("admin_id", actor.ID),
		logger.String("reason", p.SuspensionReason),
	)
	s.notifier.SendToUser(userID, websocket.Message{
		Type: "account_suspended",
		Data: map[string]interface{}{"reason": p.SuspensionReason},
	})
	s.publish(ctx, events.TopicRiderSuspended, userID, map[string]interface{}{
		"reason":      p.SuspensionReason,
		"suspendedBy": actor.ID,
	})
	return rider.RedactedView(p), nil
}

// Approve completes onboarding once every required document is verified
func (s *Service) Approve(ctx context.Context, actor document.Actor, userID string) (rider.View, error) {
	if !actor.IsAdmin() {
		return rider.View{}, translate(rider.ErrAdminRequired)
	}
	p, err := s.mutate(ctx, "approve", userID, false, func(p *rider.Profile, now time.Time) error {
		return p.Approve(actor, now)
	})
	if err != nil {
		return rider.View{}, err
	}

	s.logger.Info("Rider approved",
		logger.UserID(userID),
		logger.String("admin_id", actor.ID),
	)
	s.notifier.SendToUser(userID, websocket.Message{Type: "account_approved"})
	s.publish(ctx, events.TopicRiderApproved, userID, map[string]interface{}{
		"approvedBy": actor.ID,
	})
	return rider.RedactedView(p), nil
}

// mutate loads the profile, applies fn and writes it back, retrying on version conflicts.
// fn may run more than once and must only touch the profile.
func (s *Service) mutate(ctx context.Context, op, userID string, create bool, fn func(p *rider.Profile, now time.Time) error) (*rider.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.Validation("user id is required", nil)
	}

	for attempt := 1; attempt <= s.config.MaxUpdateAttempts; attempt++ {
		var (
			p   *rider.Profile
			err error
		)
		if create {
			p, err = s.GetOrCreate(ctx, userID)
		} else {
			p, err = s.repo.GetByUserID(ctx, userID)
			err = translate(err)
		}
		if err != nil {
			return nil, err
		}

		now := s.now()
		if err := fn(p, now); err != nil {
			return nil, translate(err)
		}
		p.Normalize(now)

		err = s.repo.Update(ctx, p)
		if err == nil {
			s.syncIndex(ctx, p)
			return p, nil
		}
		if !errors.Is(err, rider.ErrVersionConflict) {
			return nil, translate(err)
		}

		s.metrics.RecordVersionConflict(op)
		s.logger.Debug("Rider profile version conflict, retrying",
			logger.UserID(userID),
			logger.String("operation", op),
			logger.Int("attempt", attempt),
		)
	}
	return nil, translate(rider.ErrVersionConflict)
}

// syncIndex keeps the location index to the riders Indexed admits. Failures are
// logged; RebuildIndex repairs the set.
func (s *Service) syncIndex(ctx context.Context, p *rider.Profile) {
	if s.locations == nil {
		return
	}
	var err error
	if p.Indexed() {
		loc := p.CurrentLocation
		err = s.locations.Upsert(ctx, p.UserID, loc.Longitude(), loc.Latitude())
	} else {
		err = s.locations.Remove(ctx, p.UserID)
	}
	if err != nil {
		s.logger.Warn("Failed to sync rider location index",
			logger.UserID(p.UserID),
			logger.Bool("indexed", p.Indexed()),
			logger.Err(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, topic, userID string, data interface{}) {
	err := s.publisher.Publish(ctx, topic, events.Event{
		Type:       topic,
		UserID:     userID,
		OccurredAt: s.now(),
		Data:       data,
	})
	if err != nil {
		s.logger.Warn("Failed to publish event",
			logger.String("topic", topic),
			logger.UserID(userID),
			logger.Err(err),
		)
	}
}

type nopNotifier struct{}

func (nopNotifier) SendToUser(string, websocket.Message)        {}
func (nopNotifier) BroadcastToType(string, websocket.Message)   {}
func (nopNotifier) PublishToWatchers(string, websocket.Message) {}
