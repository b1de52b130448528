package onboarding

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gocomet/rider-service/internal/domain/rider"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/events"
	"github.com/gocomet/rider-service/pkg/logger"
)

// DeliveryResult is the stats block after an outcome was processed
type DeliveryResult struct {
	Stats   rider.Stats `json:"stats"`
	Applied bool        `json:"applied"`
}

// RecordDelivery folds one delivery outcome into the rider's stats, creating the
// profile on first use. An outcome carrying a deliveryId already applied is
// acknowledged without changing anything.
func (s *Service) RecordDelivery(ctx context.Context, userID string, outcome rider.Outcome) (DeliveryResult, error) {
	if err := outcome.Validate(); err != nil {
		return DeliveryResult{}, translate(err)
	}
	outcome.DeliveryID = strings.TrimSpace(outcome.DeliveryID)

	claimed := false
	if s.guard != nil && outcome.DeliveryID != "" {
		ok, err := s.guard.Claim(ctx, outcome.DeliveryID)
		if err != nil {
			return DeliveryResult{}, apperrors.Internal("failed to check delivery idempotency", err)
		}
		if !ok {
			p, err := s.GetOrCreate(ctx, userID)
			if err != nil {
				return DeliveryResult{}, err
			}
			s.logger.Info("Duplicate delivery outcome ignored",
				logger.UserID(userID),
				logger.String("delivery_id", outcome.DeliveryID),
			)
			return DeliveryResult{Stats: p.Stats, Applied: false}, nil
		}
		claimed = true
	}

	p, err := s.mutate(ctx, "record_delivery", userID, true, func(p *rider.Profile, now time.Time) error {
		return p.RecordDelivery(outcome)
	})
	if err != nil {
		if claimed {
			if relErr := s.guard.Release(context.WithoutCancel(ctx), outcome.DeliveryID); relErr != nil {
				s.logger.Warn("Failed to release delivery claim",
					logger.String("delivery_id", outcome.DeliveryID),
					logger.Err(relErr),
				)
			}
		}
		return DeliveryResult{}, err
	}

	s.metrics.RecordDeliveryApplied(outcome.Completed)
	s.publish(ctx, events.TopicStatsUpdated, userID, map[string]interface{}{
		"deliveryId":     outcome.DeliveryID,
		"completed":      outcome.Completed,
		"completionRate": p.Stats.CompletionRate,
		"averageRating":  p.Stats.AverageRating,
	})
	return DeliveryResult{Stats: p.Stats, Applied: true}, nil
}

// deliveryMessage is the payload of the delivery.completed topic
type deliveryMessage struct {
	UserID string `json:"userId"`
	rider.Outcome
}

// HandleDeliveryEvent applies a delivery outcome consumed from Kafka
func (s *Service) HandleDeliveryEvent(ctx context.Context, payload []byte) error {
	var msg deliveryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return apperrors.Validation("malformed delivery event", err)
	}
	if strings.TrimSpace(msg.UserID) == "" {
		return apperrors.Validation("delivery event has no userId", nil)
	}
	_, err := s.RecordDelivery(ctx, msg.UserID, msg.Outcome)
	return err
}
