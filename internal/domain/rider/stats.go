package rider

import (
	"fmt"
	"math"
)

const (
	minRating = 1.0
	maxRating = 5.0

	MaxOutcomeAmount       = 100000.0 // earnings or tip on one delivery
	MaxDeliveryTimeMinutes = 24 * 60.0
)

// Stats are running delivery statistics, folded one outcome at a time
type Stats struct {
	TotalDeliveries     int      `json:"totalDeliveries"`
	CompletedDeliveries int      `json:"completedDeliveries"`
	CancelledDeliveries int      `json:"cancelledDeliveries"`
	TotalEarnings       float64  `json:"totalEarnings"`
	TotalTips           float64  `json:"totalTips"`
	AverageRating       *float64 `json:"averageRating"`
	TotalRatings        int      `json:"totalRatings"`
	CompletionRate      int      `json:"completionRate"`
	AverageDeliveryTime *float64 `json:"averageDeliveryTime"`
	OnTimeDeliveryRate  int      `json:"onTimeDeliveryRate"`
}

// NewStats returns the stats block of a rider with no deliveries
func NewStats() Stats {
	return Stats{CompletionRate: 100, OnTimeDeliveryRate: 100}
}

// Outcome is one finished delivery as reported by the order system
type Outcome struct {
	DeliveryID          string   `json:"deliveryId,omitempty"`
	Completed           bool     `json:"completed"`
	Earnings            *float64 `json:"earnings,omitempty"`
	Tip                 *float64 `json:"tip,omitempty"`
	Rating              *float64 `json:"rating,omitempty"`
	DeliveryTimeMinutes *float64 `json:"deliveryTimeMinutes,omitempty"`
}

// Validate rejects negative, non-finite and implausibly large values
func (o Outcome) Validate() error {
	if err := checkRange("earnings", o.Earnings, MaxOutcomeAmount); err != nil {
		return err
	}
	if err := checkRange("tip", o.Tip, MaxOutcomeAmount); err != nil {
		return err
	}
	if err := checkRange("delivery time", o.DeliveryTimeMinutes, MaxDeliveryTimeMinutes); err != nil {
		return err
	}
	if o.Rating != nil && (math.IsNaN(*o.Rating) || math.IsInf(*o.Rating, 0)) {
		return fmt.Errorf("%w: rating must be a finite number", ErrInvalidOutcome)
	}
	return nil
}

// checkRange accepts nil or a value in [0, limit]; NaN fails both comparisons
func checkRange(name string, v *float64, limit float64) error {
	if v != nil && !(*v >= 0 && *v <= limit) {
		return fmt.Errorf("%w: %s must be between 0 and %v", ErrInvalidOutcome, name, limit)
	}
	return nil
}

// Apply folds one outcome into the stats. The outcome is validated first so a
// rejected outcome leaves the stats untouched.
func (s *Stats) Apply(o Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}

	s.TotalDeliveries++
	if o.Completed {
		s.CompletedDeliveries++
	} else {
		s.CancelledDeliveries++
	}

	if o.Earnings != nil {
		s.TotalEarnings += *o.Earnings
	}
	if o.Tip != nil {
		s.TotalTips += *o.Tip
	}

	if o.Rating != nil {
		rating := clampRating(*o.Rating)
		avg := rating
		if s.AverageRating != nil && s.TotalRatings > 0 {
			avg = (*s.AverageRating*float64(s.TotalRatings) + rating) / float64(s.TotalRatings+1)
		}
		avg = clampRating(avg)
		s.AverageRating = &avg
		s.TotalRatings++
	}

	// Denominator is the post-increment completed count; the first timed delivery is assigned directly.
	if o.Completed && o.DeliveryTimeMinutes != nil && s.CompletedDeliveries > 0 {
		avg := *o.DeliveryTimeMinutes
		if s.AverageDeliveryTime != nil && s.CompletedDeliveries > 1 {
			n := float64(s.CompletedDeliveries)
			avg = (*s.AverageDeliveryTime*(n-1) + *o.DeliveryTimeMinutes) / n
		}
		s.AverageDeliveryTime = &avg
	}

	s.recomputeCompletionRate()
	return nil
}

// recomputeCompletionRate keeps completionRate in step with the counters
func (s *Stats) recomputeCompletionRate() {
	if s.TotalDeliveries > 0 {
		s.CompletionRate = int(math.Round(float64(s.CompletedDeliveries) / float64(s.TotalDeliveries) * 100))
	}
}

func clampRating(r float64) float64 {
	return math.Max(minRating, math.Min(maxRating, r))
}
