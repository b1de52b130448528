package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocomet/rider-service/internal/domain/document"
	"github.com/gocomet/rider-service/internal/domain/rider"
)

// UpdateLocationRequest represents a rider location ping
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// RejectDocumentRequest carries the reason shown to the rider
type RejectDocumentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SuspendRequest carries the suspension reason
type SuspendRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DeliveryOutcomeRequest represents one finished or cancelled delivery
type DeliveryOutcomeRequest struct {
	DeliveryID          string   `json:"deliveryId"`
	Completed           *bool    `json:"completed" binding:"required"`
	Earnings            *float64 `json:"earnings" binding:"omitempty,gte=0"`
	Tip                 *float64 `json:"tip" binding:"omitempty,gte=0"`
	Rating              *float64 `json:"rating" binding:"omitempty,gte=0"`
	DeliveryTimeMinutes *float64 `json:"deliveryTimeMinutes" binding:"omitempty,gte=0"`
}

// Outcome converts the request to the stats input
func (r DeliveryOutcomeRequest) Outcome() rider.Outcome {
	return rider.Outcome{
		DeliveryID:          r.DeliveryID,
		Completed:           *r.Completed,
		Earnings:            r.Earnings,
		Tip:                 r.Tip,
		Rating:              r.Rating,
		DeliveryTimeMinutes: r.DeliveryTimeMinutes,
	}
}

// UploadDocumentForm holds the multipart fields sent next to the file
type UploadDocumentForm struct {
	Number     *string `form:"number"`
	ExpiryDate string  `form:"expiryDate"`
}

// Metadata parses the optional form fields. expiryDate accepts RFC 3339 or YYYY-MM-DD.
func (f UploadDocumentForm) Metadata() (document.Metadata, error) {
	meta := document.Metadata{Number: f.Number}
	raw := strings.TrimSpace(f.ExpiryDate)
	if raw == "" {
		return meta, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			meta.ExpiryDate = &t
			return meta, nil
		}
	}
	return meta, fmt.Errorf("expiryDate %q is not a date", raw)
}

// AvailableRidersQuery represents GET /v1/admin/riders/available
type AvailableRidersQuery struct {
	Latitude    *float64 `form:"lat" binding:"required"`
	Longitude   *float64 `form:"lon" binding:"required"`
	MaxDistance float64  `form:"maxDistance"`
}

// ServiceAreaQuery represents GET /v1/admin/riders/area
type ServiceAreaQuery struct {
	City    string `form:"city" binding:"required"`
	ZipCode string `form:"zipCode"`
}

// TopPerformersQuery represents GET /v1/admin/riders/top
type TopPerformersQuery struct {
	Limit int `form:"limit"`
}

// LastFourResponse is the truncated account number
type LastFourResponse struct {
	LastFour string `json:"lastFour"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse is the success envelope
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
