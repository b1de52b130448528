package document

import (
	"fmt"
	"strings"
	"time"
)

// systemReviewer stamps auto-verified uploads
const systemReviewer = "system"

// CheckUpload reports whether a new file may replace the record's current one.
// Profile photos can always be replaced; everything else only from not_uploaded or rejected.
func CheckUpload(r *Record) error {
	if r.Type.AutoVerified() {
		return nil
	}
	switch r.Status {
	case StatusPending:
		return ErrPendingReview
	case StatusVerified:
		return ErrAlreadyVerified
	}
	return nil
}

// CanReupload reports whether the rider may submit a new file
func CanReupload(r *Record) bool {
	return r.Status != StatusVerified
}

// Upload stores a new blob on the record and moves it into review.
// It returns the blob being replaced, if any, so the caller can schedule its deletion.
func Upload(r *Record, blob BlobRef, meta Metadata, now time.Time) (*BlobRef, error) {
	if err := CheckUpload(r); err != nil {
		return nil, err
	}
	if blob.URL == "" || blob.PublicID == "" {
		return nil, ErrMissingBlob
	}

	number := r.Number
	if meta.Number != nil {
		number = strings.TrimSpace(*meta.Number)
	}
	if r.Type.RequiresNumber() && number == "" {
		return nil, fmt.Errorf("%w for %s", ErrNumberRequired, r.Type)
	}
	if meta.ExpiryDate != nil && meta.ExpiryDate.Before(now) {
		return nil, ErrExpired
	}

	previous := r.Blob

	stored := blob
	uploadedAt := now
	r.Blob = &stored
	r.ImageURL = blob.URL
	r.Number = number
	if meta.ExpiryDate != nil {
		expiry := *meta.ExpiryDate
		r.ExpiryDate = &expiry
	}
	r.RejectionReason = ""
	r.UploadedAt = &uploadedAt

	if r.Type.AutoVerified() {
		verifiedAt := now
		r.Status = StatusVerified
		r.IsVerified = true
		r.VerifiedAt = &verifiedAt
		r.VerifiedBy = systemReviewer
	} else {
		r.Status = StatusPending
		r.IsVerified = false
		r.VerifiedAt = nil
		r.VerifiedBy = ""
	}

	return previous, nil
}

// Verify approves a pending record
func Verify(r *Record, actor Actor, now time.Time) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	if r.Status != StatusPending {
		return fmt.Errorf("%w: current status is %s", ErrNotPending, r.Status)
	}

	verifiedAt := now
	r.Status = StatusVerified
	r.IsVerified = true
	r.RejectionReason = ""
	r.VerifiedAt = &verifiedAt
	r.VerifiedBy = actor.ID
	return nil
}

// Reject sends a pending record back to the rider with a reason
func Reject(r *Record, actor Actor, reason string) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrRejectionReasonRequired
	}
	if r.Status != StatusPending {
		return fmt.Errorf("%w: current status is %s", ErrNotPending, r.Status)
	}

	r.Status = StatusRejected
	r.IsVerified = false
	r.RejectionReason = reason
	r.VerifiedAt = nil
	r.VerifiedBy = ""
	return nil
}
