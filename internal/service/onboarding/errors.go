package onboarding

import (
	"context"
	"errors"

	"github.com/gocomet/rider-service/internal/domain/document"
	"github.com/gocomet/rider-service/internal/domain/rider"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
)

// translate maps domain sentinels onto the application error taxonomy.
// The sentinel stays reachable through errors.Is.
func translate(err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	msg := err.Error()

	switch {
	case errors.Is(err, document.ErrUnknownType),
		errors.Is(err, rider.ErrProfileNotFound):
		return apperrors.NotFound(msg, err)

	case errors.Is(err, document.ErrPendingReview),
		errors.Is(err, document.ErrAlreadyVerified):
		return apperrors.DocumentLocked(msg, err)

	case errors.Is(err, document.ErrNotPending),
		errors.Is(err, rider.ErrSuspended),
		errors.Is(err, rider.ErrDocumentsIncomplete):
		return apperrors.InvalidState(msg, err)

	case errors.Is(err, document.ErrRejectionReasonRequired),
		errors.Is(err, document.ErrNumberRequired),
		errors.Is(err, document.ErrExpired),
		errors.Is(err, document.ErrMissingBlob),
		errors.Is(err, rider.ErrInvalidInput),
		errors.Is(err, rider.ErrInvalidSchedule),
		errors.Is(err, rider.ErrInvalidOutcome),
		errors.Is(err, rider.ErrInvalidCoordinates),
		errors.Is(err, rider.ErrSuspensionReasonRequired):
		return apperrors.Validation(msg, err)

	case errors.Is(err, document.ErrAdminRequired),
		errors.Is(err, rider.ErrAdminRequired):
		return apperrors.Forbidden(msg, err)

	case errors.Is(err, rider.ErrVersionConflict):
		return apperrors.Conflict("rider profile is being updated concurrently, retry", err)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Internal("request cancelled", err)
	}
	return apperrors.Internal("failed to process rider profile", err)
}
