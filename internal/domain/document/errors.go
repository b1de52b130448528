package document

import "errors"

var (
	ErrUnknownType             = errors.New("unknown document type")
	ErrPendingReview           = errors.New("previous upload is pending review")
	ErrAlreadyVerified         = errors.New("document already verified, contact admin")
	ErrNotPending              = errors.New("document is not pending review")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrNumberRequired          = errors.New("document number is required")
	ErrExpired                 = errors.New("document expiry date is in the past")
	ErrMissingBlob             = errors.New("uploaded file reference is missing")
	ErrAdminRequired           = errors.New("only admins can review documents")
)

