package document

import (
	"time"
)

// Type identifies a verifiable artifact in the rider document catalog
type Type string

const (
	TypeProfilePhoto          Type = "profilePhoto"
	TypeVehiclePhoto          Type = "vehiclePhoto"
	TypeIDDocument            Type = "idDocument"
	TypeWorkPermit            Type = "workPermit"
	TypeDriversLicence        Type = "driversLicence"
	TypeProofOfBankingDetails Type = "proofOfBankingDetails"
	TypeProofOfAddress        Type = "proofOfAddress"
	TypeVehicleLicense        Type = "vehicleLicense"
	TypeVehicleAssessment     Type = "vehicleAssessment"
	TypeCarrierAgreement      Type = "carrierAgreement"

	// Legacy names still present in records written before the catalog rename.
	TypeLegacyDrivingLicense Type = "drivingLicense"
	TypeLegacyNationalID     Type = "nationalId"
)

// Catalog lists every current document type in display order
var Catalog = []Type{
	TypeProfilePhoto,
	TypeVehiclePhoto,
	TypeIDDocument,
	TypeWorkPermit,
	TypeDriversLicence,
	TypeProofOfBankingDetails,
	TypeProofOfAddress,
	TypeVehicleLicense,
	TypeVehicleAssessment,
	TypeCarrierAgreement,
}

// IsValid reports whether t is a current catalog type
func (t Type) IsValid() bool {
	switch t {
	case TypeProfilePhoto, TypeVehiclePhoto, TypeIDDocument, TypeWorkPermit,
		TypeDriversLicence, TypeProofOfBankingDetails, TypeProofOfAddress,
		TypeVehicleLicense, TypeVehicleAssessment, TypeCarrierAgreement:
		return true
	}
	return false
}

// Successor returns the current type a legacy type was renamed to
func (t Type) Successor() (Type, bool) {
	switch t {
	case TypeLegacyDrivingLicense:
		return TypeDriversLicence, true
	case TypeLegacyNationalID:
		return TypeIDDocument, true
	}
	return "", false
}

// IsRequired reports whether t must be verified before a rider can be approved.
// Work permits only apply to non-citizens, which the caller decides.
func (t Type) IsRequired() bool {
	return t.IsValid() && t != TypeProfilePhoto && t != TypeWorkPermit
}

// RequiresNumber reports whether uploads of t must carry a document number
func (t Type) RequiresNumber() bool {
	switch t {
	case TypeDriversLicence, TypeIDDocument, TypeWorkPermit:
		return true
	}
	return false
}

// AutoVerified reports whether uploads of t skip admin review
func (t Type) AutoVerified() bool {
	return t == TypeProfilePhoto
}

// ParseType converts a string to a catalog type
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", ErrUnknownType
	}
	return t, nil
}

// Status is a document's position in the review lifecycle
type Status string

const (
	StatusNotUploaded Status = "not_uploaded"
	StatusPending     Status = "pending"
	StatusVerified    Status = "verified"
	StatusRejected    Status = "rejected"
)

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusNotUploaded, StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// BlobRef points at an uploaded file in the blob store
type BlobRef struct {
	URL          string `json:"url"`
	PublicID     string `json:"publicId"`
	Format       string `json:"format,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
}

// Metadata carries the optional fields a rider may submit with an upload
type Metadata struct {
	Number     *string
	ExpiryDate *time.Time
}

// Record is one verifiable artifact and its lifecycle state
type Record struct {
	Type            Type       `json:"documentType"`
	Number          string     `json:"number,omitempty"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	Blob            *BlobRef   `json:"blobRef,omitempty"`
	Status          Status     `json:"status"`
	IsVerified      bool       `json:"isVerified"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	UploadedAt      *time.Time `json:"uploadedAt,omitempty"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy      string     `json:"verifiedBy,omitempty"`
}

// NewRecord returns an empty record of type t
func NewRecord(t Type) Record {
	return Record{Type: t, Status: StatusNotUploaded}
}

// Uploaded reports whether a file has ever been stored for the record
func (r *Record) Uploaded() bool {
	return r.Status != StatusNotUploaded
}

// Consistent checks the stored invariants between status, isVerified and rejectionReason
func (r *Record) Consistent() bool {
	if r.IsVerified != (r.Status == StatusVerified) {
		return false
	}
	if r.RejectionReason != "" && r.Status != StatusRejected {
		return false
	}
	return r.Status.IsValid()
}

// Role is the kind of principal causing a transition
type Role string

const (
	RoleRider Role = "rider"
	RoleAdmin Role = "admin"
)

// Actor is the principal causing a transition
type Actor struct {
	ID   string
	Role Role
}

// Admin builds an admin actor
func Admin(id string) Actor {
	return Actor{ID: id, Role: RoleAdmin}
}

// Rider builds a rider actor
func Rider(id string) Actor {
	return Actor{ID: id, Role: RoleRider}
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
