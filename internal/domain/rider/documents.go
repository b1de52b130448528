package rider

import (
	"github.com/gocomet/rider-service/internal/domain/document"
)

// Documents holds one record per catalog type.
// The two legacy fields are only populated by records written before the
// catalog rename and are emptied by the legacy document migration.
type Documents struct {
	ProfilePhoto          document.Record `json:"profilePhoto"`
	VehiclePhoto          document.Record `json:"vehiclePhoto"`
	IDDocument            document.Record `json:"idDocument"`
	WorkPermit            document.Record `json:"workPermit"`
	DriversLicence        document.Record `json:"driversLicence"`
	ProofOfBankingDetails document.Record `json:"proofOfBankingDetails"`
	ProofOfAddress        document.Record `json:"proofOfAddress"`
	VehicleLicense        document.Record `json:"vehicleLicense"`
	VehicleAssessment     document.Record `json:"vehicleAssessment"`
	CarrierAgreement      document.Record `json:"carrierAgreement"`

	LegacyDrivingLicense *document.Record `json:"drivingLicense,omitempty"`
	LegacyNationalID     *document.Record `json:"nationalId,omitempty"`
}

// NewDocuments returns a full catalog of not_uploaded records
func NewDocuments() Documents {
	var d Documents
	for _, t := range document.Catalog {
		*d.Get(t) = document.NewRecord(t)
	}
	return d
}

// Get returns the record for a catalog type, or nil for anything else
func (d *Documents) Get(t document.Type) *document.Record {
	switch t {
	case document.TypeProfilePhoto:
		return &d.ProfilePhoto
	case document.TypeVehiclePhoto:
		return &d.VehiclePhoto
	case document.TypeIDDocument:
		return &d.IDDocument
	case document.TypeWorkPermit:
		return &d.WorkPermit
	case document.TypeDriversLicence:
		return &d.DriversLicence
	case document.TypeProofOfBankingDetails:
		return &d.ProofOfBankingDetails
	case document.TypeProofOfAddress:
		return &d.ProofOfAddress
	case document.TypeVehicleLicense:
		return &d.VehicleLicense
	case document.TypeVehicleAssessment:
		return &d.VehicleAssessment
	case document.TypeCarrierAgreement:
		return &d.CarrierAgreement
	}
	return nil
}

// AllRequiredVerified reports whether every required type is verified
func (d *Documents) AllRequiredVerified() bool {
	for _, t := range document.Catalog {
		if t.IsRequired() && d.Get(t).Status != document.StatusVerified {
			return false
		}
	}
	return true
}

// HasLegacy reports whether any pre-rename record is still present
func (d *Documents) HasLegacy() bool {
	return d.LegacyDrivingLicense != nil || d.LegacyNationalID != nil
}

// fillDefaults repairs records decoded from storage with a missing type or status
func (d *Documents) fillDefaults() {
	for _, t := range document.Catalog {
		rec := d.Get(t)
		if rec.Type == "" {
			rec.Type = t
		}
		if rec.Status == "" {
			rec.Status = document.StatusNotUploaded
		}
	}
}

// MigrateLegacy moves pre-rename records onto their successor types and empties
// the legacy fields. A legacy record only replaces a successor that was never
// uploaded; otherwise it is dropped. It returns the successor types that received
// data and the stored files of dropped records, which nothing references any more.
func (d *Documents) MigrateLegacy() (moved []document.Type, orphaned []document.BlobRef) {
	legacyFields := []struct {
		field **document.Record
		from  document.Type
	}{
		{field: &d.LegacyDrivingLicense, from: document.TypeLegacyDrivingLicense},
		{field: &d.LegacyNationalID, from: document.TypeLegacyNationalID},
	}
	for _, lf := range legacyFields {
		rec := *lf.field
		if rec == nil {
			continue
		}
		*lf.field = nil

		to, _ := lf.from.Successor()
		target := d.Get(to)
		if target.Uploaded() || !legacyUploaded(rec) {
			if rec.Blob != nil && rec.Blob.PublicID != "" {
				orphaned = append(orphaned, *rec.Blob)
			}
			continue
		}

		migrated := *rec
		migrated.Type = to
		if migrated.Status == "" {
			migrated.Status = document.StatusPending
		}
		migrated.IsVerified = migrated.Status == document.StatusVerified
		if migrated.Status != document.StatusRejected {
			migrated.RejectionReason = ""
		}
		*target = migrated
		moved = append(moved, to)
	}
	return moved, orphaned
}

// legacyUploaded reports whether an old record carries a file worth keeping
func legacyUploaded(rec *document.Record) bool {
	if rec.Status == "" {
		return rec.ImageURL != "" || rec.Blob != nil
	}
	return rec.Status != document.StatusNotUploaded
}
