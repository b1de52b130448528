package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func blob(id string) BlobRef {
	return BlobRef{URL: "https://cdn.example.com/" + id, PublicID: id, Format: "jpg", ResourceType: "image"}
}

func strPtr(s string) *string { return &s }

// TestUpload_FromNotUploaded tests the first upload moves a document into review
func TestUpload_FromNotUploaded(t *testing.T) {
	rec := NewRecord(TypeVehiclePhoto)

	prev, err := Upload(&rec, blob("a"), Metadata{}, testNow)
	require.NoError(t, err)

	assert.Nil(t, prev)
	assert.Equal(t, StatusPending, rec.Status)
	assert.False(t, rec.IsVerified)
	assert.Equal(t, "https://cdn.example.com/a", rec.ImageURL)
	assert.Equal(t, "a", rec.Blob.PublicID)
	require.NotNil(t, rec.UploadedAt)
	assert.True(t, rec.UploadedAt.Equal(testNow))
	assert.True(t, rec.Consistent())
}

// TestUpload_LockedStates tests re-upload is blocked while pending or verified
func TestUpload_LockedStates(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		wantErr error
	}{
		{name: "Pending review", status: StatusPending, wantErr: ErrPendingReview},
		{name: "Already verified", status: StatusVerified, wantErr: ErrAlreadyVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(TypeVehicleLicense)
			rec.Status = tt.status
			rec.IsVerified = tt.status == StatusVerified
			rec.Blob = &BlobRef{URL: "https://cdn.example.com/old", PublicID: "old"}

			prev, err := Upload(&rec, blob("new"), Metadata{}, testNow)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, prev)
			assert.Equal(t, "old", rec.Blob.PublicID, "Locked record must not change")
		})
	}
}

// TestUpload_AfterRejectClearsReason tests re-upload after rejection resets the review
func TestUpload_AfterRejectClearsReason(t *testing.T) {
	rec := NewRecord(TypeDriversLicence)
	_, err := Upload(&rec, blob("first"), Metadata{Number: strPtr("DL-1")}, testNow)
	require.NoError(t, err)
	require.NoError(t, Reject(&rec, Admin("admin-1"), "blurry photo"))

	assert.Equal(t, StatusRejected, rec.Status)
	assert.False(t, rec.IsVerified)
	assert.Equal(t, "blurry photo", rec.RejectionReason)
	assert.True(t, CanReupload(&rec))

	prev, err := Upload(&rec, blob("second"), Metadata{}, testNow.Add(time.Hour))
	require.NoError(t, err)

	require.NotNil(t, prev)
	assert.Equal(t, "first", prev.PublicID, "Replaced blob should be returned for deletion")
	assert.Equal(t, StatusPending, rec.Status)
	assert.Empty(t, rec.RejectionReason)
	assert.Equal(t, "DL-1", rec.Number, "Number from the earlier upload is kept")
	assert.True(t, rec.Consistent())
}

// TestUpload_ProfilePhotoAlwaysAllowed tests profile photos bypass the lock and auto-verify
func TestUpload_ProfilePhotoAlwaysAllowed(t *testing.T) {
	for _, status := range []Status{StatusNotUploaded, StatusPending, StatusVerified, StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			rec := NewRecord(TypeProfilePhoto)
			rec.Status = status
			rec.IsVerified = status == StatusVerified
			if status == StatusRejected {
				rec.RejectionReason = "face not visible"
			}

			_, err := Upload(&rec, blob("selfie"), Metadata{}, testNow)
			require.NoError(t, err)

			assert.Equal(t, StatusVerified, rec.Status)
			assert.True(t, rec.IsVerified)
			assert.Empty(t, rec.RejectionReason)
			assert.Equal(t, "system", rec.VerifiedBy)
			assert.True(t, rec.Consistent())
		})
	}
}

// TestUpload_MetadataRules tests number and expiry validation on upload
func TestUpload_MetadataRules(t *testing.T) {
	past := testNow.AddDate(0, -1, 0)
	future := testNow.AddDate(1, 0, 0)

	tests := []struct {
		name    string
		docType Type
		meta    Metadata
		blob    BlobRef
		wantErr error
	}{
		{name: "Licence without number", docType: TypeDriversLicence, meta: Metadata{}, blob: blob("x"), wantErr: ErrNumberRequired},
		{name: "Blank number", docType: TypeIDDocument, meta: Metadata{Number: strPtr("   ")}, blob: blob("x"), wantErr: ErrNumberRequired},
		{name: "Expired document", docType: TypeVehicleLicense, meta: Metadata{ExpiryDate: &past}, blob: blob("x"), wantErr: ErrExpired},
		{name: "Missing blob", docType: TypeVehiclePhoto, meta: Metadata{}, blob: BlobRef{}, wantErr: ErrMissingBlob},
		{name: "Valid licence", docType: TypeDriversLicence, meta: Metadata{Number: strPtr(" DL-99 "), ExpiryDate: &future}, blob: blob("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(tt.docType)
			_, err := Upload(&rec, tt.blob, tt.meta, testNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, StatusNotUploaded, rec.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "DL-99", rec.Number)
			require.NotNil(t, rec.ExpiryDate)
			assert.True(t, rec.ExpiryDate.Equal(future))
		})
	}
}

// TestVerify_Transitions tests verify is only allowed from pending and only by admins
func TestVerify_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		actor   Actor
		wantErr error
	}{
		{name: "Pending by admin", status: StatusPending, actor: Admin("admin-1")},
		{name: "Pending by rider", status: StatusPending, actor: Rider("rider-1"), wantErr: ErrAdminRequired},
		{name: "Not uploaded", status: StatusNotUploaded, actor: Admin("admin-1"), wantErr: ErrNotPending},
		{name: "Rejected", status: StatusRejected, actor: Admin("admin-1"), wantErr: ErrNotPending},
		{name: "Verified", status: StatusVerified, actor: Admin("admin-1"), wantErr: ErrNotPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(TypeProofOfAddress)
			rec.Status = tt.status

			err := Verify(&rec, tt.actor, testNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.status, rec.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusVerified, rec.Status)
			assert.True(t, rec.IsVerified)
			assert.Equal(t, "admin-1", rec.VerifiedBy)
			require.NotNil(t, rec.VerifiedAt)
			assert.False(t, CanReupload(&rec))
		})
	}
}

// TestReject_RequiresReason tests reject validates the reason before the state
func TestReject_RequiresReason(t *testing.T) {
	rec := NewRecord(TypeCarrierAgreement)
	rec.Status = StatusPending

	err := Reject(&rec, Admin("admin-1"), "  ")
	assert.ErrorIs(t, err, ErrRejectionReasonRequired)
	assert.Equal(t, StatusPending, rec.Status)

	rec.Status = StatusNotUploaded
	err = Reject(&rec, Admin("admin-1"), "missing signature")
	assert.ErrorIs(t, err, ErrNotPending)
}

// TestParseType_Catalog tests catalog parsing and legacy handling
func TestParseType_Catalog(t *testing.T) {
	for _, dt := range Catalog {
		parsed, err := ParseType(string(dt))
		require.NoError(t, err)
		assert.Equal(t, dt, parsed)
	}

	_, err := ParseType("drivingLicense")
	assert.ErrorIs(t, err, ErrUnknownType, "Legacy names are migrated, not accepted")

	successor, ok := TypeLegacyNationalID.Successor()
	assert.True(t, ok)
	assert.Equal(t, TypeIDDocument, successor)

	assert.False(t, TypeWorkPermit.IsRequired())
	assert.False(t, TypeProfilePhoto.IsRequired())
	assert.True(t, TypeDriversLicence.IsRequired())
}
