package rider

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/rider-service/internal/domain/document"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func testBlob(id string) document.BlobRef {
	return document.BlobRef{URL: "https://cdn.example.com/" + id, PublicID: id, Format: "jpg", ResourceType: "image"}
}

// verifiedProfile returns a profile with every required document verified
func verifiedProfile(t *testing.T, userID string) *Profile {
	t.Helper()
	p := NewProfile(userID, testNow)
	for _, dt := range document.Catalog {
		if !dt.IsRequired() {
			continue
		}
		_, err := p.UploadDocument(dt, testBlob(string(dt)), document.Metadata{Number: strPtr("N-1")}, testNow)
		require.NoError(t, err)
		require.NoError(t, p.VerifyDocument(dt, document.Admin("admin-1"), testNow))
	}
	return p
}

// TestNewProfile_Defaults tests a new profile carries every default sub-object
func TestNewProfile_Defaults(t *testing.T) {
	p := NewProfile("user-1", testNow)

	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, StatusOffline, p.Status)
	assert.False(t, p.IsAvailable)
	assert.True(t, p.IsActive)
	assert.False(t, p.IsVerified)
	assert.Equal(t, 100, p.Stats.CompletionRate)
	assert.Len(t, p.WorkSchedule, 7)
	assert.NotNil(t, p.ServiceAreas)
	for _, dt := range document.Catalog {
		rec := p.Documents.Get(dt)
		require.NotNil(t, rec, dt)
		assert.Equal(t, document.StatusNotUploaded, rec.Status)
		assert.Equal(t, dt, rec.Type)
	}
}

// TestUpdateLocation_Bounds tests coordinate validation
func TestUpdateLocation_Bounds(t *testing.T) {
	p := NewProfile("user-1", testNow)

	err := p.UpdateLocation(200, 10, testNow)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	assert.Nil(t, p.CurrentLocation)
	assert.Nil(t, p.LastActiveAt)

	require.NoError(t, p.UpdateLocation(28.0, -26.2, testNow))
	require.NotNil(t, p.CurrentLocation)
	assert.Equal(t, [2]float64{28.0, -26.2}, p.CurrentLocation.Coordinates)
	assert.Equal(t, "Point", p.CurrentLocation.Type)
	require.NotNil(t, p.LastActiveAt)
	assert.True(t, p.LastActiveAt.Equal(testNow))

	assert.ErrorIs(t, p.UpdateLocation(28.0, -91, testNow), ErrInvalidCoordinates)
}

// TestUpdatePersonalInfo_AddressClears tests null and empty address clear rather than merge
func TestUpdatePersonalInfo_AddressClears(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "Null address", body: `{"address": null}`},
		{name: "Empty address", body: `{"address": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProfile("user-1", testNow)
			p.Address = &Address{Street: "1 Main Rd", City: "Cape Town"}
			p.Gender = "female"

			var u PersonalInfoUpdate
			require.NoError(t, json.Unmarshal([]byte(tt.body), &u))
			require.NoError(t, p.UpdatePersonalInfo(u, testNow))

			assert.Nil(t, p.Address)
			assert.Equal(t, "female", p.Gender, "Absent fields are untouched")
		})
	}
}

// TestUpdatePersonalInfo_Merge tests only provided keys overwrite
func TestUpdatePersonalInfo_Merge(t *testing.T) {
	p := NewProfile("user-1", testNow)
	p.Address = &Address{Street: "1 Main Rd", City: "Cape Town"}
	p.EmergencyContact = &EmergencyContact{Name: "Thandi", Phone: "+27821234567"}

	var u PersonalInfoUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"gender":"male","emergencyContact":{"relationship":"sister"}}`), &u))
	require.NoError(t, p.UpdatePersonalInfo(u, testNow))

	assert.Equal(t, "male", p.Gender)
	require.NotNil(t, p.Address)
	assert.Equal(t, "Cape Town", p.Address.City, "Absent address is kept")
	assert.Equal(t, "Thandi", p.EmergencyContact.Name)
	assert.Equal(t, "sister", p.EmergencyContact.Relationship)

	var replace PersonalInfoUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"address":{"city":"Durban","postalCode":"4001"}}`), &replace))
	require.NoError(t, p.UpdatePersonalInfo(replace, testNow))
	assert.Equal(t, &Address{City: "Durban", PostalCode: "4001"}, p.Address)
}

// TestUpdatePersonalInfo_Invalid tests validation failures leave the profile unchanged
func TestUpdatePersonalInfo_Invalid(t *testing.T) {
	future := testNow.AddDate(1, 0, 0)
	tests := []struct {
		name   string
		update PersonalInfoUpdate
	}{
		{name: "Unknown gender", update: PersonalInfoUpdate{Gender: strPtr("robot")}},
		{name: "Future birth date", update: PersonalInfoUpdate{DateOfBirth: &future}},
		{name: "Bad postal code", update: PersonalInfoUpdate{Address: SetAddress(Address{PostalCode: "12AB"})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProfile("user-1", testNow)
			err := p.UpdatePersonalInfo(tt.update, testNow)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, p.Gender)
			assert.Nil(t, p.Address)
			assert.Nil(t, p.DateOfBirth)
		})
	}
}

// TestUpdateVehicle_CreatesAndMerges tests the vehicle is created then merged
func TestUpdateVehicle_CreatesAndMerges(t *testing.T) {
	p := NewProfile("user-1", testNow)
	motorcycle := VehicleMotorcycle
	year := 2021

	require.NoError(t, p.UpdateVehicle(VehicleUpdate{Type: &motorcycle, Make: strPtr("Honda"), Year: &year}))
	require.NotNil(t, p.Vehicle)

	require.NoError(t, p.UpdateVehicle(VehicleUpdate{LicensePlate: strPtr(" ca 123-456 ")}))
	assert.Equal(t, VehicleMotorcycle, p.Vehicle.Type)
	assert.Equal(t, "Honda", p.Vehicle.Make)
	assert.Equal(t, 2021, p.Vehicle.Year)
	assert.Equal(t, "CA 123-456", p.Vehicle.LicensePlate)

	spaceship := VehicleType("spaceship")
	assert.ErrorIs(t, p.UpdateVehicle(VehicleUpdate{Type: &spaceship}), ErrInvalidInput)
}

// TestSetBankDetails_Validation tests bank detail validation
func TestSetBankDetails_Validation(t *testing.T) {
	valid := BankDetailsUpdate{
		AccountHolderName: "T Nkosi",
		AccountNumber:     "62001234567",
		BankName:          "FNB",
		BranchCode:        "250655",
		AccountType:       AccountCheque,
	}

	p := NewProfile("user-1", testNow)
	require.NoError(t, p.SetBankDetails(valid))
	assert.Equal(t, "62001234567", p.BankDetails.AccountNumber)

	bad := valid
	bad.AccountNumber = "12ab"
	assert.ErrorIs(t, p.SetBankDetails(bad), ErrInvalidInput)

	bad = valid
	bad.AccountType = "crypto"
	assert.ErrorIs(t, p.SetBankDetails(bad), ErrInvalidInput)
	assert.Equal(t, AccountCheque, p.BankDetails.AccountType, "Failed update keeps previous details")
}

// TestUploadDocument_UnknownType tests unknown and legacy types are rejected
func TestUploadDocument_UnknownType(t *testing.T) {
	p := NewProfile("user-1", testNow)

	_, err := p.UploadDocument(document.Type("passport"), testBlob("x"), document.Metadata{}, testNow)
	assert.ErrorIs(t, err, document.ErrUnknownType)

	_, err = p.UploadDocument(document.TypeLegacyNationalID, testBlob("x"), document.Metadata{}, testNow)
	assert.ErrorIs(t, err, document.ErrUnknownType)
}

// TestUploadDocument_VerifiedLocks tests verified documents cannot be replaced
func TestUploadDocument_VerifiedLocks(t *testing.T) {
	p := NewProfile("user-1", testNow)

	_, err := p.UploadDocument(document.TypeProofOfAddress, testBlob("a"), document.Metadata{}, testNow)
	require.NoError(t, err)
	require.NoError(t, p.VerifyDocument(document.TypeProofOfAddress, document.Admin("admin-1"), testNow))

	_, err = p.UploadDocument(document.TypeProofOfAddress, testBlob("b"), document.Metadata{}, testNow)
	assert.ErrorIs(t, err, document.ErrAlreadyVerified)
	assert.Equal(t, "a", p.Documents.ProofOfAddress.Blob.PublicID)
}

// TestDocumentsStatus_Report tests the status report excludes the profile photo
func TestDocumentsStatus_Report(t *testing.T) {
	p := NewProfile("user-1", testNow)
	report := p.DocumentsStatus()

	assert.Len(t, report.Documents, len(document.Catalog)-1)
	assert.NotContains(t, report.Documents, document.TypeProfilePhoto)
	assert.False(t, report.AllVerified)

	view := report.Documents[document.TypeVehiclePhoto]
	assert.False(t, view.Uploaded)
	assert.True(t, view.CanReupload)

	verified := verifiedProfile(t, "user-2")
	assert.True(t, verified.DocumentsStatus().AllVerified, "Work permit is optional")
	assert.False(t, verified.DocumentsStatus().Documents[document.TypeWorkPermit].Uploaded)
}

// TestUpdateAvailability_Suspended tests a suspended rider cannot go available
func TestUpdateAvailability_Suspended(t *testing.T) {
	p := verifiedProfile(t, "user-1")
	require.NoError(t, p.Suspend("fraud investigation", document.Admin("admin-1"), testNow))

	online := StatusOnline
	assert.ErrorIs(t, p.UpdateAvailability(AvailabilityUpdate{IsAvailable: boolPtr(true)}), ErrSuspended)
	assert.ErrorIs(t, p.UpdateAvailability(AvailabilityUpdate{Status: &online}), ErrSuspended)
	assert.NoError(t, p.UpdateAvailability(AvailabilityUpdate{IsAvailable: boolPtr(false)}))
}

// TestUpdateAvailability_ScheduleAndAreas tests schedules and service areas are stored
func TestUpdateAvailability_ScheduleAndAreas(t *testing.T) {
	p := NewProfile("user-1", testNow)
	online := StatusOnline
	schedule := Schedule{NamedLabel("morning"), NamedLabel("evening")}
	areas := []string{" Cape Town ", "cape town", "8001", ""}

	require.NoError(t, p.UpdateAvailability(AvailabilityUpdate{
		IsAvailable:  boolPtr(true),
		Status:       &online,
		WorkSchedule: &schedule,
		ServiceAreas: &areas,
	}))

	assert.True(t, p.IsAvailable)
	assert.Equal(t, StatusOnline, p.Status)
	assert.Len(t, p.WorkSchedule, 2)
	assert.Equal(t, []string{"Cape Town", "8001"}, p.ServiceAreas)

	bad := StatusUnavailable + "x"
	assert.ErrorIs(t, p.UpdateAvailability(AvailabilityUpdate{Status: &bad}), ErrInvalidInput)
}

// TestSuspendAndApprove tests account flag transitions
func TestSuspendAndApprove(t *testing.T) {
	p := NewProfile("user-1", testNow)
	p.IsAvailable = true
	p.Status = StatusOnline

	assert.ErrorIs(t, p.Suspend("late", document.Rider("user-1"), testNow), ErrAdminRequired)
	assert.ErrorIs(t, p.Suspend(" ", document.Admin("admin-1"), testNow), ErrSuspensionReasonRequired)

	require.NoError(t, p.Suspend("late deliveries", document.Admin("admin-1"), testNow))
	assert.True(t, p.IsSuspended)
	assert.Equal(t, StatusOffline, p.Status)
	assert.False(t, p.IsAvailable)
	assert.Equal(t, "admin-1", p.SuspendedBy)

	assert.ErrorIs(t, p.Approve(document.Admin("admin-1"), testNow), ErrDocumentsIncomplete)

	verified := verifiedProfile(t, "user-2")
	require.NoError(t, verified.Suspend("paperwork", document.Admin("admin-1"), testNow))
	require.NoError(t, verified.Approve(document.Admin("admin-2"), testNow))
	assert.True(t, verified.IsVerified)
	assert.True(t, verified.OnboardingCompleted)
	assert.False(t, verified.IsSuspended)
	assert.Empty(t, verified.SuspensionReason)
	assert.Equal(t, "admin-2", verified.ApprovedBy)
}

// TestEligibility tests listing, dispatch and location index filters
func TestEligibility(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(p *Profile)
		listed       bool
		dispatchable bool
		indexed      bool
	}{
		{name: "Online and available", mutate: func(p *Profile) {}, listed: true, dispatchable: true, indexed: true},
		{name: "Busy", mutate: func(p *Profile) { p.Status = StatusBusy }, listed: true},
		{name: "Unavailable flag", mutate: func(p *Profile) { p.IsAvailable = false }, listed: true},
		{name: "Suspended", mutate: func(p *Profile) { p.IsSuspended = true }},
		{name: "Inactive", mutate: func(p *Profile) { p.IsActive = false }},
		{name: "Unverified", mutate: func(p *Profile) { p.IsVerified = false }},
		{name: "No position", mutate: func(p *Profile) { p.CurrentLocation = nil }, listed: true, dispatchable: true},
		{
			name:         "Polar position",
			mutate:       func(p *Profile) { require.NoError(t, p.UpdateLocation(10, 89, testNow)) },
			listed:       true,
			dispatchable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProfile("user-1", testNow)
			p.IsVerified = true
			p.IsAvailable = true
			p.Status = StatusOnline
			require.NoError(t, p.UpdateLocation(28.0473, -26.2041, testNow))
			tt.mutate(p)

			assert.Equal(t, tt.listed, p.Listed())
			assert.Equal(t, tt.dispatchable, p.Dispatchable())
			assert.Equal(t, tt.indexed, p.Indexed())
		})
	}
}

// TestValidateSearchPoint tests query origins stay inside the geo index range
func TestValidateSearchPoint(t *testing.T) {
	tests := []struct {
		name    string
		lon     float64
		lat     float64
		wantErr bool
	}{
		{name: "Johannesburg", lon: 28.0473, lat: -26.2041},
		{name: "Edge of the index", lon: 0, lat: MaxIndexedLatitude},
		{name: "Polar but valid coordinate", lon: 10, lat: 89, wantErr: true},
		{name: "South polar", lon: 10, lat: -86, wantErr: true},
		{name: "Out of range longitude", lon: 181, lat: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSearchPoint(tt.lon, tt.lat)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinates)
				return
			}
			assert.NoError(t, err)
			assert.NoError(t, ValidateCoordinates(tt.lon, tt.lat))
		})
	}
	assert.NoError(t, ValidateCoordinates(10, 89), "Polar positions are still storable")
}

// TestServesArea tests case-insensitive city and zip matching
func TestServesArea(t *testing.T) {
	p := NewProfile("user-1", testNow)
	p.ServiceAreas = []string{"Cape Town", "8001"}

	assert.True(t, p.ServesArea("cape town", ""))
	assert.True(t, p.ServesArea(" CAPE TOWN ", "8001"))
	assert.False(t, p.ServesArea("Cape Town", "2000"))
	assert.False(t, p.ServesArea("Durban", ""))
	assert.False(t, p.ServesArea("", "8001"))
}

// TestSortTopPerformers tests the ranking order
func TestSortTopPerformers(t *testing.T) {
	mk := func(id string, rating *float64, completion, onTime int) *Profile {
		p := NewProfile(id, testNow)
		p.Stats.AverageRating = rating
		p.Stats.CompletionRate = completion
		p.Stats.OnTimeDeliveryRate = onTime
		return p
	}
	ps := []*Profile{
		mk("d", nil, 100, 100),
		mk("c", f64(4.5), 90, 80),
		mk("b", f64(4.5), 90, 95),
		mk("a", f64(4.8), 70, 70),
		mk("e", f64(4.5), 95, 60),
	}

	SortTopPerformers(ps)

	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.UserID)
	}
	assert.Equal(t, []string{"a", "e", "b", "c", "d"}, ids)
}

// TestNormalize_RepairsDefaults tests save-time normalization
func TestNormalize_RepairsDefaults(t *testing.T) {
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{"userId":"user-1","documents":{"vehiclePhoto":{"status":"pending"}},"stats":{"totalDeliveries":4,"completedDeliveries":3}}`), &p))

	p.Normalize(testNow)

	assert.Len(t, p.WorkSchedule, 7)
	assert.Equal(t, StatusOffline, p.Status)
	assert.Equal(t, 75, p.Stats.CompletionRate)
	assert.Equal(t, document.TypeVehiclePhoto, p.Documents.VehiclePhoto.Type)
	assert.Equal(t, document.StatusPending, p.Documents.VehiclePhoto.Status)
	assert.Equal(t, document.StatusNotUploaded, p.Documents.CarrierAgreement.Status)
	assert.True(t, p.UpdatedAt.Equal(testNow))
}
