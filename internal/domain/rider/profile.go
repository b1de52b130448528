package rider

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/rider-service/internal/domain/document"
)

// Status represents rider availability status
type Status string

const (
	StatusOffline     Status = "offline"
	StatusOnline      Status = "online"
	StatusBusy        Status = "busy"
	StatusUnavailable Status = "unavailable"
)

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusOffline, StatusOnline, StatusBusy, StatusUnavailable:
		return true
	}
	return false
}

// VehicleType represents the kind of vehicle a rider delivers with
type VehicleType string

const (
	VehicleBicycle    VehicleType = "bicycle"
	VehicleScooter    VehicleType = "scooter"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleCar        VehicleType = "car"
	VehicleVan        VehicleType = "van"
)

// AccountType is a South African bank account type
type AccountType string

const (
	AccountCheque       AccountType = "cheque"
	AccountSavings      AccountType = "savings"
	AccountTransmission AccountType = "transmission"
)

const maxServiceAreas = 20

// Address is a rider's residential address
type Address struct {
	Street     string `json:"street,omitempty" validate:"max=200"`
	Suburb     string `json:"suburb,omitempty" validate:"max=100"`
	City       string `json:"city,omitempty" validate:"max=100"`
	Province   string `json:"province,omitempty" validate:"max=100"`
	PostalCode string `json:"postalCode,omitempty" validate:"omitempty,numeric,len=4"`
	Country    string `json:"country,omitempty" validate:"max=100"`
}

// IsZero reports whether every field is empty
func (a Address) IsZero() bool {
	return a == Address{}
}

// Vehicle describes the rider's vehicle
type Vehicle struct {
	Type         VehicleType `json:"type,omitempty"`
	Make         string      `json:"make,omitempty"`
	Model        string      `json:"model,omitempty"`
	Year         int         `json:"year,omitempty"`
	Color        string      `json:"color,omitempty"`
	LicensePlate string      `json:"licensePlate,omitempty"`
}

// BankDetails holds payout details. AccountNumber never leaves the service;
// see RedactedView and Repository.AccountNumber. Repositories blank AccountNumber
// on read, so HasAccountNumber is what survives a round trip.
type BankDetails struct {
	AccountHolderName string      `json:"accountHolderName"`
	AccountNumber     string      `json:"accountNumber,omitempty"`
	HasAccountNumber  bool        `json:"hasAccountNumber,omitempty"`
	BankName          string      `json:"bankName"`
	BranchCode        string      `json:"branchCode,omitempty"`
	AccountType       AccountType `json:"accountType"`
}

// EmergencyContact is who to call if something happens on a delivery
type EmergencyContact struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// Location is a GeoJSON point; Coordinates are [longitude, latitude]
type Location struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// Longitude returns the first coordinate
func (l Location) Longitude() float64 { return l.Coordinates[0] }

// Latitude returns the second coordinate
func (l Location) Latitude() float64 { return l.Coordinates[1] }

// NotificationPreferences toggles notification channels
type NotificationPreferences struct {
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

// Preferences are rider-controlled delivery settings
type Preferences struct {
	MaxDeliveriesPerDay int                     `json:"maxDeliveriesPerDay"`
	AcceptsCash         bool                    `json:"acceptsCash"`
	AutoAcceptOrders    bool                    `json:"autoAcceptOrders"`
	Notifications       NotificationPreferences `json:"notifications"`
}

// DefaultPreferences are applied to new profiles
func DefaultPreferences() Preferences {
	return Preferences{
		MaxDeliveriesPerDay: 20,
		AcceptsCash:         true,
		AutoAcceptOrders:    false,
		Notifications:       NotificationPreferences{Push: true, SMS: true, Email: true},
	}
}

// Profile is the rider aggregate root, one per user
type Profile struct {
	ID      uuid.UUID `json:"id"`
	UserID  string    `json:"userId"`
	Version int64     `json:"-"`

	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	Address     *Address   `json:"address,omitempty"`

	Vehicle          *Vehicle          `json:"vehicle,omitempty"`
	Documents        Documents         `json:"documents"`
	BankDetails      *BankDetails      `json:"bankDetails,omitempty"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`

	WorkSchedule    Schedule  `json:"workSchedule"`
	ServiceAreas    []string  `json:"serviceAreas"`
	CurrentLocation *Location `json:"currentLocation,omitempty"`
	Status          Status    `json:"status"`
	IsAvailable     bool      `json:"isAvailable"`

	Stats       Stats       `json:"stats"`
	Preferences Preferences `json:"preferences"`

	IsVerified          bool       `json:"isVerified"`
	IsActive            bool       `json:"isActive"`
	IsSuspended         bool       `json:"isSuspended"`
	SuspensionReason    string     `json:"suspensionReason,omitempty"`
	SuspendedAt         *time.Time `json:"suspendedAt,omitempty"`
	SuspendedBy         string     `json:"suspendedBy,omitempty"`
	OnboardingCompleted bool       `json:"onboardingCompleted"`
	ApprovedAt          *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy          string     `json:"approvedBy,omitempty"`
	LastActiveAt        *time.Time `json:"lastActiveAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewProfile builds a profile with every sub-object defaulted
func NewProfile(userID string, now time.Time) *Profile {
	return &Profile{
		ID:           uuid.New(),
		UserID:       userID,
		Documents:    NewDocuments(),
		WorkSchedule: DefaultSchedule(),
		ServiceAreas: []string{},
		Status:       StatusOffline,
		Stats:        NewStats(),
		Preferences:  DefaultPreferences(),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Normalize restores the invariants that hold at save time
func (p *Profile) Normalize(now time.Time) {
	if len(p.WorkSchedule) == 0 {
		p.WorkSchedule = DefaultSchedule()
	}
	if p.ServiceAreas == nil {
		p.ServiceAreas = []string{}
	}
	if !p.Status.IsValid() {
		p.Status = StatusOffline
	}
	p.Documents.fillDefaults()
	p.Stats.recomputeCompletionRate()
	p.UpdatedAt = now
}

// Document returns the record for a catalog type
func (p *Profile) Document(t document.Type) (*document.Record, error) {
	if rec := p.Documents.Get(t); rec != nil {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %s", document.ErrUnknownType, t)
}

// PersonalInfoUpdate is a partial update; nil fields are left alone
type PersonalInfoUpdate struct {
	DateOfBirth      *time.Time              `json:"dateOfBirth"`
	Gender           *string                 `json:"gender" validate:"omitempty,oneof=male female other prefer_not_to_say"`
	Address          AddressPatch            `json:"address"`
	EmergencyContact *EmergencyContactUpdate `json:"emergencyContact"`
}

// EmergencyContactUpdate merges field by field into the emergency contact
type EmergencyContactUpdate struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	Phone        *string `json:"phone" validate:"omitempty,e164"`
	Relationship *string `json:"relationship" validate:"omitempty,max=50"`
}

// UpdatePersonalInfo merges personal fields. A present-but-empty address clears it.
func (p *Profile) UpdatePersonalInfo(u PersonalInfoUpdate, now time.Time) error {
	if err := validateInput(u); err != nil {
		return err
	}
	if u.Address.Value != nil {
		if err := validateInput(*u.Address.Value); err != nil {
			return err
		}
	}
	if u.DateOfBirth != nil {
		if u.DateOfBirth.After(now) {
			return fmt.Errorf("%w: date of birth is in the future", ErrInvalidInput)
		}
		dob := *u.DateOfBirth
		p.DateOfBirth = &dob
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.Address.Present {
		if u.Address.Value == nil {
			p.Address = nil
		} else {
			addr := *u.Address.Value
			p.Address = &addr
		}
	}
	if c := u.EmergencyContact; c != nil {
		if p.EmergencyContact == nil {
			p.EmergencyContact = &EmergencyContact{}
		}
		mergeString(&p.EmergencyContact.Name, c.Name)
		mergeString(&p.EmergencyContact.Phone, c.Phone)
		mergeString(&p.EmergencyContact.Relationship, c.Relationship)
	}
	return nil
}

// VehicleUpdate merges into the vehicle sub-object
type VehicleUpdate struct {
	Type         *VehicleType `json:"type" validate:"omitempty,oneof=bicycle scooter motorcycle car van"`
	Make         *string      `json:"make" validate:"omitempty,max=50"`
	Model        *string      `json:"model" validate:"omitempty,max=50"`
	Year         *int         `json:"year" validate:"omitempty,min=1980,max=2100"`
	Color        *string      `json:"color" validate:"omitempty,max=30"`
	LicensePlate *string      `json:"licensePlate" validate:"omitempty,max=16"`
}

// UpdateVehicle merges the update, creating the vehicle if absent
func (p *Profile) UpdateVehicle(u VehicleUpdate) error {
	if err := validateInput(u); err != nil {
		return err
	}
	if p.Vehicle == nil {
		p.Vehicle = &Vehicle{}
	}
	if u.Type != nil {
		p.Vehicle.Type = *u.Type
	}
	mergeString(&p.Vehicle.Make, u.Make)
	mergeString(&p.Vehicle.Model, u.Model)
	if u.Year != nil {
		p.Vehicle.Year = *u.Year
	}
	mergeString(&p.Vehicle.Color, u.Color)
	if u.LicensePlate != nil {
		p.Vehicle.LicensePlate = strings.ToUpper(strings.TrimSpace(*u.LicensePlate))
	}
	return nil
}

// BankDetailsUpdate replaces the bank details as a whole
type BankDetailsUpdate struct {
	AccountHolderName string      `json:"accountHolderName" validate:"required,max=100"`
	AccountNumber     string      `json:"accountNumber" validate:"required,numeric,min=6,max=16"`
	BankName          string      `json:"bankName" validate:"required,max=100"`
	BranchCode        string      `json:"branchCode" validate:"omitempty,numeric,len=6"`
	AccountType       AccountType `json:"accountType" validate:"required,oneof=cheque savings transmission"`
}

// SetBankDetails validates and stores bank details
func (p *Profile) SetBankDetails(u BankDetailsUpdate) error {
	if err := validateInput(u); err != nil {
		return err
	}
	p.BankDetails = &BankDetails{
		AccountHolderName: strings.TrimSpace(u.AccountHolderName),
		AccountNumber:     u.AccountNumber,
		HasAccountNumber:  u.AccountNumber != "",
		BankName:          strings.TrimSpace(u.BankName),
		BranchCode:        u.BranchCode,
		AccountType:       u.AccountType,
	}
	return nil
}

// UploadDocument replaces a document's file. It returns the blob being replaced.
func (p *Profile) UploadDocument(t document.Type, blob document.BlobRef, meta document.Metadata, now time.Time) (*document.BlobRef, error) {
	rec, err := p.Document(t)
	if err != nil {
		return nil, err
	}
	return document.Upload(rec, blob, meta, now)
}

// VerifyDocument approves a pending document
func (p *Profile) VerifyDocument(t document.Type, actor document.Actor, now time.Time) error {
	rec, err := p.Document(t)
	if err != nil {
		return err
	}
	return document.Verify(rec, actor, now)
}

// RejectDocument rejects a pending document with a reason
func (p *Profile) RejectDocument(t document.Type, actor document.Actor, reason string) error {
	rec, err := p.Document(t)
	if err != nil {
		return err
	}
	return document.Reject(rec, actor, reason)
}

// DocumentStatusView is the rider-facing summary of one document
type DocumentStatusView struct {
	Uploaded        bool            `json:"uploaded"`
	Status          document.Status `json:"status"`
	CanReupload     bool            `json:"canReupload"`
	IsVerified      bool            `json:"isVerified"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	UploadedAt      *time.Time      `json:"uploadedAt,omitempty"`
}

// StatusReport summarises every reviewable document
type StatusReport struct {
	Documents   map[document.Type]DocumentStatusView `json:"documents"`
	AllVerified bool                                 `json:"allVerified"`
}

// DocumentsStatus reports on every catalog type except the profile photo
func (p *Profile) DocumentsStatus() StatusReport {
	report := StatusReport{
		Documents:   make(map[document.Type]DocumentStatusView, len(document.Catalog)-1),
		AllVerified: p.Documents.AllRequiredVerified(),
	}
	for _, t := range document.Catalog {
		if t == document.TypeProfilePhoto {
			continue
		}
		rec := p.Documents.Get(t)
		report.Documents[t] = DocumentStatusView{
			Uploaded:        rec.Uploaded(),
			Status:          rec.Status,
			CanReupload:     document.CanReupload(rec),
			IsVerified:      rec.IsVerified,
			ImageURL:        rec.ImageURL,
			RejectionReason: rec.RejectionReason,
			UploadedAt:      rec.UploadedAt,
		}
	}
	return report
}

// AvailabilityUpdate sets availability flags, schedule and service areas; nil fields are left alone
type AvailabilityUpdate struct {
	IsAvailable  *bool     `json:"isAvailable"`
	Status       *Status   `json:"status"`
	WorkSchedule *Schedule `json:"workSchedule"`
	ServiceAreas *[]string `json:"serviceAreas"`
}

// UpdateAvailability applies an availability update
func (p *Profile) UpdateAvailability(u AvailabilityUpdate) error {
	if u.Status != nil && !u.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, *u.Status)
	}
	if p.IsSuspended {
		goingAvailable := u.IsAvailable != nil && *u.IsAvailable
		goingOnline := u.Status != nil && (*u.Status == StatusOnline || *u.Status == StatusBusy)
		if goingAvailable || goingOnline {
			return ErrSuspended
		}
	}
	if u.WorkSchedule != nil {
		if err := u.WorkSchedule.Validate(); err != nil {
			return err
		}
	}
	var areas []string
	if u.ServiceAreas != nil {
		var err error
		if areas, err = cleanServiceAreas(*u.ServiceAreas); err != nil {
			return err
		}
	}

	if u.IsAvailable != nil {
		p.IsAvailable = *u.IsAvailable
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.WorkSchedule != nil {
		p.WorkSchedule = append(Schedule(nil), (*u.WorkSchedule)...)
	}
	if u.ServiceAreas != nil {
		p.ServiceAreas = areas
	}
	return nil
}

// UpdateLocation records the rider's position
func (p *Profile) UpdateLocation(longitude, latitude float64, now time.Time) error {
	if err := ValidateCoordinates(longitude, latitude); err != nil {
		return err
	}
	p.CurrentLocation = &Location{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
		LastUpdated: now,
	}
	active := now
	p.LastActiveAt = &active
	return nil
}

// RecordDelivery folds a delivery outcome into the stats
func (p *Profile) RecordDelivery(o Outcome) error {
	return p.Stats.Apply(o)
}

// Suspend takes the rider off the platform until approved again
func (p *Profile) Suspend(reason string, actor document.Actor, now time.Time) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrSuspensionReasonRequired
	}
	at := now
	p.IsSuspended = true
	p.SuspensionReason = reason
	p.SuspendedAt = &at
	p.SuspendedBy = actor.ID
	p.Status = StatusOffline
	p.IsAvailable = false
	return nil
}

// Approve marks onboarding complete once every required document is verified.
// Approving a suspended rider reinstates them.
func (p *Profile) Approve(actor document.Actor, now time.Time) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	if !p.Documents.AllRequiredVerified() {
		return ErrDocumentsIncomplete
	}
	at := now
	p.IsVerified = true
	p.OnboardingCompleted = true
	p.ApprovedAt = &at
	p.ApprovedBy = actor.ID
	p.IsSuspended = false
	p.SuspensionReason = ""
	p.SuspendedAt = nil
	p.SuspendedBy = ""
	return nil
}

// ValidateCoordinates checks longitude/latitude bounds
func ValidateCoordinates(longitude, latitude float64) error {
	if !(longitude >= -180 && longitude <= 180) {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinates, longitude)
	}
	if !(latitude >= -90 && latitude <= 90) {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinates, latitude)
	}
	return nil
}

// MaxIndexedLatitude is the polar limit of Redis GEO (web mercator)
const MaxIndexedLatitude = 85.05112878

// ValidateSearchPoint checks a proximity query origin. Stored positions may sit
// anywhere ValidateCoordinates allows; searches are bounded by the geo index.
func ValidateSearchPoint(longitude, latitude float64) error {
	if err := ValidateCoordinates(longitude, latitude); err != nil {
		return err
	}
	if math.Abs(latitude) > MaxIndexedLatitude {
		return fmt.Errorf("%w: latitude %v beyond the searchable range [-%v, %v]",
			ErrInvalidCoordinates, latitude, MaxIndexedLatitude, MaxIndexedLatitude)
	}
	return nil
}

func cleanServiceAreas(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, area := range in {
		area = strings.TrimSpace(area)
		key := strings.ToLower(area)
		if area == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, area)
	}
	if len(out) > maxServiceAreas {
		return nil, fmt.Errorf("%w: at most %d service areas", ErrInvalidInput, maxServiceAreas)
	}
	return out, nil
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
