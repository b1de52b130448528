package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/rider-service/internal/domain/rider"
)

func testProfile() *rider.Profile {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	p := rider.NewProfile("user-1", now)
	p.Normalize(now)
	return p
}

// TestToRow_AccountNumberSeparated tests the account number leaves the JSON document
func TestToRow_AccountNumberSeparated(t *testing.T) {
	p := testProfile()
	p.BankDetails = &rider.BankDetails{
		AccountHolderName: "T Nkosi",
		AccountNumber:     "62001234567",
		BankName:          "FNB",
		AccountType:       rider.AccountType("cheque"),
	}

	r, err := toRow(p)
	require.NoError(t, err)

	assert.NotContains(t, string(r.profile), "62001234567")
	assert.True(t, r.accountNumber.Valid)
	assert.Equal(t, "62001234567", r.accountNumber.String)
	assert.False(t, r.clearAccount)
	assert.Equal(t, "62001234567", p.BankDetails.AccountNumber, "The caller's profile must not be modified")

	got, err := decode(1, r.profile)
	require.NoError(t, err)
	require.NotNil(t, got.BankDetails)
	assert.Empty(t, got.BankDetails.AccountNumber)
	assert.True(t, got.BankDetails.HasAccountNumber, "Presence survives the round trip")
	assert.True(t, rider.RedactedView(got).BankDetails.HasAccountNumber)
}

// TestToRow_Projection tests the filter and sort columns
func TestToRow_Projection(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *rider.Profile)
		wantAreas []string
		wantClear bool
		wantValid bool
		wantRate  bool
	}{
		{
			name:      "Fresh profile",
			mutate:    func(p *rider.Profile) {},
			wantAreas: []string{},
			wantClear: true,
		},
		{
			name: "Service areas lowered and trimmed",
			mutate: func(p *rider.Profile) {
				p.ServiceAreas = []string{" Johannesburg ", "2196"}
			},
			wantAreas: []string{"johannesburg", "2196"},
			wantClear: true,
		},
		{
			name: "Bank details without a number keep the stored one",
			mutate: func(p *rider.Profile) {
				p.BankDetails = &rider.BankDetails{AccountHolderName: "T Nkosi", BankName: "FNB"}
			},
			wantAreas: []string{},
		},
		{
			name: "Rated rider",
			mutate: func(p *rider.Profile) {
				rating := 4.5
				p.Stats.AverageRating = &rating
				p.Stats.TotalDeliveries = 12
				p.Stats.CompletionRate = 92
			},
			wantAreas: []string{},
			wantClear: true,
			wantRate:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile()
			p.ServiceAreas = nil
			tt.mutate(p)

			r, err := toRow(p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAreas, r.serviceAreas)
			assert.Equal(t, tt.wantClear, r.clearAccount)
			assert.Equal(t, tt.wantValid, r.accountNumber.Valid)
			assert.Equal(t, tt.wantRate, r.averageRating.Valid)
			assert.Equal(t, p.Stats.TotalDeliveries, r.totalDeliveries)
			assert.Equal(t, p.Stats.CompletionRate, r.completionRate)
		})
	}
}

// TestDecode tests stored documents load with the row version and no account number
func TestDecode(t *testing.T) {
	p := testProfile()
	p.Gender = "female"
	p.ServiceAreas = []string{"Johannesburg"}

	r, err := toRow(p)
	require.NoError(t, err)

	got, err := decode(7, r.profile)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Version)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "female", got.Gender)
	assert.Equal(t, []string{"Johannesburg"}, got.ServiceAreas)

	// A document written before account numbers moved to their own column
	legacy := []byte(`{"userId":"user-2","bankDetails":{"accountHolderName":"A","accountNumber":"123456","bankName":"B","accountType":"savings"}}`)
	got, err = decode(1, legacy)
	require.NoError(t, err)
	require.NotNil(t, got.BankDetails)
	assert.Empty(t, got.BankDetails.AccountNumber)
	assert.True(t, got.BankDetails.HasAccountNumber)

	_, err = decode(1, []byte("{"))
	assert.Error(t, err)
}
