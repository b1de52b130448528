package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/gocomet/rider-service/internal/domain/rider"
)

//go:embed schema.sql
var schemaSQL string

const forEachBatch = 200

// EnsureSchema creates the rider_profiles table and its indexes
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ProfileRepository stores each profile as a JSONB document plus the
// columns the listing queries filter and sort on. The account number is a
// separate column that only AccountNumber selects.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a repository over db
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// row is the column projection written on every save
type row struct {
	profile         []byte
	accountNumber   sql.NullString
	clearAccount    bool
	serviceAreas    []string
	averageRating   sql.NullFloat64
	totalDeliveries int
	completionRate  int
	onTimeRate      int
}

func toRow(p *rider.Profile) (row, error) {
	stored := *p
	r := row{
		clearAccount:    p.BankDetails == nil,
		totalDeliveries: p.Stats.TotalDeliveries,
		completionRate:  p.Stats.CompletionRate,
		onTimeRate:      p.Stats.OnTimeDeliveryRate,
	}
	if p.BankDetails != nil {
		bd := *p.BankDetails
		if bd.AccountNumber != "" {
			r.accountNumber = sql.NullString{String: bd.AccountNumber, Valid: true}
			bd.HasAccountNumber = true
		}
		bd.AccountNumber = ""
		stored.BankDetails = &bd
	}
	if p.Stats.AverageRating != nil {
		r.averageRating = sql.NullFloat64{Float64: *p.Stats.AverageRating, Valid: true}
	}
	r.serviceAreas = make([]string, 0, len(p.ServiceAreas))
	for _, a := range p.ServiceAreas {
		r.serviceAreas = append(r.serviceAreas, strings.ToLower(strings.TrimSpace(a)))
	}

	raw, err := json.Marshal(&stored)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode profile: %w", err)
	}
	r.profile = raw
	return r, nil
}

// Create inserts p unless the user already has a profile
func (r *ProfileRepository) Create(ctx context.Context, p *rider.Profile) (bool, error) {
	data, err := toRow(p)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO rider_profiles (
			id, user_id, version, profile, account_number, status, is_available,
			is_verified, is_active, is_suspended, service_areas, total_deliveries,
			average_rating, completion_rate, on_time_rate, created_at, updated_at
		) VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id) DO NOTHING
	`, p.ID, p.UserID, data.profile, data.accountNumber, string(p.Status), p.IsAvailable,
		p.IsVerified, p.IsActive, p.IsSuspended, pq.Array(data.serviceAreas), data.totalDeliveries,
		data.averageRating, data.completionRate, data.onTimeRate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert rider profile: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 1 {
		p.Version = 1
	}
	return n == 1, nil
}

// GetByUserID loads a profile; the account number column is not selected
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*rider.Profile, error) {
	var (
		version int64
		raw     []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT version, profile FROM rider_profiles WHERE user_id = $1
	`, userID).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rider.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rider profile: %w", err)
	}
	return decode(version, raw)
}

// GetByUserIDs loads the profiles that exist, in the order requested
func (r *ProfileRepository) GetByUserIDs(ctx context.Context, userIDs []string) ([]*rider.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	found, err := r.query(ctx, `
		SELECT version, profile FROM rider_profiles WHERE user_id = ANY($1)
	`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*rider.Profile, len(found))
	for _, p := range found {
		byID[p.UserID] = p
	}
	out := make([]*rider.Profile, 0, len(found))
	for _, id := range userIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Update writes p when the stored version still equals p.Version
func (r *ProfileRepository) Update(ctx context.Context, p *rider.Profile) error {
	data, err := toRow(p)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE rider_profiles SET
			version = version + 1,
			profile = $3,
			account_number = CASE
				WHEN $4::boolean THEN NULL
				WHEN $5::text IS NOT NULL THEN $5::text
				ELSE account_number
			END,
			status = $6,
			is_available = $7,
			is_verified = $8,
			is_active = $9,
			is_suspended = $10,
			service_areas = $11,
			total_deliveries = $12,
			average_rating = $13,
			completion_rate = $14,
			on_time_rate = $15,
			updated_at = $16
		WHERE user_id = $1 AND version = $2
	`, p.UserID, p.Version, data.profile, data.clearAccount, data.accountNumber,
		string(p.Status), p.IsAvailable, p.IsVerified, p.IsActive, p.IsSuspended,
		pq.Array(data.serviceAreas), data.totalDeliveries, data.averageRating,
		data.completionRate, data.onTimeRate, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update rider profile: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 1 {
		p.Version++
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM rider_profiles WHERE user_id = $1)
	`, p.UserID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check rider profile: %w", err)
	}
	if !exists {
		return rider.ErrProfileNotFound
	}
	return rider.ErrVersionConflict
}

// AccountNumber is the only query that selects the account number column
func (r *ProfileRepository) AccountNumber(ctx context.Context, userID string) (string, error) {
	var number sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT account_number FROM rider_profiles WHERE user_id = $1
	`, userID).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", rider.ErrProfileNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load account number: %w", err)
	}
	return number.String, nil
}

// ListByServiceArea uses the GIN index on the lowercased service area column
func (r *ProfileRepository) ListByServiceArea(ctx context.Context, area string) ([]*rider.Profile, error) {
	return r.query(ctx, `
		SELECT version, profile FROM rider_profiles
		WHERE is_active AND is_verified AND NOT is_suspended
		  AND service_areas @> ARRAY[$1::text]
		ORDER BY user_id
	`, strings.ToLower(strings.TrimSpace(area)))
}

// TopPerformers ranks listed riders with at least minDeliveries
func (r *ProfileRepository) TopPerformers(ctx context.Context, minDeliveries, limit int) ([]*rider.Profile, error) {
	return r.query(ctx, `
		SELECT version, profile FROM rider_profiles
		WHERE is_active AND is_verified AND NOT is_suspended
		  AND total_deliveries >= $1
		ORDER BY COALESCE(average_rating, 0) DESC, completion_rate DESC, on_time_rate DESC, user_id
		LIMIT $2
	`, minDeliveries, limit)
}

// ForEach walks the table in user id order using keyset pagination
func (r *ProfileRepository) ForEach(ctx context.Context, fn func(*rider.Profile) error) error {
	after := ""
	for {
		batch, err := r.query(ctx, `
			SELECT version, profile FROM rider_profiles
			WHERE user_id > $1
			ORDER BY user_id
			LIMIT $2
		`, after, forEachBatch)
		if err != nil {
			return err
		}
		for _, p := range batch {
			if err := fn(p); err != nil {
				return err
			}
			after = p.UserID
		}
		if len(batch) < forEachBatch {
			return nil
		}
	}
}

func (r *ProfileRepository) query(ctx context.Context, q string, args ...interface{}) ([]*rider.Profile, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rider profiles: %w", err)
	}
	defer rows.Close()

	var out []*rider.Profile
	for rows.Next() {
		var (
			version int64
			raw     []byte
		)
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan rider profile: %w", err)
		}
		p, err := decode(version, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rider profiles: %w", err)
	}
	return out, nil
}

func decode(version int64, raw []byte) (*rider.Profile, error) {
	var p rider.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode rider profile: %w", err)
	}
	p.Version = version
	if bd := p.BankDetails; bd != nil {
		bd.HasAccountNumber = bd.HasAccountNumber || bd.AccountNumber != ""
		bd.AccountNumber = ""
	}
	return &p, nil
}
