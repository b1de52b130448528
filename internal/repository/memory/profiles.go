package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gocomet/rider-service/internal/domain/rider"
)

// ProfileRepository is an in-process rider.Repository used by tests and
// STORAGE_DRIVER=memory. Stored profiles never carry the account number;
// it lives in a side table the same way the postgres column does.
type ProfileRepository struct {
	mu             sync.RWMutex
	profiles       map[string]*rider.Profile
	accountNumbers map[string]string
}

// NewProfileRepository creates an empty repository
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles:       make(map[string]*rider.Profile),
		accountNumbers: make(map[string]string),
	}
}

// Create inserts p when no profile exists for its user
func (r *ProfileRepository) Create(ctx context.Context, p *rider.Profile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.UserID]; ok {
		return false, nil
	}
	p.Version = 1
	if err := r.store(p); err != nil {
		return false, err
	}
	return true, nil
}

// GetByUserID returns a copy of the stored profile without the account number
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*rider.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, rider.ErrProfileNotFound
	}
	return clone(p)
}

// GetByUserIDs returns the profiles that exist, in the order requested
func (r *ProfileRepository) GetByUserIDs(ctx context.Context, userIDs []string) ([]*rider.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*rider.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		p, ok := r.profiles[id]
		if !ok {
			continue
		}
		cp, err := clone(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Update replaces the stored profile when the versions match
func (r *ProfileRepository) Update(ctx context.Context, p *rider.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.profiles[p.UserID]
	if !ok {
		return rider.ErrProfileNotFound
	}
	if current.Version != p.Version {
		return rider.ErrVersionConflict
	}
	p.Version++
	if err := r.store(p); err != nil {
		p.Version--
		return err
	}
	return nil
}

// AccountNumber reads the side table
func (r *ProfileRepository) AccountNumber(ctx context.Context, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.profiles[userID]; !ok {
		return "", rider.ErrProfileNotFound
	}
	return r.accountNumbers[userID], nil
}

// ListByServiceArea scans for listed profiles serving area
func (r *ProfileRepository) ListByServiceArea(ctx context.Context, area string) ([]*rider.Profile, error) {
	area = strings.TrimSpace(area)
	var out []*rider.Profile
	err := r.ForEach(ctx, func(p *rider.Profile) error {
		if !p.Listed() {
			return nil
		}
		for _, a := range p.ServiceAreas {
			if strings.EqualFold(strings.TrimSpace(a), area) {
				out = append(out, p)
				break
			}
		}
		return nil
	})
	return out, err
}

// TopPerformers scans for listed profiles with enough deliveries and ranks them
func (r *ProfileRepository) TopPerformers(ctx context.Context, minDeliveries, limit int) ([]*rider.Profile, error) {
	var out []*rider.Profile
	err := r.ForEach(ctx, func(p *rider.Profile) error {
		if p.Listed() && p.Stats.TotalDeliveries >= minDeliveries {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rider.SortTopPerformers(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ForEach visits copies of every profile in user id order
func (r *ProfileRepository) ForEach(ctx context.Context, fn func(*rider.Profile) error) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := r.GetByUserID(ctx, id)
		if err != nil {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// store keeps a detached copy of p; callers hold the write lock.
// An empty account number on p keeps the stored one; nil bank details drop it.
func (r *ProfileRepository) store(p *rider.Profile) error {
	cp, err := clone(p)
	if err != nil {
		return fmt.Errorf("memory: profile %s is not serializable: %w", p.UserID, err)
	}
	switch {
	case p.BankDetails == nil:
		delete(r.accountNumbers, p.UserID)
	case p.BankDetails.AccountNumber != "":
		r.accountNumbers[p.UserID] = p.BankDetails.AccountNumber
	}
	r.profiles[p.UserID] = cp
	return nil
}

func clone(p *rider.Profile) (*rider.Profile, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var cp rider.Profile
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}
	cp.Version = p.Version
	if bd := cp.BankDetails; bd != nil {
		bd.HasAccountNumber = bd.HasAccountNumber || bd.AccountNumber != ""
		bd.AccountNumber = ""
	}
	return &cp, nil
}
