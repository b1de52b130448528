package memory

import (
	"context"
	"sync"
)

// DeliveryGuard remembers which delivery ids were already applied
type DeliveryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewDeliveryGuard creates an empty guard
func NewDeliveryGuard() *DeliveryGuard {
	return &DeliveryGuard{seen: make(map[string]bool)}
}

// Claim reports whether deliveryID is new, marking it seen
func (g *DeliveryGuard) Claim(ctx context.Context, deliveryID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[deliveryID] {
		return false, nil
	}
	g.seen[deliveryID] = true
	return true, nil
}

// Release forgets deliveryID so a failed apply can be retried
func (g *DeliveryGuard) Release(ctx context.Context, deliveryID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, deliveryID)
	return nil
}
