package balance

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, adjustment *Adjustment) error
	Get(ctx context.Context, id string) (*Adjustment, error)
	// ListActive returns the customer's active grants in one currency,
	// ordered by (expires_at nulls last, created_at) so the soonest
	// expiring credit is drawn first
	ListActive(ctx context.Context, customerID, currency string) ([]*Adjustment, error)
	List(ctx context.Context, customerID string) ([]*Adjustment, error)
	Update(ctx context.Context, adjustment *Adjustment) error
	// ListExpired returns active grants whose expiry passed before now
	ListExpired(ctx context.Context, now time.Time) ([]*Adjustment, error)
}
