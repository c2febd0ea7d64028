package invoice

import (
	"context"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Filter narrows invoice listings
type Filter struct {
	CustomerID    string
	PaymentStatus types.PaymentStatus
	// WithExternalRef keeps only invoices holding a processor reference
	WithExternalRef bool
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, filter *Filter) ([]*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	// ListForRecord returns invoices whose record set contains the record,
	// optionally restricted to non-draft statuses
	ListForRecord(ctx context.Context, recordID string, includeDrafts bool) ([]*Invoice, error)
	// ListUnpaidWithExternalRef returns unpaid invoices holding a processor
	// reference across all organizations, for the periodic refresh step
	ListUnpaidWithExternalRef(ctx context.Context) ([]*Invoice, error)
}
