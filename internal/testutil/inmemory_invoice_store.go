package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*invoice.Invoice
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{invoices: make(map[string]*invoice.Invoice)}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; ok {
		return ierr.NewError("invoice already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok || inv.OrganizationID != types.GetOrganizationID(ctx) || inv.Status == types.StatusDeleted {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return cloneInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.OrganizationID != orgID || inv.Status == types.StatusDeleted {
			continue
		}
		if filter != nil {
			if filter.CustomerID != "" && inv.CustomerID != filter.CustomerID {
				continue
			}
			if filter.PaymentStatus != "" && inv.PaymentStatus != filter.PaymentStatus {
				continue
			}
			if filter.WithExternalRef && inv.ExternalPaymentObjRef == "" {
				continue
			}
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssueDate.After(out[j].IssueDate)
	})
	return out, nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; !ok {
		return ierr.NewError("invoice not found").
			Mark(ierr.ErrNotFound)
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (s *InMemoryInvoiceStore) ListForRecord(ctx context.Context, recordID string, includeDrafts bool) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.OrganizationID != orgID || inv.Status == types.StatusDeleted {
			continue
		}
		if !includeDrafts && inv.PaymentStatus == types.PaymentStatusDraft {
			continue
		}
		for _, id := range inv.SubscriptionRecordIDs {
			if id == recordID {
				out = append(out, cloneInvoice(inv))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssueDate.After(out[j].IssueDate)
	})
	return out, nil
}

// ListUnpaidWithExternalRef spans all organizations, mirroring the
// periodic driver's global sweep
func (s *InMemoryInvoiceStore) ListUnpaidWithExternalRef(ctx context.Context) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.Status == types.StatusDeleted {
			continue
		}
		if inv.PaymentStatus != types.PaymentStatusUnpaid || inv.ExternalPaymentObjRef == "" {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssueDate.Before(out[j].IssueDate)
	})
	return out, nil
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.LineItems = append([]invoice.LineItem(nil), inv.LineItems...)
	cp.SubscriptionRecordIDs = append([]string(nil), inv.SubscriptionRecordIDs...)
	return &cp
}
