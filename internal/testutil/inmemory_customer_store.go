package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemoryCustomerStore struct {
	mu        sync.RWMutex
	customers map[string]*customer.Customer
}

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{customers: make(map[string]*customer.Customer)}
}

func customerKey(orgID, customerID string) string {
	return orgID + "|" + customerID
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := customerKey(c.OrganizationID, c.CustomerID)
	if _, ok := s.customers[key]; ok {
		return ierr.NewError("customer already exists").
			WithHintf("A customer with id %s already exists", c.CustomerID).
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *c
	s.customers[key] = &cp
	return nil
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, customerID string) (*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerKey(types.GetOrganizationID(ctx), customerID)]
	if !ok || c.Status == types.StatusDeleted {
		return nil, ierr.NewError("customer not found").
			WithHintf("Customer %s was not found", customerID).
			Mark(ierr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryCustomerStore) List(ctx context.Context) ([]*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*customer.Customer
	for _, c := range s.customers {
		if c.OrganizationID != orgID || c.Status != types.StatusActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CustomerID < out[j].CustomerID
	})
	return out, nil
}

func (s *InMemoryCustomerStore) Update(ctx context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := customerKey(c.OrganizationID, c.CustomerID)
	if _, ok := s.customers[key]; !ok {
		return ierr.NewError("customer not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *c
	s.customers[key] = &cp
	return nil
}
