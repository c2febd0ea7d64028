package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemoryBalanceStore struct {
	mu          sync.RWMutex
	adjustments map[string]*balance.Adjustment
}

func NewInMemoryBalanceStore() *InMemoryBalanceStore {
	return &InMemoryBalanceStore{adjustments: make(map[string]*balance.Adjustment)}
}

func (s *InMemoryBalanceStore) Create(ctx context.Context, adj *balance.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adjustments[adj.ID]; ok {
		return ierr.NewError("balance adjustment already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.adjustments[adj.ID] = cloneAdjustment(adj)
	return nil
}

func (s *InMemoryBalanceStore) Get(ctx context.Context, id string) (*balance.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adj, ok := s.adjustments[id]
	if !ok || adj.OrganizationID != types.GetOrganizationID(ctx) || adj.Status == types.StatusDeleted {
		return nil, ierr.NewError("balance adjustment not found").
			WithHintf("Balance adjustment %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return cloneAdjustment(adj), nil
}

func (s *InMemoryBalanceStore) ListActive(ctx context.Context, customerID, currency string) ([]*balance.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*balance.Adjustment
	for _, adj := range s.adjustments {
		if adj.OrganizationID != orgID || adj.CustomerID != customerID {
			continue
		}
		if adj.PricingUnit != currency || adj.AdjStatus != types.BalanceStatusActive || adj.Status != types.StatusActive {
			continue
		}
		out = append(out, cloneAdjustment(adj))
	}
	// Soonest expiring first, nils last, then creation order
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiresAt == nil:
			return false
		case b.ExpiresAt == nil:
			return true
		case !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return out, nil
}

func (s *InMemoryBalanceStore) List(ctx context.Context, customerID string) ([]*balance.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*balance.Adjustment
	for _, adj := range s.adjustments {
		if adj.OrganizationID != orgID || adj.CustomerID != customerID || adj.Status == types.StatusDeleted {
			continue
		}
		out = append(out, cloneAdjustment(adj))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryBalanceStore) Update(ctx context.Context, adj *balance.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adjustments[adj.ID]; !ok {
		return ierr.NewError("balance adjustment not found").
			Mark(ierr.ErrNotFound)
	}
	s.adjustments[adj.ID] = cloneAdjustment(adj)
	return nil
}

func (s *InMemoryBalanceStore) ListExpired(ctx context.Context, now time.Time) ([]*balance.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*balance.Adjustment
	for _, adj := range s.adjustments {
		if adj.AdjStatus != types.BalanceStatusActive || adj.Status != types.StatusActive {
			continue
		}
		if adj.ExpiresAt == nil || !adj.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, cloneAdjustment(adj))
	}
	return out, nil
}

func cloneAdjustment(adj *balance.Adjustment) *balance.Adjustment {
	cp := *adj
	cp.Drawdowns = append([]balance.Drawdown(nil), adj.Drawdowns...)
	return &cp
}
