package testutil

import (
	"context"
	"sync"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/alert"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*alert.UsageAlert
}

func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{alerts: make(map[string]*alert.UsageAlert)}
}

func (s *InMemoryAlertStore) Create(ctx context.Context, a *alert.UsageAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; ok {
		return ierr.NewError("usage alert already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (s *InMemoryAlertStore) ListByMetric(ctx context.Context, metricID string) ([]*alert.UsageAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*alert.UsageAlert
	for _, a := range s.alerts {
		if a.OrganizationID != orgID || a.MetricID != metricID || a.Status != types.StatusActive {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryAlertStore) Update(ctx context.Context, a *alert.UsageAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return ierr.NewError("usage alert not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (s *InMemoryAlertStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return ierr.NewError("usage alert not found").
			Mark(ierr.ErrNotFound)
	}
	a.Status = types.StatusDeleted
	return nil
}
