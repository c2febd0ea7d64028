package testutil

import (
	"context"
	"sync"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemoryMetricStore struct {
	mu      sync.RWMutex
	metrics map[string]*metric.Metric
}

func NewInMemoryMetricStore() *InMemoryMetricStore {
	return &InMemoryMetricStore{metrics: make(map[string]*metric.Metric)}
}

func (s *InMemoryMetricStore) Create(ctx context.Context, m *metric.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metrics[m.ID]; ok {
		return ierr.NewError("metric already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *m
	s.metrics[m.ID] = &cp
	return nil
}

func (s *InMemoryMetricStore) Get(ctx context.Context, id string) (*metric.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[id]
	if !ok || m.OrganizationID != types.GetOrganizationID(ctx) || m.Status == types.StatusDeleted {
		return nil, ierr.NewError("metric not found").
			WithHintf("Metric %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *InMemoryMetricStore) List(ctx context.Context) ([]*metric.Metric, error) {
	return s.list(ctx, "")
}

func (s *InMemoryMetricStore) ListByEventName(ctx context.Context, eventName string) ([]*metric.Metric, error) {
	return s.list(ctx, eventName)
}

func (s *InMemoryMetricStore) list(ctx context.Context, eventName string) ([]*metric.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*metric.Metric
	for _, m := range s.metrics {
		if m.OrganizationID != orgID || m.Status != types.StatusActive {
			continue
		}
		if eventName != "" && m.EventName != eventName {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryMetricStore) Archive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[id]
	if !ok || m.OrganizationID != types.GetOrganizationID(ctx) {
		return ierr.NewError("metric not found").
			Mark(ierr.ErrNotFound)
	}
	m.Status = types.StatusArchived
	return nil
}
