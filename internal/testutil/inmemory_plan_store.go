package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemoryPlanStore struct {
	mu       sync.RWMutex
	plans    map[string]*plan.Plan
	versions map[string]*plan.PlanVersion
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		plans:    make(map[string]*plan.Plan),
		versions: make(map[string]*plan.PlanVersion),
	}
}

func (s *InMemoryPlanStore) CreatePlan(ctx context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[p.ID]; ok {
		return ierr.NewError("plan already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *InMemoryPlanStore) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok || p.OrganizationID != types.GetOrganizationID(ctx) || p.Status == types.StatusDeleted {
		return nil, ierr.NewError("plan not found").
			WithHintf("Plan %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryPlanStore) ListPlans(ctx context.Context) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*plan.Plan
	for _, p := range s.plans {
		if p.OrganizationID != orgID || p.Status != types.StatusActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryPlanStore) CreateVersion(ctx context.Context, v *plan.PlanVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[v.ID]; ok {
		return ierr.NewError("plan version already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

func (s *InMemoryPlanStore) GetVersion(ctx context.Context, id string) (*plan.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok || v.OrganizationID != types.GetOrganizationID(ctx) || v.Status == types.StatusDeleted {
		return nil, ierr.NewError("plan version not found").
			WithHintf("Plan version %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (s *InMemoryPlanStore) GetActiveVersion(ctx context.Context, planID string) (*plan.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	now := time.Now().UTC()
	var best *plan.PlanVersion
	for _, v := range s.versions {
		if v.OrganizationID != orgID || v.PlanID != planID || v.Status != types.StatusActive {
			continue
		}
		if v.ActiveFrom.After(now) {
			continue
		}
		if v.ActiveTo != nil && !v.ActiveTo.After(now) {
			continue
		}
		if best == nil || v.Version > best.Version {
			best = v
		}
	}
	if best == nil {
		return nil, ierr.NewError("no active plan version").
			WithHintf("Plan %s has no active version", planID).
			Mark(ierr.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (s *InMemoryPlanStore) ListVersions(ctx context.Context, planID string) ([]*plan.PlanVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*plan.PlanVersion
	for _, v := range s.versions {
		if v.OrganizationID != orgID || v.PlanID != planID || v.Status == types.StatusDeleted {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *InMemoryPlanStore) UpdateVersion(ctx context.Context, v *plan.PlanVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[v.ID]; !ok {
		return ierr.NewError("plan version not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *v
	s.versions[v.ID] = &cp
	return nil
}
