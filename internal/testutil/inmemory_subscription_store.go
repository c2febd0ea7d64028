package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InMemorySubscriptionStore struct {
	mu      sync.RWMutex
	records map[string]*subscription.SubscriptionRecord
	subs    map[string]*subscription.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		records: make(map[string]*subscription.SubscriptionRecord),
		subs:    make(map[string]*subscription.Subscription),
	}
}

func (s *InMemorySubscriptionStore) CreateRecord(ctx context.Context, rec *subscription.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return ierr.NewError("subscription record already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := cloneRecord(rec)
	s.records[rec.ID] = cp
	return nil
}

func (s *InMemorySubscriptionStore) GetRecord(ctx context.Context, id string) (*subscription.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || rec.OrganizationID != types.GetOrganizationID(ctx) || rec.BaseModel.Status == types.StatusDeleted {
		return nil, ierr.NewError("subscription record not found").
			WithHintf("Subscription record %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

func (s *InMemorySubscriptionStore) ListRecords(ctx context.Context, filter *subscription.RecordFilter) ([]*subscription.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*subscription.SubscriptionRecord
	for _, rec := range s.records {
		if rec.OrganizationID != orgID || rec.BaseModel.Status == types.StatusDeleted {
			continue
		}
		if filter != nil {
			if filter.CustomerID != "" && rec.CustomerID != filter.CustomerID {
				continue
			}
			if filter.BillingPlanID != "" && rec.BillingPlanID != filter.BillingPlanID {
				continue
			}
			if filter.ActiveAt != nil {
				at := *filter.ActiveAt
				if at.Before(rec.StartDate) || at.After(rec.EndDate) {
					continue
				}
			}
			if filter.RangeStart != nil && rec.EndDate.Before(*filter.RangeStart) {
				continue
			}
			if filter.RangeEnd != nil && rec.StartDate.After(*filter.RangeEnd) {
				continue
			}
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func (s *InMemorySubscriptionStore) UpdateRecord(ctx context.Context, rec *subscription.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return ierr.NewError("subscription record not found").
			Mark(ierr.ErrNotFound)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// LockRecords is a no-op; the store already serializes writers on its mutex
func (s *InMemorySubscriptionStore) LockRecords(ctx context.Context, ids []string) error {
	return nil
}

func (s *InMemorySubscriptionStore) ListChildren(ctx context.Context, parentID string) ([]*subscription.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var out []*subscription.SubscriptionRecord
	for _, rec := range s.records {
		if rec.OrganizationID != orgID || rec.ParentID != parentID || rec.BaseModel.Status == types.StatusDeleted {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; ok {
		return ierr.NewError("subscription already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok || sub.OrganizationID != types.GetOrganizationID(ctx) || sub.Status == types.StatusDeleted {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (s *InMemorySubscriptionStore) GetOpenSubscription(ctx context.Context, customerID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID := types.GetOrganizationID(ctx)
	var best *subscription.Subscription
	for _, sub := range s.subs {
		if sub.OrganizationID != orgID || sub.CustomerID != customerID || sub.Status != types.StatusActive {
			continue
		}
		if best == nil || sub.EndDate.After(best.EndDate) {
			best = sub
		}
	}
	if best == nil {
		return nil, ierr.NewError("no open subscription").
			WithHintf("Customer %s has no open subscription", customerID).
			Mark(ierr.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (s *InMemorySubscriptionStore) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return ierr.NewError("subscription not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) DeleteSubscription(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return ierr.NewError("subscription not found").
			Mark(ierr.ErrNotFound)
	}
	sub.Status = types.StatusDeleted
	return nil
}

func (s *InMemorySubscriptionStore) ListExpiredSubscriptions(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.Status != types.StatusActive || !sub.EndDate.Before(cutoff) {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func cloneRecord(rec *subscription.SubscriptionRecord) *subscription.SubscriptionRecord {
	cp := *rec
	if rec.Filters != nil {
		cp.Filters = make(map[string]string, len(rec.Filters))
		for k, v := range rec.Filters {
			cp.Filters[k] = v
		}
	}
	return &cp
}
