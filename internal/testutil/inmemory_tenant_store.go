package testutil

import (
	"context"
	"sync"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tenant"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

type InMemoryTenantStore struct {
	mu   sync.RWMutex
	orgs map[string]*tenant.Organization
}

func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{orgs: make(map[string]*tenant.Organization)}
}

func (s *InMemoryTenantStore) CreateOrganization(ctx context.Context, org *tenant.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; ok {
		return ierr.NewError("organization already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

func (s *InMemoryTenantStore) GetOrganization(ctx context.Context, id string) (*tenant.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ierr.NewError("organization not found").
			WithHintf("Organization %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *org
	return &cp, nil
}

func (s *InMemoryTenantStore) UpdateOrganization(ctx context.Context, org *tenant.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; !ok {
		return ierr.NewError("organization not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

type InMemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*tenant.APIKey
}

func NewInMemoryAPIKeyStore() *InMemoryAPIKeyStore {
	return &InMemoryAPIKeyStore{keys: make(map[string]*tenant.APIKey)}
}

func (s *InMemoryAPIKeyStore) CreateAPIKey(ctx context.Context, key *tenant.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.Prefix]; ok {
		return ierr.NewError("api key already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *key
	s.keys[key.Prefix] = &cp
	return nil
}

func (s *InMemoryAPIKeyStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*tenant.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[prefix]
	if !ok {
		return nil, ierr.NewError("api key not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *key
	return &cp, nil
}

func (s *InMemoryAPIKeyStore) DeleteAPIKey(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[prefix]; !ok {
		return ierr.NewError("api key not found").
			Mark(ierr.ErrNotFound)
	}
	delete(s.keys, prefix)
	return nil
}
