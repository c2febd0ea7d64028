package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/cache"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tenant"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

// AuthService resolves presented API keys to organizations. Hot path
// lookups are served from the process local cache; the TTL of a cached
// entry never outlives the key's own expiry.
type AuthService interface {
	// Authenticate resolves <prefix>.<secret> to the owning organization id
	Authenticate(ctx context.Context, rawKey string) (string, error)

	// CreateAPIKey mints a key for the organization and returns the full
	// key material, shown exactly once
	CreateAPIKey(ctx context.Context, organizationID, name string, expiresAt *time.Time) (*tenant.APIKey, string, error)

	// RevokeAPIKey deletes the key and evicts it from the cache
	RevokeAPIKey(ctx context.Context, prefix string) error
}

type authService struct {
	ServiceParams
}

func NewAuthService(params ServiceParams) AuthService {
	return &authService{ServiceParams: params}
}

type cachedKey struct {
	OrganizationID string
	SecretHash     string
	ExpiresAt      *time.Time
}

func (s *authService) Authenticate(ctx context.Context, rawKey string) (string, error) {
	prefix, secret, ok := strings.Cut(rawKey, ".")
	if !ok || prefix == "" || secret == "" {
		return "", ierr.NewError("malformed api key").
			WithHint("API keys have the form <prefix>.<secret>").
			Mark(ierr.ErrUnauthorized)
	}

	now := time.Now().UTC()
	cacheKey := cache.GenerateKey(cache.PrefixAPIKey, prefix)

	if v, found := s.Cache.Get(ctx, cacheKey); found {
		if ck, ok := v.(cachedKey); ok {
			return s.verify(prefix, secret, ck, now)
		}
	}

	key, err := s.APIKeyRepo.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		if ierr.IsNotFound(err) {
			return "", ierr.WithError(err).
				WithHint("Unknown API key").
				Mark(ierr.ErrUnauthorized)
		}
		return "", err
	}

	ck := cachedKey{
		OrganizationID: key.OrganizationID,
		SecretHash:     key.SecretHash,
		ExpiresAt:      key.ExpiresAt,
	}
	s.Cache.Set(ctx, cacheKey, ck, s.cacheTTL(key, now))

	return s.verify(prefix, secret, ck, now)
}

func (s *authService) verify(prefix, secret string, ck cachedKey, now time.Time) (string, error) {
	if ck.ExpiresAt != nil && now.After(*ck.ExpiresAt) {
		return "", ierr.NewError("api key expired").
			WithHint("The API key has expired").
			Mark(ierr.ErrUnauthorized)
	}
	key := tenant.APIKey{Prefix: prefix, SecretHash: ck.SecretHash}
	if !key.Verify(secret, s.Config.Auth.Secret) {
		return "", ierr.NewError("invalid api key").
			WithHint("API key verification failed").
			Mark(ierr.ErrUnauthorized)
	}
	return ck.OrganizationID, nil
}

// cacheTTL bounds the cache entry by both the configured TTL and the key's
// remaining lifetime
func (s *authService) cacheTTL(key *tenant.APIKey, now time.Time) time.Duration {
	ttl := s.Config.Auth.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if key.ExpiresAt != nil {
		if remaining := key.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

func (s *authService) CreateAPIKey(ctx context.Context, organizationID, name string, expiresAt *time.Time) (*tenant.APIKey, string, error) {
	prefix, err := randomHex(8)
	if err != nil {
		return nil, "", ierr.WithError(err).Mark(ierr.ErrSystem)
	}
	secret, err := randomHex(32)
	if err != nil {
		return nil, "", ierr.WithError(err).Mark(ierr.ErrSystem)
	}

	key := &tenant.APIKey{
		Prefix:         prefix,
		SecretHash:     tenant.HashSecret(secret, s.Config.Auth.Secret),
		OrganizationID: organizationID,
		Name:           name,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.APIKeyRepo.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	return key, prefix + "." + secret, nil
}

func (s *authService) RevokeAPIKey(ctx context.Context, prefix string) error {
	if err := s.APIKeyRepo.DeleteAPIKey(ctx, prefix); err != nil {
		return err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixAPIKey, prefix))
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
