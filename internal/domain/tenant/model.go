package tenant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Organization is the tenant boundary. Every persisted entity in the system
// carries the organization id and every repository read must filter by it.
type Organization struct {
	ID string `db:"id" json:"id"`

	Name string `db:"name" json:"name"`

	// DefaultCurrency is used for customers without an explicit currency
	DefaultCurrency string `db:"default_currency" json:"default_currency"`

	// TaxRate is an organization wide fallback consulted after the
	// customer's own tax providers
	TaxRate *float64 `db:"tax_rate" json:"tax_rate,omitempty"`

	// PaymentGracePeriodDays is added to an invoice's issue date to
	// compute its due date
	PaymentGracePeriodDays int `db:"payment_grace_period_days" json:"payment_grace_period_days"`

	Timezone string `db:"timezone" json:"timezone"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// APIKey is the persisted form of an organization scoped API key. Only the
// prefix and the HMAC of the secret are stored; the full key is shown once
// at creation time.
type APIKey struct {
	// Prefix is the public part before the dot in <prefix>.<secret>
	Prefix string `db:"prefix" json:"prefix"`

	// SecretHash is HMAC-SHA256(secret, signing key)
	SecretHash string `db:"secret_hash" json:"-"`

	OrganizationID string `db:"organization_id" json:"organization_id"`

	Name string `db:"name" json:"name"`

	// ExpiresAt bounds both the key's validity and its cache TTL
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HashSecret computes the at-rest form of an API key secret
func HashSecret(secret, signingKey string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented secret against the stored hash
func (k *APIKey) Verify(secret, signingKey string) bool {
	expected := HashSecret(secret, signingKey)
	return hmac.Equal([]byte(expected), []byte(k.SecretHash))
}

// Expired reports whether the key is past its expiry
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// NewOrganization constructs an organization with generated id and defaults
func NewOrganization(name, currency string) *Organization {
	now := time.Now().UTC()
	if currency == "" {
		currency = "usd"
	}
	return &Organization{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORGANIZATION),
		Name:                   name,
		DefaultCurrency:        currency,
		PaymentGracePeriodDays: 1,
		Timezone:               "UTC",
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}
