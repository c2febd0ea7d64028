package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tenant"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
)

type TenantRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewTenantRepository(client postgres.IClient, logger *logger.Logger) tenant.Repository {
	return &TenantRepository{client: client, logger: logger}
}

func (r *TenantRepository) CreateOrganization(ctx context.Context, org *tenant.Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, default_currency, tax_rate, payment_grace_period_days,
			timezone, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		org.ID, org.Name, org.DefaultCurrency, org.TaxRate,
		org.PaymentGracePeriodDays, org.Timezone, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An organization with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create organization").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *TenantRepository) GetOrganization(ctx context.Context, id string) (*tenant.Organization, error) {
	query := `SELECT * FROM organizations WHERE id = $1`

	var org tenant.Organization
	if err := sqlx.GetContext(ctx, r.client.Querier(ctx), &org, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Organization %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get organization").
			Mark(ierr.ErrDatabase)
	}
	return &org, nil
}

func (r *TenantRepository) UpdateOrganization(ctx context.Context, org *tenant.Organization) error {
	query := `
		UPDATE organizations SET
			name = $2, default_currency = $3, tax_rate = $4,
			payment_grace_period_days = $5, timezone = $6, updated_at = now()
		WHERE id = $1
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		org.ID, org.Name, org.DefaultCurrency, org.TaxRate,
		org.PaymentGracePeriodDays, org.Timezone)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update organization").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "organization", org.ID)
}

type APIKeyRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewAPIKeyRepository(client postgres.IClient, logger *logger.Logger) tenant.APIKeyRepository {
	return &APIKeyRepository{client: client, logger: logger}
}

func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, key *tenant.APIKey) error {
	query := `
		INSERT INTO api_keys (prefix, secret_hash, organization_id, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		key.Prefix, key.SecretHash, key.OrganizationID, key.Name, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An API key with this prefix already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create API key").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *APIKeyRepository) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*tenant.APIKey, error) {
	query := `SELECT * FROM api_keys WHERE prefix = $1`

	var key tenant.APIKey
	if err := sqlx.GetContext(ctx, r.client.Querier(ctx), &key, query, prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("API key was not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get API key").
			Mark(ierr.ErrDatabase)
	}
	return &key, nil
}

func (r *APIKeyRepository) DeleteAPIKey(ctx context.Context, prefix string) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx,
		`DELETE FROM api_keys WHERE prefix = $1`, prefix)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete API key").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "api key", prefix)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func requireRowAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewError("row not found").
			WithHintf("%s %s was not found", entity, id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
