package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type CustomerRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewCustomerRepository(client postgres.IClient, logger *logger.Logger) customer.Repository {
	return &CustomerRepository{client: client, logger: logger}
}

type customerRow struct {
	CustomerID          string                         `db:"customer_id"`
	Name                string                         `db:"name"`
	Email               string                         `db:"email"`
	DefaultCurrency     string                         `db:"default_currency"`
	Timezone            string                         `db:"timezone"`
	BillingAddress      jsonColumn[*customer.Address]  `db:"billing_address"`
	TaxRate             *float64                       `db:"tax_rate"`
	PaymentProviderRefs jsonColumn[map[string]string]  `db:"payment_provider_refs"`
	OrganizationID      string                         `db:"organization_id"`
	Status              types.Status                   `db:"status"`
	CreatedAt           time.Time                      `db:"created_at"`
	UpdatedAt           time.Time                      `db:"updated_at"`
}

func (row *customerRow) toModel() *customer.Customer {
	return &customer.Customer{
		CustomerID:          row.CustomerID,
		Name:                row.Name,
		Email:               row.Email,
		DefaultCurrency:     row.DefaultCurrency,
		Timezone:            row.Timezone,
		BillingAddress:      row.BillingAddress.V,
		TaxRate:             row.TaxRate,
		PaymentProviderRefs: row.PaymentProviderRefs.V,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (
			customer_id, organization_id, name, email, default_currency, timezone,
			billing_address, tax_rate, payment_provider_refs, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		c.CustomerID, c.OrganizationID, c.Name, c.Email, c.DefaultCurrency, c.Timezone,
		jsonColumn[*customer.Address]{V: c.BillingAddress}, c.TaxRate,
		jsonColumn[map[string]string]{V: c.PaymentProviderRefs},
		c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A customer with id %s already exists", c.CustomerID).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create customer").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *CustomerRepository) Get(ctx context.Context, customerID string) (*customer.Customer, error) {
	query := `
		SELECT * FROM customers
		WHERE organization_id = $1 AND customer_id = $2 AND status != $3
	`

	var row customerRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), customerID, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Customer %s was not found", customerID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get customer").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *CustomerRepository) List(ctx context.Context) ([]*customer.Customer, error) {
	query := `
		SELECT * FROM customers
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	var rows []*customerRow
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query,
		types.GetOrganizationID(ctx), types.StatusActive)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list customers").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *customerRow, _ int) *customer.Customer {
		return row.toModel()
	}), nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	query := `
		UPDATE customers SET
			name = $3, email = $4, default_currency = $5, timezone = $6,
			billing_address = $7, tax_rate = $8, payment_provider_refs = $9,
			status = $10, updated_at = now()
		WHERE organization_id = $1 AND customer_id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		c.OrganizationID, c.CustomerID, c.Name, c.Email, c.DefaultCurrency, c.Timezone,
		jsonColumn[*customer.Address]{V: c.BillingAddress}, c.TaxRate,
		jsonColumn[map[string]string]{V: c.PaymentProviderRefs}, c.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update customer").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "customer", c.CustomerID)
}
