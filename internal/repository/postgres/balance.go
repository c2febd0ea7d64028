package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type BalanceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewBalanceRepository(client postgres.IClient, logger *logger.Logger) balance.Repository {
	return &BalanceRepository{client: client, logger: logger}
}

type balanceRow struct {
	ID             string                          `db:"id"`
	CustomerID     string                          `db:"customer_id"`
	Amount         decimal.Decimal                 `db:"amount"`
	PricingUnit    string                          `db:"pricing_unit"`
	Description    string                          `db:"description"`
	EffectiveAt    time.Time                       `db:"effective_at"`
	ExpiresAt      *time.Time                      `db:"expires_at"`
	AdjStatus      types.BalanceAdjustmentStatus   `db:"adj_status"`
	Drawdowns      jsonColumn[[]balance.Drawdown]  `db:"drawdowns"`
	OrganizationID string                          `db:"organization_id"`
	Status         types.Status                    `db:"status"`
	CreatedAt      time.Time                       `db:"created_at"`
	UpdatedAt      time.Time                       `db:"updated_at"`
}

func (row *balanceRow) toModel() *balance.Adjustment {
	return &balance.Adjustment{
		ID:          row.ID,
		CustomerID:  row.CustomerID,
		Amount:      row.Amount,
		PricingUnit: row.PricingUnit,
		Description: row.Description,
		EffectiveAt: row.EffectiveAt,
		ExpiresAt:   row.ExpiresAt,
		AdjStatus:   row.AdjStatus,
		Drawdowns:   row.Drawdowns.V,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

func (r *BalanceRepository) Create(ctx context.Context, adj *balance.Adjustment) error {
	query := `
		INSERT INTO balance_adjustments (
			id, organization_id, customer_id, amount, pricing_unit, description,
			effective_at, expires_at, adj_status, drawdowns, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		adj.ID, adj.OrganizationID, adj.CustomerID, adj.Amount, adj.PricingUnit,
		adj.Description, adj.EffectiveAt, adj.ExpiresAt, adj.AdjStatus,
		jsonColumn[[]balance.Drawdown]{V: adj.Drawdowns},
		adj.Status, adj.CreatedAt, adj.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A balance adjustment with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create balance adjustment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *BalanceRepository) Get(ctx context.Context, id string) (*balance.Adjustment, error) {
	query := `
		SELECT * FROM balance_adjustments
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var row balanceRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Balance adjustment %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get balance adjustment").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *BalanceRepository) ListActive(ctx context.Context, customerID, currency string) ([]*balance.Adjustment, error) {
	// Soonest expiring first so credit is drawn before it lapses
	query := `
		SELECT * FROM balance_adjustments
		WHERE organization_id = $1 AND customer_id = $2 AND pricing_unit = $3
			AND adj_status = $4 AND status = $5
		ORDER BY expires_at ASC NULLS LAST, created_at ASC
	`
	return r.selectAdjustments(ctx, query,
		types.GetOrganizationID(ctx), customerID, currency,
		types.BalanceStatusActive, types.StatusActive)
}

func (r *BalanceRepository) List(ctx context.Context, customerID string) ([]*balance.Adjustment, error) {
	query := `
		SELECT * FROM balance_adjustments
		WHERE organization_id = $1 AND customer_id = $2 AND status != $3
		ORDER BY created_at DESC
	`
	return r.selectAdjustments(ctx, query,
		types.GetOrganizationID(ctx), customerID, types.StatusDeleted)
}

func (r *BalanceRepository) Update(ctx context.Context, adj *balance.Adjustment) error {
	query := `
		UPDATE balance_adjustments SET
			amount = $3, description = $4, expires_at = $5, adj_status = $6,
			drawdowns = $7, status = $8, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		adj.OrganizationID, adj.ID, adj.Amount, adj.Description,
		adj.ExpiresAt, adj.AdjStatus,
		jsonColumn[[]balance.Drawdown]{V: adj.Drawdowns}, adj.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update balance adjustment").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "balance adjustment", adj.ID)
}

func (r *BalanceRepository) ListExpired(ctx context.Context, now time.Time) ([]*balance.Adjustment, error) {
	// All tenants: the periodic driver runs the expiry sweep globally
	query := `
		SELECT * FROM balance_adjustments
		WHERE adj_status = $1 AND status = $2 AND expires_at IS NOT NULL AND expires_at < $3
	`
	return r.selectAdjustments(ctx, query,
		types.BalanceStatusActive, types.StatusActive, now)
}

func (r *BalanceRepository) selectAdjustments(ctx context.Context, query string, args ...interface{}) ([]*balance.Adjustment, error) {
	var rows []*balanceRow
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list balance adjustments").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *balanceRow, _ int) *balance.Adjustment {
		return row.toModel()
	}), nil
}
