package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type SubscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &SubscriptionRepository{client: client, logger: logger}
}

type recordRow struct {
	ID                  string                        `db:"id"`
	CustomerID          string                        `db:"customer_id"`
	BillingPlanID       string                        `db:"billing_plan_id"`
	StartDate           time.Time                     `db:"start_date"`
	EndDate             time.Time                     `db:"end_date"`
	UsageStartDate      time.Time                     `db:"usage_start_date"`
	NextBillingDate     *time.Time                    `db:"next_billing_date"`
	LastBillingDate     *time.Time                    `db:"last_billing_date"`
	AutoRenew           bool                          `db:"auto_renew"`
	IsNew               bool                          `db:"is_new"`
	FullyBilled         bool                          `db:"fully_billed"`
	FlatFeeBehavior     types.FlatFeeBehavior         `db:"flat_fee_behavior"`
	InvoiceUsageCharges bool                          `db:"invoice_usage_charges"`
	Quantity            decimal.Decimal               `db:"quantity"`
	Filters             jsonColumn[map[string]string] `db:"filters"`
	ParentID            string                        `db:"parent_id"`
	SubscriptionID      string                        `db:"subscription_id"`
	OrganizationID      string                        `db:"organization_id"`
	Status              types.Status                  `db:"status"`
	CreatedAt           time.Time                     `db:"created_at"`
	UpdatedAt           time.Time                     `db:"updated_at"`
}

func (row *recordRow) toModel() *subscription.SubscriptionRecord {
	return &subscription.SubscriptionRecord{
		ID:                  row.ID,
		CustomerID:          row.CustomerID,
		BillingPlanID:       row.BillingPlanID,
		StartDate:           row.StartDate,
		EndDate:             row.EndDate,
		UsageStartDate:      row.UsageStartDate,
		NextBillingDate:     row.NextBillingDate,
		LastBillingDate:     row.LastBillingDate,
		AutoRenew:           row.AutoRenew,
		IsNew:               row.IsNew,
		FullyBilled:         row.FullyBilled,
		FlatFeeBehavior:     row.FlatFeeBehavior,
		InvoiceUsageCharges: row.InvoiceUsageCharges,
		Quantity:            row.Quantity,
		Filters:             row.Filters.V,
		ParentID:            row.ParentID,
		SubscriptionID:      row.SubscriptionID,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

func (r *SubscriptionRepository) CreateRecord(ctx context.Context, rec *subscription.SubscriptionRecord) error {
	query := `
		INSERT INTO subscription_records (
			id, organization_id, customer_id, billing_plan_id, start_date, end_date,
			usage_start_date, next_billing_date, last_billing_date, auto_renew,
			is_new, fully_billed, flat_fee_behavior, invoice_usage_charges, quantity,
			filters, parent_id, subscription_id, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		rec.ID, rec.OrganizationID, rec.CustomerID, rec.BillingPlanID,
		rec.StartDate, rec.EndDate, rec.UsageStartDate, rec.NextBillingDate,
		rec.LastBillingDate, rec.AutoRenew, rec.IsNew, rec.FullyBilled,
		rec.FlatFeeBehavior, rec.InvoiceUsageCharges, rec.Quantity,
		jsonColumn[map[string]string]{V: rec.Filters}, rec.ParentID,
		rec.SubscriptionID, rec.BaseModel.Status, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A subscription record with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription record").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) GetRecord(ctx context.Context, id string) (*subscription.SubscriptionRecord, error) {
	query := `
		SELECT * FROM subscription_records
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var row recordRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription record %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription record").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *SubscriptionRepository) ListRecords(ctx context.Context, filter *subscription.RecordFilter) ([]*subscription.SubscriptionRecord, error) {
	query := `
		SELECT * FROM subscription_records
		WHERE organization_id = $1 AND status != $2
	`
	args := []interface{}{types.GetOrganizationID(ctx), types.StatusDeleted}

	if filter != nil {
		if filter.CustomerID != "" {
			args = append(args, filter.CustomerID)
			query += fmt.Sprintf(" AND customer_id = $%d", len(args))
		}
		if filter.BillingPlanID != "" {
			args = append(args, filter.BillingPlanID)
			query += fmt.Sprintf(" AND billing_plan_id = $%d", len(args))
		}
		if filter.ActiveAt != nil {
			args = append(args, *filter.ActiveAt)
			query += fmt.Sprintf(" AND start_date <= $%d AND end_date >= $%d", len(args), len(args))
		}
		if filter.RangeStart != nil {
			args = append(args, *filter.RangeStart)
			query += fmt.Sprintf(" AND end_date >= $%d", len(args))
		}
		if filter.RangeEnd != nil {
			args = append(args, *filter.RangeEnd)
			query += fmt.Sprintf(" AND start_date <= $%d", len(args))
		}
	}
	query += " ORDER BY start_date DESC"

	var rows []*recordRow
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscription records").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *recordRow, _ int) *subscription.SubscriptionRecord {
		return row.toModel()
	}), nil
}

func (r *SubscriptionRepository) UpdateRecord(ctx context.Context, rec *subscription.SubscriptionRecord) error {
	query := `
		UPDATE subscription_records SET
			billing_plan_id = $3, start_date = $4, end_date = $5,
			usage_start_date = $6, next_billing_date = $7, last_billing_date = $8,
			auto_renew = $9, is_new = $10, fully_billed = $11, flat_fee_behavior = $12,
			invoice_usage_charges = $13, quantity = $14, filters = $15,
			parent_id = $16, subscription_id = $17, status = $18, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		rec.OrganizationID, rec.ID, rec.BillingPlanID, rec.StartDate, rec.EndDate,
		rec.UsageStartDate, rec.NextBillingDate, rec.LastBillingDate,
		rec.AutoRenew, rec.IsNew, rec.FullyBilled, rec.FlatFeeBehavior,
		rec.InvoiceUsageCharges, rec.Quantity,
		jsonColumn[map[string]string]{V: rec.Filters},
		rec.ParentID, rec.SubscriptionID, rec.BaseModel.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription record").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "subscription record", rec.ID)
}

func (r *SubscriptionRepository) LockRecords(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	// ids are sorted so concurrent billers acquire locks in the same order
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	query := `
		SELECT id FROM subscription_records
		WHERE organization_id = $1 AND id = ANY($2)
		FOR UPDATE
	`
	rows, err := r.client.Querier(ctx).QueryxContext(ctx, query,
		types.GetOrganizationID(ctx), pq.StringArray(sorted))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to lock subscription records").
			Mark(ierr.ErrDatabase)
	}
	return rows.Close()
}

func (r *SubscriptionRepository) ListChildren(ctx context.Context, parentID string) ([]*subscription.SubscriptionRecord, error) {
	query := `
		SELECT * FROM subscription_records
		WHERE organization_id = $1 AND parent_id = $2 AND status != $3
		ORDER BY start_date DESC
	`

	var rows []*recordRow
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query,
		types.GetOrganizationID(ctx), parentID, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list add-on records").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *recordRow, _ int) *subscription.SubscriptionRecord {
		return row.toModel()
	}), nil
}

func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, organization_id, customer_id, billing_cadence, start_date, end_date,
			day_anchor, month_anchor, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		sub.ID, sub.OrganizationID, sub.CustomerID, sub.BillingCadence,
		sub.StartDate, sub.EndDate, sub.DayAnchor, sub.MonthAnchor,
		sub.Status, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A subscription with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var sub subscription.Subscription
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &sub, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetOpenSubscription(ctx context.Context, customerID string) (*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE organization_id = $1 AND customer_id = $2 AND status = $3
		ORDER BY end_date DESC
		LIMIT 1
	`

	var sub subscription.Subscription
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &sub, query,
		types.GetOrganizationID(ctx), customerID, types.StatusActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Customer %s has no open subscription", customerID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get open subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			billing_cadence = $3, start_date = $4, end_date = $5,
			day_anchor = $6, month_anchor = $7, status = $8, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		sub.OrganizationID, sub.ID, sub.BillingCadence, sub.StartDate,
		sub.EndDate, sub.DayAnchor, sub.MonthAnchor, sub.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "subscription", sub.ID)
}

func (r *SubscriptionRepository) DeleteSubscription(ctx context.Context, id string) error {
	query := `
		UPDATE subscriptions SET status = $3, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete subscription").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "subscription", id)
}

func (r *SubscriptionRepository) ListExpiredSubscriptions(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	// No organization filter: the periodic driver sweeps all tenants
	query := `
		SELECT * FROM subscriptions
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date
	`

	var subs []*subscription.Subscription
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &subs, query,
		types.StatusActive, cutoff)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list expired subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}
