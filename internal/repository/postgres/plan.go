package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type PlanRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPlanRepository(client postgres.IClient, logger *logger.Logger) plan.Repository {
	return &PlanRepository{client: client, logger: logger}
}

type planRow struct {
	ID             string             `db:"id"`
	PlanName       string             `db:"plan_name"`
	PlanDuration   types.PlanDuration `db:"plan_duration"`
	IsAddOn        bool               `db:"is_addon"`
	Tags           pq.StringArray     `db:"tags"`
	OrganizationID string             `db:"organization_id"`
	Status         types.Status       `db:"status"`
	CreatedAt      time.Time          `db:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at"`
}

func (row *planRow) toModel() *plan.Plan {
	return &plan.Plan{
		ID:           row.ID,
		PlanName:     row.PlanName,
		PlanDuration: row.PlanDuration,
		IsAddOn:      row.IsAddOn,
		Tags:         row.Tags,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

type planVersionRow struct {
	ID                string                                 `db:"id"`
	PlanID            string                                 `db:"plan_id"`
	Version           int                                    `db:"version"`
	Currency          string                                 `db:"currency"`
	Components        jsonColumn[[]plan.PlanComponent]       `db:"components"`
	RecurringCharges  jsonColumn[[]plan.RecurringCharge]     `db:"recurring_charges"`
	Features          jsonColumn[[]plan.Feature]             `db:"features"`
	PriceAdjustment   jsonColumn[*plan.PriceAdjustment]      `db:"price_adjustment"`
	DayAnchor         int                                    `db:"day_anchor"`
	MonthAnchor       int                                    `db:"month_anchor"`
	ActiveFrom        time.Time                              `db:"active_from"`
	ActiveTo          *time.Time                             `db:"active_to"`
	ReplaceWithID     string                                 `db:"replace_with_id"`
	TransitionToID    string                                 `db:"transition_to_id"`
	TargetCustomerIDs pq.StringArray                         `db:"target_customer_ids"`
	LocalizedName     string                                 `db:"localized_name"`
	AddOnSpec         jsonColumn[*plan.AddOnSpecification]   `db:"addon_spec"`
	OrganizationID    string                                 `db:"organization_id"`
	Status            types.Status                           `db:"status"`
	CreatedAt         time.Time                              `db:"created_at"`
	UpdatedAt         time.Time                              `db:"updated_at"`
}

func (row *planVersionRow) toModel() *plan.PlanVersion {
	return &plan.PlanVersion{
		ID:                row.ID,
		PlanID:            row.PlanID,
		Version:           row.Version,
		Currency:          row.Currency,
		Components:        row.Components.V,
		RecurringCharges:  row.RecurringCharges.V,
		Features:          row.Features.V,
		PriceAdjustment:   row.PriceAdjustment.V,
		DayAnchor:         row.DayAnchor,
		MonthAnchor:       row.MonthAnchor,
		ActiveFrom:        row.ActiveFrom,
		ActiveTo:          row.ActiveTo,
		ReplaceWithID:     row.ReplaceWithID,
		TransitionToID:    row.TransitionToID,
		TargetCustomerIDs: row.TargetCustomerIDs,
		LocalizedName:     row.LocalizedName,
		AddOnSpec:         row.AddOnSpec.V,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

func (r *PlanRepository) CreatePlan(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (
			id, organization_id, plan_name, plan_duration, is_addon, tags,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.OrganizationID, p.PlanName, p.PlanDuration, p.IsAddOn,
		pq.StringArray(p.Tags), p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A plan with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create plan").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *PlanRepository) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	query := `
		SELECT * FROM plans
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var row planRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Plan %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *PlanRepository) ListPlans(ctx context.Context) ([]*plan.Plan, error) {
	query := `
		SELECT * FROM plans
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	var rows []*planRow
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query,
		types.GetOrganizationID(ctx), types.StatusActive)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plans").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *planRow, _ int) *plan.Plan {
		return row.toModel()
	}), nil
}

func (r *PlanRepository) CreateVersion(ctx context.Context, v *plan.PlanVersion) error {
	query := `
		INSERT INTO plan_versions (
			id, organization_id, plan_id, version, currency, components,
			recurring_charges, features, price_adjustment, day_anchor, month_anchor,
			active_from, active_to, replace_with_id, transition_to_id,
			target_customer_ids, localized_name, addon_spec, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		v.ID, v.OrganizationID, v.PlanID, v.Version, v.Currency,
		jsonColumn[[]plan.PlanComponent]{V: v.Components},
		jsonColumn[[]plan.RecurringCharge]{V: v.RecurringCharges},
		jsonColumn[[]plan.Feature]{V: v.Features},
		jsonColumn[*plan.PriceAdjustment]{V: v.PriceAdjustment},
		v.DayAnchor, v.MonthAnchor, v.ActiveFrom, v.ActiveTo,
		v.ReplaceWithID, v.TransitionToID, pq.StringArray(v.TargetCustomerIDs),
		v.LocalizedName, jsonColumn[*plan.AddOnSpecification]{V: v.AddOnSpec},
		v.Status, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A plan version with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create plan version").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *PlanRepository) GetVersion(ctx context.Context, id string) (*plan.PlanVersion, error) {
	query := `
		SELECT * FROM plan_versions
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var row planVersionRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Plan version %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan version").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *PlanRepository) GetActiveVersion(ctx context.Context, planID string) (*plan.PlanVersion, error) {
	query := `
		SELECT * FROM plan_versions
		WHERE organization_id = $1 AND plan_id = $2 AND status = $3
			AND active_from <= now() AND (active_to IS NULL OR active_to > now())
		ORDER BY version DESC
		LIMIT 1
	`

	var row planVersionRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), planID, types.StatusActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Plan %s has no active version", planID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get active plan version").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *PlanRepository) ListVersions(ctx context.Context, planID string) ([]*plan.PlanVersion, error) {
	query := `
		SELECT * FROM plan_versions
		WHERE organization_id = $1 AND plan_id = $2 AND status != $3
		ORDER BY version DESC
	`

	var rows []*planVersionRow
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query,
		types.GetOrganizationID(ctx), planID, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plan versions").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *planVersionRow, _ int) *plan.PlanVersion {
		return row.toModel()
	}), nil
}

func (r *PlanRepository) UpdateVersion(ctx context.Context, v *plan.PlanVersion) error {
	query := `
		UPDATE plan_versions SET
			components = $3, recurring_charges = $4, features = $5,
			price_adjustment = $6, day_anchor = $7, month_anchor = $8,
			active_from = $9, active_to = $10, replace_with_id = $11,
			transition_to_id = $12, target_customer_ids = $13, localized_name = $14,
			addon_spec = $15, status = $16, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		v.OrganizationID, v.ID,
		jsonColumn[[]plan.PlanComponent]{V: v.Components},
		jsonColumn[[]plan.RecurringCharge]{V: v.RecurringCharges},
		jsonColumn[[]plan.Feature]{V: v.Features},
		jsonColumn[*plan.PriceAdjustment]{V: v.PriceAdjustment},
		v.DayAnchor, v.MonthAnchor, v.ActiveFrom, v.ActiveTo,
		v.ReplaceWithID, v.TransitionToID, pq.StringArray(v.TargetCustomerIDs),
		v.LocalizedName, jsonColumn[*plan.AddOnSpecification]{V: v.AddOnSpec}, v.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update plan version").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "plan version", v.ID)
}
