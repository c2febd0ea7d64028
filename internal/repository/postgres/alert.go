package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/alert"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type AlertRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewAlertRepository(client postgres.IClient, logger *logger.Logger) alert.Repository {
	return &AlertRepository{client: client, logger: logger}
}

func (r *AlertRepository) Create(ctx context.Context, a *alert.UsageAlert) error {
	query := `
		INSERT INTO usage_alerts (
			id, organization_id, metric_id, plan_version_id, threshold,
			triggered_at, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		a.ID, a.OrganizationID, a.MetricID, a.PlanVersionID, a.Threshold,
		a.TriggeredAt, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A usage alert with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create usage alert").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *AlertRepository) ListByMetric(ctx context.Context, metricID string) ([]*alert.UsageAlert, error) {
	query := `
		SELECT * FROM usage_alerts
		WHERE organization_id = $1 AND metric_id = $2 AND status = $3
	`

	var alerts []*alert.UsageAlert
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &alerts, query,
		types.GetOrganizationID(ctx), metricID, types.StatusActive)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage alerts").
			Mark(ierr.ErrDatabase)
	}
	return alerts, nil
}

func (r *AlertRepository) Update(ctx context.Context, a *alert.UsageAlert) error {
	query := `
		UPDATE usage_alerts SET
			threshold = $3, triggered_at = $4, status = $5, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		a.OrganizationID, a.ID, a.Threshold, a.TriggeredAt, a.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update usage alert").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "usage alert", a.ID)
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE usage_alerts SET status = $3, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete usage alert").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "usage alert", id)
}
