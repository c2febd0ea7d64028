package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type MetricRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewMetricRepository(client postgres.IClient, logger *logger.Logger) metric.Repository {
	return &MetricRepository{client: client, logger: logger}
}

type metricRow struct {
	ID                   string                                 `db:"id"`
	EventName            string                                 `db:"event_name"`
	PropertyName         string                                 `db:"property_name"`
	MetricType           types.MetricType                       `db:"metric_type"`
	UsageAggregation     types.AggregationType                  `db:"usage_aggregation"`
	BillableAggregation  types.AggregationType                  `db:"billable_aggregation"`
	Granularity          types.MetricGranularity                `db:"granularity"`
	EventType            types.MetricEventType                  `db:"event_type"`
	ProrationGranularity types.MetricGranularity                `db:"proration_granularity"`
	NumericFilters       jsonColumn[[]metric.NumericFilter]     `db:"numeric_filters"`
	CategoricalFilters   jsonColumn[[]metric.CategoricalFilter] `db:"categorical_filters"`
	CustomSQL            string                                 `db:"custom_sql"`
	IsCostMetric         bool                                   `db:"is_cost_metric"`
	OrganizationID       string                                 `db:"organization_id"`
	Status               types.Status                           `db:"status"`
	CreatedAt            time.Time                              `db:"created_at"`
	UpdatedAt            time.Time                              `db:"updated_at"`
}

func (row *metricRow) toModel() *metric.Metric {
	return &metric.Metric{
		ID:                   row.ID,
		EventName:            row.EventName,
		PropertyName:         row.PropertyName,
		MetricType:           row.MetricType,
		UsageAggregation:     row.UsageAggregation,
		BillableAggregation:  row.BillableAggregation,
		Granularity:          row.Granularity,
		EventType:            row.EventType,
		ProrationGranularity: row.ProrationGranularity,
		NumericFilters:       row.NumericFilters.V,
		CategoricalFilters:   row.CategoricalFilters.V,
		CustomSQL:            row.CustomSQL,
		IsCostMetric:         row.IsCostMetric,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

func (r *MetricRepository) Create(ctx context.Context, m *metric.Metric) error {
	query := `
		INSERT INTO metrics (
			id, organization_id, event_name, property_name, metric_type,
			usage_aggregation, billable_aggregation, granularity, event_type,
			proration_granularity, numeric_filters, categorical_filters,
			custom_sql, is_cost_metric, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		m.ID, m.OrganizationID, m.EventName, m.PropertyName, m.MetricType,
		m.UsageAggregation, m.BillableAggregation, m.Granularity, m.EventType,
		m.ProrationGranularity,
		jsonColumn[[]metric.NumericFilter]{V: m.NumericFilters},
		jsonColumn[[]metric.CategoricalFilter]{V: m.CategoricalFilters},
		m.CustomSQL, m.IsCostMetric, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A metric with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create metric").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *MetricRepository) Get(ctx context.Context, id string) (*metric.Metric, error) {
	query := `
		SELECT * FROM metrics
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var row metricRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Metric %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get metric").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *MetricRepository) List(ctx context.Context) ([]*metric.Metric, error) {
	query := `
		SELECT * FROM metrics
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at DESC
	`
	return r.selectMetrics(ctx, query, types.GetOrganizationID(ctx), types.StatusActive)
}

func (r *MetricRepository) ListByEventName(ctx context.Context, eventName string) ([]*metric.Metric, error) {
	query := `
		SELECT * FROM metrics
		WHERE organization_id = $1 AND status = $2 AND event_name = $3
	`
	return r.selectMetrics(ctx, query, types.GetOrganizationID(ctx), types.StatusActive, eventName)
}

func (r *MetricRepository) selectMetrics(ctx context.Context, query string, args ...interface{}) ([]*metric.Metric, error) {
	var rows []*metricRow
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list metrics").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *metricRow, _ int) *metric.Metric {
		return row.toModel()
	}), nil
}

func (r *MetricRepository) Archive(ctx context.Context, id string) error {
	query := `
		UPDATE metrics SET status = $3, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		types.GetOrganizationID(ctx), id, types.StatusArchived)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to archive metric").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "metric", id)
}
