package alert

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// UsageAlert fires when a subscription's usage of a metric crosses the
// threshold. Delivery is delegated to the webhook collaborator; the engine
// only records the trigger and publishes a task.
type UsageAlert struct {
	ID string `db:"id" json:"usage_alert_id"`

	MetricID string `db:"metric_id" json:"metric_id"`

	PlanVersionID string `db:"plan_version_id" json:"plan_version_id"`

	Threshold decimal.Decimal `db:"threshold" json:"threshold"`

	TriggeredAt *time.Time `db:"triggered_at" json:"triggered_at,omitempty"`

	types.BaseModel
}

func New(ctx context.Context, metricID, planVersionID string, threshold decimal.Decimal) *UsageAlert {
	return &UsageAlert{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_ALERT),
		MetricID:      metricID,
		PlanVersionID: planVersionID,
		Threshold:     threshold,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

type Repository interface {
	Create(ctx context.Context, alert *UsageAlert) error
	ListByMetric(ctx context.Context, metricID string) ([]*UsageAlert, error)
	Update(ctx context.Context, alert *UsageAlert) error
	Delete(ctx context.Context, id string) error
}
