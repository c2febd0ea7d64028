package metric

import (
	"context"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Metric configures how raw events roll up into billable usage. Multiple
// metrics may track the same event name with different filters and
// aggregations.
type Metric struct {
	ID string `db:"id" json:"metric_id"`

	// EventName is the matching field against incoming events
	EventName string `db:"event_name" json:"event_name"`

	// PropertyName is the event property the aggregation applies to. Not
	// required for count.
	PropertyName string `db:"property_name" json:"property_name,omitempty"`

	MetricType types.MetricType `db:"metric_type" json:"metric_type"`

	UsageAggregation types.AggregationType `db:"usage_aggregation" json:"usage_aggregation"`

	// BillableAggregation may differ from UsageAggregation, ex sum minutes
	// for display but bill the max in period. Empty means same as usage.
	BillableAggregation types.AggregationType `db:"billable_aggregation" json:"billable_aggregation,omitempty"`

	Granularity types.MetricGranularity `db:"granularity" json:"granularity"`

	// EventType applies to gauge metrics: total level or delta
	EventType types.MetricEventType `db:"event_type" json:"event_type,omitempty"`

	// ProrationGranularity is obeyed by gauge handlers when computing
	// billable units
	ProrationGranularity types.MetricGranularity `db:"proration_granularity" json:"proration_granularity,omitempty"`

	NumericFilters     []NumericFilter     `db:"numeric_filters" json:"numeric_filters,omitempty"`
	CategoricalFilters []CategoricalFilter `db:"categorical_filters" json:"categorical_filters,omitempty"`

	// CustomSQL is an escape hatch for tenants with bespoke aggregation
	CustomSQL string `db:"custom_sql" json:"custom_sql,omitempty"`

	IsCostMetric bool `db:"is_cost_metric" json:"is_cost_metric"`

	types.BaseModel
}

type NumericFilterOperator string

const (
	NumericGT  NumericFilterOperator = "gt"
	NumericGTE NumericFilterOperator = "gte"
	NumericLT  NumericFilterOperator = "lt"
	NumericLTE NumericFilterOperator = "lte"
	NumericEQ  NumericFilterOperator = "eq"
)

// NumericFilter keeps only events whose property compares true
type NumericFilter struct {
	PropertyName string                `json:"property_name"`
	Operator     NumericFilterOperator `json:"operator"`
	Value        float64               `json:"comparison_value"`
}

type CategoricalFilterOperator string

const (
	CategoricalIsIn    CategoricalFilterOperator = "isin"
	CategoricalIsNotIn CategoricalFilterOperator = "isnotin"
)

// CategoricalFilter keeps only events whose property is (not) in the list
type CategoricalFilter struct {
	PropertyName string                    `json:"property_name"`
	Operator     CategoricalFilterOperator `json:"operator"`
	Values       []string                  `json:"comparison_value"`
}

// New constructs a metric scoped to the organization in the context
func New(ctx context.Context) *Metric {
	return &Metric{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_METRIC),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

// Validate enforces the (metric_type, aggregation) matrix and field
// requirements
func (m *Metric) Validate() error {
	if m.EventName == "" {
		return ierr.NewError("event_name is required").
			WithHint("Metric is missing event_name").
			Mark(ierr.ErrValidation)
	}
	if !m.MetricType.Validate() {
		return ierr.NewError("invalid metric type").
			WithHintf("Unknown metric type %s", m.MetricType).
			Mark(ierr.ErrValidation)
	}
	if !types.IsAggregationAllowed(m.MetricType, m.UsageAggregation) {
		return ierr.NewError("aggregation not allowed for metric type").
			WithHintf("Aggregation %s is not allowed for %s metrics", m.UsageAggregation, m.MetricType).
			Mark(ierr.ErrValidation)
	}
	if m.BillableAggregation != "" && !types.IsAggregationAllowed(m.MetricType, m.BillableAggregation) {
		return ierr.NewError("billable aggregation not allowed for metric type").
			WithHintf("Aggregation %s is not allowed for %s metrics", m.BillableAggregation, m.MetricType).
			Mark(ierr.ErrValidation)
	}
	if !m.Granularity.Validate() {
		return ierr.NewError("invalid granularity").
			WithHintf("Unknown granularity %s", m.Granularity).
			Mark(ierr.ErrValidation)
	}
	if m.PropertyName == "" && m.UsageAggregation != types.AggregationCount {
		return ierr.NewError("property_name is required").
			WithHintf("Aggregation %s requires a property_name", m.UsageAggregation).
			Mark(ierr.ErrValidation)
	}
	if m.MetricType == types.MetricTypeGauge && !m.EventType.Validate() {
		return ierr.NewError("invalid event type").
			WithHint("Gauge metrics require event_type total or delta").
			Mark(ierr.ErrValidation)
	}
	if m.MetricType == types.MetricTypeRate && m.Granularity == types.GranularityTotal {
		return ierr.NewError("rate metrics require a bounded granularity").
			WithHint("Rate metrics cannot use granularity total").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetBillableAggregation falls back to the usage aggregation
func (m *Metric) GetBillableAggregation() types.AggregationType {
	if m.BillableAggregation != "" {
		return m.BillableAggregation
	}
	return m.UsageAggregation
}
