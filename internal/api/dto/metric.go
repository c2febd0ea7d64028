package dto

import (
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type CreateMetricRequest struct {
	EventName            string                     `json:"event_name" validate:"required"`
	PropertyName         string                     `json:"property_name"`
	MetricType           types.MetricType           `json:"metric_type" validate:"required"`
	UsageAggregation     types.AggregationType      `json:"usage_aggregation" validate:"required"`
	BillableAggregation  types.AggregationType      `json:"billable_aggregation"`
	Granularity          types.MetricGranularity    `json:"granularity"`
	EventType            types.MetricEventType      `json:"event_type"`
	ProrationGranularity types.MetricGranularity    `json:"proration_granularity"`
	NumericFilters       []metric.NumericFilter     `json:"numeric_filters,omitempty"`
	CategoricalFilters   []metric.CategoricalFilter `json:"categorical_filters,omitempty"`
	CustomSQL            string                     `json:"custom_sql,omitempty"`
	IsCostMetric         bool                       `json:"is_cost_metric"`
}

func (r *CreateMetricRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateMetricRequest) ToParams() service.CreateMetricParams {
	return service.CreateMetricParams{
		EventName:            r.EventName,
		PropertyName:         r.PropertyName,
		MetricType:           r.MetricType,
		UsageAggregation:     r.UsageAggregation,
		BillableAggregation:  r.BillableAggregation,
		Granularity:          r.Granularity,
		EventType:            r.EventType,
		ProrationGranularity: r.ProrationGranularity,
		NumericFilters:       r.NumericFilters,
		CategoricalFilters:   r.CategoricalFilters,
		CustomSQL:            r.CustomSQL,
		IsCostMetric:         r.IsCostMetric,
	}
}
