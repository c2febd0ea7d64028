package service

import (
	"context"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/meters"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// CreateMetricParams carries the writable metric configuration
type CreateMetricParams struct {
	EventName            string
	PropertyName         string
	MetricType           types.MetricType
	UsageAggregation     types.AggregationType
	BillableAggregation  types.AggregationType
	Granularity          types.MetricGranularity
	EventType            types.MetricEventType
	ProrationGranularity types.MetricGranularity
	NumericFilters       []metric.NumericFilter
	CategoricalFilters   []metric.CategoricalFilter
	CustomSQL            string
	IsCostMetric         bool
}

type MetricService interface {
	Create(ctx context.Context, params CreateMetricParams) (*metric.Metric, error)
	Get(ctx context.Context, id string) (*metric.Metric, error)
	List(ctx context.Context) ([]*metric.Metric, error)
	// Archive removes the metric from matching without deleting its
	// aggregate history
	Archive(ctx context.Context, id string) error
}

type metricService struct {
	ServiceParams
}

func NewMetricService(params ServiceParams) MetricService {
	return &metricService{ServiceParams: params}
}

func (s *metricService) Create(ctx context.Context, params CreateMetricParams) (*metric.Metric, error) {
	m := metric.New(ctx)
	m.EventName = params.EventName
	m.PropertyName = params.PropertyName
	m.MetricType = params.MetricType
	m.UsageAggregation = params.UsageAggregation
	m.BillableAggregation = params.BillableAggregation
	m.Granularity = params.Granularity
	m.EventType = params.EventType
	m.ProrationGranularity = params.ProrationGranularity
	m.NumericFilters = params.NumericFilters
	m.CategoricalFilters = params.CategoricalFilters
	m.CustomSQL = params.CustomSQL
	m.IsCostMetric = params.IsCostMetric

	if err := m.Validate(); err != nil {
		return nil, err
	}
	// the handler variant re-checks type specific constraints
	handler, err := meters.NewHandler(m, s.EventRepo)
	if err != nil {
		return nil, err
	}
	if err := handler.ValidateConfig(); err != nil {
		return nil, err
	}

	if err := s.MetricRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.Logger.Infow("created metric",
		"metric_id", m.ID,
		"event_name", m.EventName,
		"metric_type", m.MetricType,
		"usage_aggregation", m.UsageAggregation,
	)
	return m, nil
}

func (s *metricService) Get(ctx context.Context, id string) (*metric.Metric, error) {
	return s.MetricRepo.Get(ctx, id)
}

func (s *metricService) List(ctx context.Context) ([]*metric.Metric, error) {
	return s.MetricRepo.List(ctx)
}

func (s *metricService) Archive(ctx context.Context, id string) error {
	if err := s.MetricRepo.Archive(ctx, id); err != nil {
		return err
	}
	s.Logger.Infow("archived metric", "metric_id", id)
	return nil
}
