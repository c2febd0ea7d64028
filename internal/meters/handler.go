package meters

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// DailyUsage is one day's earned usage, used for prorated gauge billing
type DailyUsage struct {
	Date  time.Time
	Value decimal.Decimal
}

// Handler computes usage for one metric. The variant is selected by the
// metric's type; all variants honor the metric's filters as an AND
// conjunction applied before aggregation.
type Handler interface {
	Metric() *metric.Metric

	// ValidateConfig re-checks the metric configuration against the
	// variant's constraints
	ValidateConfig() error

	// CurrentUsage returns usage accrued by the record since its usage
	// start date
	CurrentUsage(ctx context.Context, sr *subscription.SubscriptionRecord) (decimal.Decimal, error)

	// UsageOverWindow aggregates usage between start and end, optionally
	// bucketed by granularity and narrowed to one customer
	UsageOverWindow(ctx context.Context, start, end time.Time, granularity types.MetricGranularity, customerID string) (*events.AggregationResult, error)

	// BillableUsage returns the quantity priced by the record's component
	// over the window, using the billable aggregation
	BillableUsage(ctx context.Context, sr *subscription.SubscriptionRecord, start, end time.Time) (decimal.Decimal, error)

	// EarnedUsagePerDay splits the record's usage into per-day values for
	// proration aware billing
	EarnedUsagePerDay(ctx context.Context, sr *subscription.SubscriptionRecord) ([]DailyUsage, error)
}

// NewHandler returns the handler variant for the metric's type
func NewHandler(m *metric.Metric, repo events.Repository) (Handler, error) {
	switch m.MetricType {
	case types.MetricTypeCounter:
		return &CounterHandler{metric: m, repo: repo}, nil
	case types.MetricTypeGauge:
		return &GaugeHandler{metric: m, repo: repo}, nil
	case types.MetricTypeRate:
		return &RateHandler{metric: m, repo: repo}, nil
	}
	return nil, ierr.NewError("unknown metric type").
		WithHintf("No handler for metric type %s", m.MetricType).
		Mark(ierr.ErrValidation)
}

// foldBuckets collapses continuous aggregate rows into a single value for
// the given aggregation
func foldBuckets(buckets []*events.UsageBucket, agg types.AggregationType) decimal.Decimal {
	if len(buckets) == 0 {
		return decimal.Zero
	}

	switch agg {
	case types.AggregationCount:
		total := decimal.Zero
		for _, b := range buckets {
			total = total.Add(decimal.NewFromInt(int64(b.Count)))
		}
		return total
	case types.AggregationSum:
		total := decimal.Zero
		for _, b := range buckets {
			total = total.Add(b.Sum)
		}
		return total
	case types.AggregationMax:
		max := buckets[0].Max
		for _, b := range buckets[1:] {
			if b.Max.GreaterThan(max) {
				max = b.Max
			}
		}
		return max
	case types.AggregationMin:
		min := buckets[0].Min
		for _, b := range buckets[1:] {
			if b.Min.LessThan(min) {
				min = b.Min
			}
		}
		return min
	case types.AggregationUnique:
		total := decimal.Zero
		for _, b := range buckets {
			total = total.Add(decimal.NewFromInt(int64(b.UniqueCount)))
		}
		return total
	case types.AggregationAverage:
		sum := decimal.Zero
		count := int64(0)
		for _, b := range buckets {
			sum = sum.Add(b.Sum)
			count += int64(b.Count)
		}
		if count == 0 {
			return decimal.Zero
		}
		return sum.Div(decimal.NewFromInt(count))
	case types.AggregationLatest:
		latest := buckets[0]
		for _, b := range buckets[1:] {
			if b.LatestAt.After(latest.LatestAt) {
				latest = b
			}
		}
		return latest.LatestValue
	}
	return decimal.Zero
}

// recordBuckets reads the continuous aggregate rows backing a record's usage
func recordBuckets(ctx context.Context, repo events.Repository, m *metric.Metric, sr *subscription.SubscriptionRecord, start, end time.Time) ([]*events.UsageBucket, error) {
	fingerprint := events.FilterFingerprint(sr.Filters)
	return repo.GetBuckets(ctx, types.GetOrganizationID(ctx), m.ID, sr.CustomerID, fingerprint, start, end)
}
