package meters

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// CounterHandler aggregates event deltas: each matching event contributes
// its property value (or 1 for count) and the window value is the fold of
// those contributions.
type CounterHandler struct {
	metric *metric.Metric
	repo   events.Repository
}

func (h *CounterHandler) Metric() *metric.Metric {
	return h.metric
}

func (h *CounterHandler) ValidateConfig() error {
	return h.metric.Validate()
}

func (h *CounterHandler) CurrentUsage(ctx context.Context, sr *subscription.SubscriptionRecord) (decimal.Decimal, error) {
	now := time.Now().UTC()
	end := sr.EndDate
	if now.Before(end) {
		end = now
	}
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, sr.UsageStartDate, end)
	if err != nil {
		return decimal.Zero, err
	}
	return foldBuckets(buckets, h.metric.UsageAggregation), nil
}

func (h *CounterHandler) BillableUsage(ctx context.Context, sr *subscription.SubscriptionRecord, start, end time.Time) (decimal.Decimal, error) {
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	return foldBuckets(buckets, h.metric.GetBillableAggregation()), nil
}

func (h *CounterHandler) UsageOverWindow(ctx context.Context, start, end time.Time, granularity types.MetricGranularity, customerID string) (*events.AggregationResult, error) {
	if granularity == "" {
		granularity = h.metric.Granularity
	}
	return h.repo.GetUsage(ctx, &events.UsageParams{
		OrganizationID:  types.GetOrganizationID(ctx),
		CustomerID:      customerID,
		EventName:       h.metric.EventName,
		PropertyName:    h.metric.PropertyName,
		AggregationType: h.metric.UsageAggregation,
		Granularity:     granularity,
		StartTime:       start,
		EndTime:         end,
	})
}

func (h *CounterHandler) EarnedUsagePerDay(ctx context.Context, sr *subscription.SubscriptionRecord) ([]DailyUsage, error) {
	now := time.Now().UTC()
	end := sr.EndDate
	if now.Before(end) {
		end = now
	}
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, sr.UsageStartDate, end)
	if err != nil {
		return nil, err
	}

	// Counter usage is earned the day it happens
	byDay := map[time.Time][]*events.UsageBucket{}
	for _, b := range buckets {
		day := types.TruncateToGranularity(b.BucketStart, types.GranularityDay)
		byDay[day] = append(byDay[day], b)
	}

	out := make([]DailyUsage, 0, len(byDay))
	for day, dayBuckets := range byDay {
		out = append(out, DailyUsage{
			Date:  day,
			Value: foldBuckets(dayBuckets, h.metric.UsageAggregation),
		})
	}
	sortDailyUsage(out)
	return out, nil
}
