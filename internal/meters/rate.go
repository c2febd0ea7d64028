package meters

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// RateHandler computes a per-window inner aggregate (sum of the property,
// or count when none) and folds the windows with the metric's outer
// aggregation. Typically used to bill on peak rate.
type RateHandler struct {
	metric *metric.Metric
	repo   events.Repository
}

func (h *RateHandler) Metric() *metric.Metric {
	return h.metric
}

func (h *RateHandler) ValidateConfig() error {
	if err := h.metric.Validate(); err != nil {
		return err
	}
	if h.metric.UsageAggregation == types.AggregationUnique {
		return ierr.NewError("rate metrics disallow unique aggregation").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// bucketRates returns the inner aggregate per granularity bucket
func (h *RateHandler) bucketRates(buckets []*events.UsageBucket) []decimal.Decimal {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].BucketStart.Before(buckets[j].BucketStart)
	})

	rates := make([]decimal.Decimal, 0, len(buckets))
	for _, b := range buckets {
		if h.metric.PropertyName == "" {
			rates = append(rates, decimal.NewFromInt(int64(b.Count)))
		} else {
			rates = append(rates, b.Sum)
		}
	}
	return rates
}

func foldRates(rates []decimal.Decimal, agg types.AggregationType) decimal.Decimal {
	if len(rates) == 0 {
		return decimal.Zero
	}
	switch agg {
	case types.AggregationMax:
		max := rates[0]
		for _, r := range rates[1:] {
			if r.GreaterThan(max) {
				max = r
			}
		}
		return max
	case types.AggregationSum, types.AggregationCount:
		total := decimal.Zero
		for _, r := range rates {
			total = total.Add(r)
		}
		return total
	case types.AggregationAverage:
		total := decimal.Zero
		for _, r := range rates {
			total = total.Add(r)
		}
		return total.Div(decimal.NewFromInt(int64(len(rates))))
	}
	return decimal.Zero
}

func (h *RateHandler) CurrentUsage(ctx context.Context, sr *subscription.SubscriptionRecord) (decimal.Decimal, error) {
	now := time.Now().UTC()
	end := sr.EndDate
	if now.Before(end) {
		end = now
	}
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, sr.UsageStartDate, end)
	if err != nil {
		return decimal.Zero, err
	}
	return foldRates(h.bucketRates(buckets), h.metric.UsageAggregation), nil
}

func (h *RateHandler) BillableUsage(ctx context.Context, sr *subscription.SubscriptionRecord, start, end time.Time) (decimal.Decimal, error) {
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	return foldRates(h.bucketRates(buckets), h.metric.GetBillableAggregation()), nil
}

func (h *RateHandler) UsageOverWindow(ctx context.Context, start, end time.Time, granularity types.MetricGranularity, customerID string) (*events.AggregationResult, error) {
	if granularity == "" {
		granularity = h.metric.Granularity
	}
	agg := types.AggregationSum
	if h.metric.PropertyName == "" {
		agg = types.AggregationCount
	}
	return h.repo.GetUsage(ctx, &events.UsageParams{
		OrganizationID:  types.GetOrganizationID(ctx),
		CustomerID:      customerID,
		EventName:       h.metric.EventName,
		PropertyName:    h.metric.PropertyName,
		AggregationType: agg,
		Granularity:     granularity,
		StartTime:       start,
		EndTime:         end,
	})
}

func (h *RateHandler) EarnedUsagePerDay(ctx context.Context, sr *subscription.SubscriptionRecord) ([]DailyUsage, error) {
	now := time.Now().UTC()
	end := sr.EndDate
	if now.Before(end) {
		end = now
	}
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, sr.UsageStartDate, end)
	if err != nil {
		return nil, err
	}

	byDay := map[time.Time][]*events.UsageBucket{}
	for _, b := range buckets {
		day := types.TruncateToGranularity(b.BucketStart, types.GranularityDay)
		byDay[day] = append(byDay[day], b)
	}

	out := make([]DailyUsage, 0, len(byDay))
	for day, dayBuckets := range byDay {
		out = append(out, DailyUsage{
			Date:  day,
			Value: foldRates(h.bucketRates(dayBuckets), h.metric.UsageAggregation),
		})
	}
	sortDailyUsage(out)
	return out, nil
}
