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

// GaugeHandler treats events as level transitions. The materializer resolves
// delta events into absolute levels before bucketing, so every bucket's
// latest value is the level at that bucket's end.
type GaugeHandler struct {
	metric *metric.Metric
	repo   events.Repository
}

func (h *GaugeHandler) Metric() *metric.Metric {
	return h.metric
}

func (h *GaugeHandler) ValidateConfig() error {
	if err := h.metric.Validate(); err != nil {
		return err
	}
	switch h.metric.UsageAggregation {
	case types.AggregationMax, types.AggregationLatest, types.AggregationAverage:
		return nil
	}
	return ierr.NewError("gauge aggregation must be max, latest or average").
		WithHintf("Aggregation %s is not valid for gauge metrics", h.metric.UsageAggregation).
		Mark(ierr.ErrValidation)
}

func (h *GaugeHandler) CurrentUsage(ctx context.Context, sr *subscription.SubscriptionRecord) (decimal.Decimal, error) {
	now := time.Now().UTC()
	end := sr.EndDate
	if now.Before(end) {
		end = now
	}
	return h.usageOver(ctx, sr, sr.UsageStartDate, end, h.metric.UsageAggregation)
}

func (h *GaugeHandler) BillableUsage(ctx context.Context, sr *subscription.SubscriptionRecord, start, end time.Time) (decimal.Decimal, error) {
	return h.usageOver(ctx, sr, start, end, h.metric.GetBillableAggregation())
}

func (h *GaugeHandler) usageOver(ctx context.Context, sr *subscription.SubscriptionRecord, start, end time.Time, agg types.AggregationType) (decimal.Decimal, error) {
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	if len(buckets) == 0 {
		return decimal.Zero, nil
	}

	switch agg {
	case types.AggregationMax:
		return foldBuckets(buckets, types.AggregationMax), nil
	case types.AggregationLatest:
		return foldBuckets(buckets, types.AggregationLatest), nil
	case types.AggregationAverage:
		return h.timeWeightedAverage(buckets, start, end), nil
	}
	return decimal.Zero, ierr.NewError("unsupported gauge aggregation").
		WithHintf("Aggregation %s is not valid for gauge metrics", agg).
		Mark(ierr.ErrValidation)
}

// timeWeightedAverage integrates the level over the window, carrying the
// last known level forward between sparse buckets
func (h *GaugeHandler) timeWeightedAverage(buckets []*events.UsageBucket, start, end time.Time) decimal.Decimal {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].BucketStart.Before(buckets[j].BucketStart)
	})

	total := decimal.Zero
	windowSeconds := decimal.NewFromFloat(end.Sub(start).Seconds())
	if windowSeconds.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	for i, b := range buckets {
		segStart := b.LatestAt
		if segStart.Before(start) {
			segStart = start
		}
		segEnd := end
		if i+1 < len(buckets) {
			segEnd = buckets[i+1].LatestAt
		}
		if segEnd.Before(segStart) {
			continue
		}
		seconds := decimal.NewFromFloat(segEnd.Sub(segStart).Seconds())
		total = total.Add(b.LatestValue.Mul(seconds))
	}

	return total.Div(windowSeconds)
}

func (h *GaugeHandler) UsageOverWindow(ctx context.Context, start, end time.Time, granularity types.MetricGranularity, customerID string) (*events.AggregationResult, error) {
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

// EarnedUsagePerDay returns the level held on each day of the record's
// window, which the pricing engine prorates by the metric's proration
// granularity
func (h *GaugeHandler) EarnedUsagePerDay(ctx context.Context, sr *subscription.SubscriptionRecord) ([]DailyUsage, error) {
	now := time.Now().UTC()
	end := sr.EndDate
	if now.Before(end) {
		end = now
	}
	buckets, err := recordBuckets(ctx, h.repo, h.metric, sr, sr.UsageStartDate, end)
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		return nil, nil
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].BucketStart.Before(buckets[j].BucketStart)
	})

	out := []DailyUsage{}
	level := decimal.Zero
	idx := 0
	for day := types.TruncateToGranularity(sr.UsageStartDate, types.GranularityDay); day.Before(end); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)
		dayMax := decimal.Zero
		seen := false
		for idx < len(buckets) && buckets[idx].BucketStart.Before(dayEnd) {
			level = buckets[idx].LatestValue
			if !seen || buckets[idx].Max.GreaterThan(dayMax) {
				dayMax = buckets[idx].Max
				seen = true
			}
			idx++
		}
		value := level
		if seen && dayMax.GreaterThan(value) {
			value = dayMax
		}
		out = append(out, DailyUsage{Date: day, Value: value})
	}
	return out, nil
}
