package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// InMemoryEventStore implements events.Repository for tests. Buckets are
// folded eagerly on upsert the way the aggregating table folds at merge time.
type InMemoryEventStore struct {
	mu      sync.RWMutex
	events  map[string]*events.Event
	dedup   map[string]struct{}
	buckets map[string]*events.UsageBucket
	marks   map[string]time.Time
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events:  make(map[string]*events.Event),
		dedup:   make(map[string]struct{}),
		buckets: make(map[string]*events.UsageBucket),
		marks:   make(map[string]time.Time),
	}
}

func (s *InMemoryEventStore) InsertEvent(ctx context.Context, event *events.Event) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := event.OrganizationID + "|" + event.IdempotencyID
	if _, ok := s.dedup[key]; ok {
		return nil
	}
	s.dedup[key] = struct{}{}
	s.events[event.ID] = event
	return nil
}

func (s *InMemoryEventStore) IsDuplicate(ctx context.Context, organizationID, idempotencyID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[organizationID+"|"+idempotencyID]
	return ok, nil
}

func (s *InMemoryEventStore) UpsertBucket(ctx context.Context, bucket *events.UsageBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%s|%s|%d",
		bucket.OrganizationID, bucket.MetricID, bucket.CustomerID,
		bucket.FilterFingerprint, bucket.BucketStart.UnixNano())

	existing, ok := s.buckets[key]
	if !ok {
		cp := *bucket
		s.buckets[key] = &cp
		return nil
	}

	existing.Count += bucket.Count
	existing.Sum = existing.Sum.Add(bucket.Sum)
	existing.UniqueCount += bucket.UniqueCount
	if bucket.Max.GreaterThan(existing.Max) {
		existing.Max = bucket.Max
	}
	if bucket.Min.LessThan(existing.Min) {
		existing.Min = bucket.Min
	}
	if !bucket.LatestAt.Before(existing.LatestAt) {
		existing.LatestValue = bucket.LatestValue
		existing.LatestAt = bucket.LatestAt
	}
	return nil
}

func (s *InMemoryEventStore) GetBuckets(ctx context.Context, organizationID, metricID, customerID, fingerprint string, start, end time.Time) ([]*events.UsageBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*events.UsageBucket
	for _, b := range s.buckets {
		if b.OrganizationID != organizationID || b.MetricID != metricID ||
			b.CustomerID != customerID || b.FilterFingerprint != fingerprint {
			continue
		}
		if b.BucketStart.Before(start) || !b.BucketStart.Before(end) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BucketStart.Before(out[j].BucketStart)
	})
	return out, nil
}

func (s *InMemoryEventStore) GetLatestLevel(ctx context.Context, organizationID, metricID, customerID, fingerprint string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *events.UsageBucket
	for _, b := range s.buckets {
		if b.OrganizationID != organizationID || b.MetricID != metricID ||
			b.CustomerID != customerID || b.FilterFingerprint != fingerprint {
			continue
		}
		if latest == nil || b.LatestAt.After(latest.LatestAt) {
			latest = b
		}
	}
	if latest == nil {
		return decimal.Zero, false, nil
	}
	return latest.LatestValue, true, nil
}

func (s *InMemoryEventStore) HasPriorValue(ctx context.Context, params *events.PriorValueParams) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.OrganizationID != params.OrganizationID || e.EventName != params.EventName ||
			e.CustomerID != params.CustomerID || e.ID == params.ExcludeEventID {
			continue
		}
		if e.TimeCreated.Before(params.WindowStart) || !e.TimeCreated.Before(params.WindowEnd) {
			continue
		}
		raw, ok := e.Properties[params.PropertyName]
		if !ok || fmt.Sprintf("%v", raw) != params.Value {
			continue
		}
		match := true
		for k, v := range params.Filters {
			fraw, ok := e.Properties[k]
			if !ok || fmt.Sprintf("%v", fraw) != v {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryEventStore) GetUsage(ctx context.Context, params *events.UsageParams) (*events.AggregationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*events.Event
	for _, e := range s.events {
		if e.OrganizationID != params.OrganizationID || e.EventName != params.EventName {
			continue
		}
		if params.CustomerID != "" && e.CustomerID != params.CustomerID {
			continue
		}
		if e.TimeCreated.Before(params.StartTime) || !e.TimeCreated.Before(params.EndTime) {
			continue
		}
		if !eventMatchesFilters(e, params.Filters) {
			continue
		}
		matched = append(matched, e)
	}

	result := &events.AggregationResult{
		EventName: params.EventName,
		Type:      params.AggregationType,
	}

	if params.Granularity == "" || params.Granularity == types.GranularityTotal {
		result.Value = aggregate(matched, params.AggregationType, params.PropertyName)
		return result, nil
	}

	byWindow := make(map[time.Time][]*events.Event)
	for _, e := range matched {
		w := types.TruncateToGranularity(e.TimeCreated, params.Granularity)
		byWindow[w] = append(byWindow[w], e)
	}
	starts := make([]time.Time, 0, len(byWindow))
	for w := range byWindow {
		starts = append(starts, w)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	for _, w := range starts {
		value := aggregate(byWindow[w], params.AggregationType, params.PropertyName)
		result.Windows = append(result.Windows, events.UsageWindow{
			WindowStart: w,
			WindowEnd:   w.Add(types.GranularityDuration(params.Granularity)),
			Value:       value,
		})
		result.Value = result.Value.Add(value)
	}
	return result, nil
}

func (s *InMemoryEventStore) AdvancePartitionMark(ctx context.Context, organizationID, customerID string, mark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := organizationID + "|" + customerID
	if mark.After(s.marks[key]) {
		s.marks[key] = mark
	}
	return nil
}

func (s *InMemoryEventStore) GetPartitionMark(ctx context.Context, organizationID, customerID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[organizationID+"|"+customerID], nil
}

// EventCount returns the number of stored events, for ingest assertions
func (s *InMemoryEventStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func eventMatchesFilters(e *events.Event, filters map[string][]string) bool {
	for k, allowed := range filters {
		raw, ok := e.Properties[k]
		if !ok {
			return false
		}
		val := fmt.Sprintf("%v", raw)
		found := false
		for _, a := range allowed {
			if a == val {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func aggregate(evs []*events.Event, agg types.AggregationType, property string) decimal.Decimal {
	switch agg {
	case types.AggregationCount:
		return decimal.NewFromInt(int64(len(evs)))
	case types.AggregationSum:
		total := decimal.Zero
		for _, e := range evs {
			if v, ok := propertyValue(e, property); ok {
				total = total.Add(v)
			}
		}
		return total
	case types.AggregationMax:
		max := decimal.Zero
		first := true
		for _, e := range evs {
			if v, ok := propertyValue(e, property); ok {
				if first || v.GreaterThan(max) {
					max = v
					first = false
				}
			}
		}
		return max
	case types.AggregationMin:
		min := decimal.Zero
		first := true
		for _, e := range evs {
			if v, ok := propertyValue(e, property); ok {
				if first || v.LessThan(min) {
					min = v
					first = false
				}
			}
		}
		return min
	case types.AggregationUnique:
		seen := make(map[string]struct{})
		for _, e := range evs {
			if raw, ok := e.Properties[property]; ok {
				seen[fmt.Sprintf("%v", raw)] = struct{}{}
			}
		}
		return decimal.NewFromInt(int64(len(seen)))
	case types.AggregationAverage:
		total := decimal.Zero
		count := int64(0)
		for _, e := range evs {
			if v, ok := propertyValue(e, property); ok {
				total = total.Add(v)
				count++
			}
		}
		if count == 0 {
			return decimal.Zero
		}
		return total.Div(decimal.NewFromInt(count))
	case types.AggregationLatest:
		var latest *events.Event
		for _, e := range evs {
			if _, ok := propertyValue(e, property); !ok {
				continue
			}
			if latest == nil || e.TimeCreated.After(latest.TimeCreated) {
				latest = e
			}
		}
		if latest == nil {
			return decimal.Zero
		}
		v, _ := propertyValue(latest, property)
		return v
	}
	return decimal.Zero
}

func propertyValue(e *events.Event, property string) (decimal.Decimal, bool) {
	raw, ok := e.Properties[property]
	if !ok {
		return decimal.Zero, false
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
