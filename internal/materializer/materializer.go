// Package materializer consumes the durable event stream and folds events
// into the continuous aggregates that all usage reads are served from.
//
// Exactly-once effect on the aggregates is achieved by checking the durable
// idempotency record before applying an event and acking only after every
// side effect landed; redelivered messages short-circuit on the dedup check.
package materializer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type Materializer struct {
	subscriber pubsub.Subscriber
	eventRepo  events.Repository
	metricRepo metric.Repository
	subRepo    subscription.Repository
	taskQueue  taskqueue.TaskQueue
	logger     *logger.Logger

	// levels carries the running level per gauge series so delta events
	// can be resolved without re-reading the whole series
	levels   map[string]decimal.Decimal
	levelsMu sync.Mutex

	// seen tracks values observed per bucket for unique aggregation
	seen   map[string]map[string]struct{}
	seenMu sync.Mutex
}

func NewMaterializer(
	subscriber pubsub.Subscriber,
	eventRepo events.Repository,
	metricRepo metric.Repository,
	subRepo subscription.Repository,
	taskQueue taskqueue.TaskQueue,
	logger *logger.Logger,
) *Materializer {
	return &Materializer{
		subscriber: subscriber,
		eventRepo:  eventRepo,
		metricRepo: metricRepo,
		subRepo:    subRepo,
		taskQueue:  taskQueue,
		logger:     logger,
		levels:     make(map[string]decimal.Decimal),
		seen:       make(map[string]map[string]struct{}),
	}
}

// Start consumes the event stream until the context is cancelled
func (m *Materializer) Start(ctx context.Context) error {
	messages, err := m.subscriber.Subscribe(ctx, types.TopicEvents)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to subscribe to the event stream").
			Mark(ierr.ErrUpstream)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := m.ProcessMessage(ctx, msg); err != nil {
				m.logger.Errorw("failed to materialize event, requeueing",
					"message_id", msg.UUID,
					"error", err,
				)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// ProcessMessage applies one stream message to the aggregates
func (m *Materializer) ProcessMessage(ctx context.Context, msg *message.Message) error {
	var event events.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// A payload that cannot be parsed will never succeed; log and
		// swallow rather than poisoning the partition
		m.logger.Errorw("dropping unparseable event message",
			"message_id", msg.UUID,
			"error", err,
		)
		return nil
	}
	return m.processEvent(ctx, &event)
}

func (m *Materializer) processEvent(ctx context.Context, event *events.Event) error {
	ctx = types.SetOrganizationID(ctx, event.OrganizationID)

	dup, err := m.eventRepo.IsDuplicate(ctx, event.OrganizationID, event.IdempotencyID)
	if err != nil {
		return err
	}
	if dup {
		m.logger.Debugw("skipping duplicate event",
			"event_id", event.ID,
			"idempotency_id", event.IdempotencyID,
		)
		return nil
	}

	if err := m.eventRepo.InsertEvent(ctx, event); err != nil {
		return err
	}

	metrics, err := m.metricRepo.ListByEventName(ctx, event.EventName)
	if err != nil {
		return err
	}

	var matches []fpMatch
	if len(metrics) > 0 {
		matches, err = m.matchingFingerprints(ctx, event)
		if err != nil {
			return err
		}
	}

	for _, met := range metrics {
		if !met.MatchesEvent(event.EventName, event.Properties) {
			continue
		}
		for _, match := range matches {
			if err := m.applyToBucket(ctx, event, met, match); err != nil {
				return err
			}
		}
		if err := m.taskQueue.Enqueue(ctx, taskqueue.TaskUsageAlertCheck, map[string]string{
			"organization_id": event.OrganizationID,
			"customer_id":     event.CustomerID,
			"metric_id":       met.ID,
		}); err != nil {
			m.logger.Errorw("failed to enqueue alert check",
				"metric_id", met.ID,
				"error", err,
			)
		}
	}

	return m.eventRepo.AdvancePartitionMark(ctx, event.OrganizationID, event.CustomerID, event.IngestedAt)
}

// fpMatch pairs a filter fingerprint with the filter set that produced it,
// so bucket writes can scope durable lookups to the same slice of events
type fpMatch struct {
	fp      string
	filters map[string]string
}

// matchingFingerprints returns the unfiltered fingerprint plus one per
// distinct filter set among the customer's records that the event satisfies
func (m *Materializer) matchingFingerprints(ctx context.Context, event *events.Event) ([]fpMatch, error) {
	at := event.TimeCreated
	records, err := m.subRepo.ListRecords(ctx, &subscription.RecordFilter{
		CustomerID: event.CustomerID,
		ActiveAt:   &at,
	})
	if err != nil {
		return nil, err
	}

	out := []fpMatch{{fp: ""}}
	dedup := map[string]struct{}{"": {}}
	for _, rec := range records {
		if len(rec.Filters) == 0 {
			continue
		}
		if !eventSatisfiesFilters(event, rec.Filters) {
			continue
		}
		fp := events.FilterFingerprint(rec.Filters)
		if _, ok := dedup[fp]; ok {
			continue
		}
		dedup[fp] = struct{}{}
		out = append(out, fpMatch{fp: fp, filters: rec.Filters})
	}
	return out, nil
}

func eventSatisfiesFilters(event *events.Event, filters map[string]string) bool {
	for k, v := range filters {
		raw, ok := event.Properties[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", raw) != v {
			return false
		}
	}
	return true
}

func (m *Materializer) applyToBucket(ctx context.Context, event *events.Event, met *metric.Metric, match fpMatch) error {
	bucketStart := types.TruncateToGranularity(event.TimeCreated, met.Granularity)
	key := bucketKey(event.OrganizationID, met.ID, event.CustomerID, match.fp)

	value, hasValue := eventValue(event, met)
	isUnique := met.UsageAggregation == types.AggregationUnique || met.BillableAggregation == types.AggregationUnique
	raw, hasProperty := event.Properties[met.PropertyName]

	// A metric that aggregates a property has nothing to fold from an event
	// missing it; a zero-valued row would drag averages and minimums down
	if met.PropertyName != "" {
		if isUnique && !hasProperty {
			return nil
		}
		if !isUnique && !hasValue {
			return nil
		}
	}

	bucket := &events.UsageBucket{
		OrganizationID:    event.OrganizationID,
		MetricID:          met.ID,
		CustomerID:        event.CustomerID,
		FilterFingerprint: match.fp,
		BucketStart:       bucketStart,
	}

	bucket.Count = 1
	if hasValue {
		if met.MetricType == types.MetricTypeGauge && met.EventType == types.MetricEventTypeDelta {
			resolved, err := m.resolveLevel(ctx, event, met, match.fp, key, value)
			if err != nil {
				return err
			}
			value = resolved
		}
		bucket.Sum = value
		bucket.Max = value
		bucket.Min = value
		bucket.LatestValue = value
		bucket.LatestAt = event.TimeCreated
		if met.MetricType == types.MetricTypeGauge && met.EventType != types.MetricEventTypeDelta {
			m.setLevel(key, value)
		}
	}

	if isUnique && hasProperty {
		first, err := m.firstSight(ctx, event, met, match, key, bucketStart, fmt.Sprintf("%v", raw))
		if err != nil {
			return err
		}
		if first {
			bucket.UniqueCount = 1
		}
	}

	return m.eventRepo.UpsertBucket(ctx, bucket)
}

// eventValue extracts the aggregated property from the event. Count metrics
// need no property; everything else skips events missing it.
func eventValue(event *events.Event, met *metric.Metric) (decimal.Decimal, bool) {
	if met.PropertyName == "" {
		return decimal.Zero, false
	}
	raw, ok := event.Properties[met.PropertyName]
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
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// resolveLevel turns a delta into the absolute level for its series. A series
// not yet cached is reseeded from the latest materialized level, so a restart
// resumes from where the aggregates left off instead of from zero.
func (m *Materializer) resolveLevel(ctx context.Context, event *events.Event, met *metric.Metric, fingerprint, key string, delta decimal.Decimal) (decimal.Decimal, error) {
	m.levelsMu.Lock()
	defer m.levelsMu.Unlock()

	base, cached := m.levels[key]
	if !cached {
		stored, found, err := m.eventRepo.GetLatestLevel(ctx, event.OrganizationID, met.ID, event.CustomerID, fingerprint)
		if err != nil {
			return decimal.Zero, err
		}
		if found {
			base = stored
		}
	}

	level := base.Add(delta)
	m.levels[key] = level
	return level, nil
}

func (m *Materializer) setLevel(key string, level decimal.Decimal) {
	m.levelsMu.Lock()
	defer m.levelsMu.Unlock()
	m.levels[key] = level
}

// firstSight reports whether the value is new within the bucket. The in-memory
// set is only a fast path; a miss falls through to the stored events so a
// restarted process does not recount values it saw before.
func (m *Materializer) firstSight(ctx context.Context, event *events.Event, met *metric.Metric, match fpMatch, key string, bucketStart time.Time, value string) (bool, error) {
	bk := key + "|" + bucketStart.Format(time.RFC3339)
	m.seenMu.Lock()
	defer m.seenMu.Unlock()
	set, ok := m.seen[bk]
	if !ok {
		set = make(map[string]struct{})
		m.seen[bk] = set
	}
	if _, ok := set[value]; ok {
		return false, nil
	}
	set[value] = struct{}{}

	// the current event is already inserted, so exclude it from the lookback
	prior, err := m.eventRepo.HasPriorValue(ctx, &events.PriorValueParams{
		OrganizationID: event.OrganizationID,
		EventName:      event.EventName,
		CustomerID:     event.CustomerID,
		PropertyName:   met.PropertyName,
		Value:          value,
		WindowStart:    bucketStart,
		WindowEnd:      bucketStart.Add(types.GranularityDuration(met.Granularity)),
		ExcludeEventID: event.ID,
		Filters:        match.filters,
	})
	if err != nil {
		return false, err
	}
	return !prior, nil
}

func bucketKey(orgID, metricID, customerID, fingerprint string) string {
	return orgID + "|" + metricID + "|" + customerID + "|" + fingerprint
}
