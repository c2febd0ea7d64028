package materializer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type MaterializerSuite struct {
	suite.Suite
	ctx        context.Context
	eventRepo  *testutil.InMemoryEventStore
	metricRepo *testutil.InMemoryMetricStore
	subRepo    *testutil.InMemorySubscriptionStore
	queue      *taskqueue.InProcessQueue
	m          *Materializer

	alertChecks []json.RawMessage
}

func TestMaterializer(t *testing.T) {
	suite.Run(t, new(MaterializerSuite))
}

func (s *MaterializerSuite) SetupTest() {
	s.ctx = testutil.SetupContext()
	s.eventRepo = testutil.NewInMemoryEventStore()
	s.metricRepo = testutil.NewInMemoryMetricStore()
	s.subRepo = testutil.NewInMemorySubscriptionStore()
	s.queue = taskqueue.NewInProcessQueue()

	s.alertChecks = nil
	s.queue.Register(taskqueue.TaskUsageAlertCheck, func(ctx context.Context, payload json.RawMessage) error {
		s.alertChecks = append(s.alertChecks, payload)
		return nil
	})

	log, err := logger.NewLogger("debug")
	s.Require().NoError(err)

	s.m = NewMaterializer(nil, s.eventRepo, s.metricRepo, s.subRepo, s.queue, log)
}

func (s *MaterializerSuite) createMetric(mutate func(*metric.Metric)) *metric.Metric {
	met := metric.New(s.ctx)
	met.EventName = "api_call"
	met.MetricType = types.MetricTypeCounter
	met.UsageAggregation = types.AggregationCount
	met.Granularity = types.GranularityDay
	if mutate != nil {
		mutate(met)
	}
	s.Require().NoError(s.metricRepo.Create(s.ctx, met))
	return met
}

func (s *MaterializerSuite) process(event *events.Event) {
	payload, err := json.Marshal(event)
	s.Require().NoError(err)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	s.Require().NoError(s.m.ProcessMessage(s.ctx, msg))
}

func (s *MaterializerSuite) buckets(met *metric.Metric, customerID, fingerprint string, around time.Time) []*events.UsageBucket {
	buckets, err := s.eventRepo.GetBuckets(s.ctx, testutil.TestOrgID, met.ID, customerID, fingerprint,
		around.Add(-48*time.Hour), around.Add(48*time.Hour))
	s.Require().NoError(err)
	return buckets
}

func (s *MaterializerSuite) TestCounterEvents() {
	met := s.createMetric(nil)
	at := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "api_call",
			watermill.NewUUID(), nil, at))
	}

	s.Equal(3, s.eventRepo.EventCount())

	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.Equal(uint64(3), buckets[0].Count)
	s.Equal(types.TruncateToGranularity(at, types.GranularityDay), buckets[0].BucketStart)
}

func (s *MaterializerSuite) TestDuplicateEventsFoldOnce() {
	met := s.createMetric(nil)
	at := time.Now().UTC().Add(-time.Hour)

	event := events.NewEvent(testutil.TestOrgID, "cust_1", "api_call", "evt-dup", nil, at)
	s.process(event)
	s.process(event)

	s.Equal(1, s.eventRepo.EventCount())
	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.Equal(uint64(1), buckets[0].Count)
}

func (s *MaterializerSuite) TestFilteredSeries() {
	met := s.createMetric(nil)
	at := time.Now().UTC().Add(-time.Hour)

	// an active record scoped to region=us adds a second series
	rec := subscription.NewRecord(s.ctx, "cust_1", "plan_version_x",
		at.Add(-time.Hour), at.Add(30*24*time.Hour))
	rec.SubscriptionID = "sub_x"
	rec.Filters = map[string]string{"region": "us"}
	s.Require().NoError(s.subRepo.CreateRecord(s.ctx, rec))

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "api_call", "evt-us",
		map[string]interface{}{"region": "us"}, at))
	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "api_call", "evt-eu",
		map[string]interface{}{"region": "eu"}, at))

	unfiltered := s.buckets(met, "cust_1", "", at)
	s.Require().Len(unfiltered, 1)
	s.Equal(uint64(2), unfiltered[0].Count, "every event lands in the unfiltered series")

	filtered := s.buckets(met, "cust_1", events.FilterFingerprint(rec.Filters), at)
	s.Require().Len(filtered, 1)
	s.Equal(uint64(1), filtered[0].Count, "only matching events land in the filtered series")
}

func (s *MaterializerSuite) TestGaugeDeltaResolution() {
	met := s.createMetric(func(m *metric.Metric) {
		m.EventName = "seats"
		m.MetricType = types.MetricTypeGauge
		m.UsageAggregation = types.AggregationMax
		m.EventType = types.MetricEventTypeDelta
		m.PropertyName = "count"
	})
	at := time.Now().UTC().Add(-time.Hour)

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "seats", "evt-d1",
		map[string]interface{}{"count": 5.0}, at))
	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "seats", "evt-d2",
		map[string]interface{}{"count": 3.0}, at.Add(time.Minute)))
	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "seats", "evt-d3",
		map[string]interface{}{"count": -2.0}, at.Add(2*time.Minute)))

	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.True(buckets[0].Max.Equal(decimal.NewFromInt(8)), "the running level peaks at 8, got %s", buckets[0].Max)
	s.True(buckets[0].LatestValue.Equal(decimal.NewFromInt(6)), "got %s", buckets[0].LatestValue)
}

func (s *MaterializerSuite) TestUniqueAggregation() {
	met := s.createMetric(func(m *metric.Metric) {
		m.EventName = "login"
		m.UsageAggregation = types.AggregationUnique
		m.PropertyName = "user_id"
	})
	at := time.Now().UTC().Add(-time.Hour)

	for i, user := range []string{"u1", "u1", "u2"} {
		s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "login",
			watermill.NewUUID(), map[string]interface{}{"user_id": user}, at.Add(time.Duration(i)*time.Second)))
	}

	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.Equal(uint64(2), buckets[0].UniqueCount)
}

// restart restarts the consumer: a fresh instance over the same durable
// stores, with none of the previous instance's in-process caches
func (s *MaterializerSuite) restart() {
	log, err := logger.NewLogger("debug")
	s.Require().NoError(err)
	s.m = NewMaterializer(nil, s.eventRepo, s.metricRepo, s.subRepo, s.queue, log)
}

func (s *MaterializerSuite) TestGaugeDeltaSurvivesRestart() {
	met := s.createMetric(func(m *metric.Metric) {
		m.EventName = "seats"
		m.MetricType = types.MetricTypeGauge
		m.UsageAggregation = types.AggregationMax
		m.EventType = types.MetricEventTypeDelta
		m.PropertyName = "count"
	})
	at := time.Now().UTC().Add(-time.Hour)

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "seats", "evt-r1",
		map[string]interface{}{"count": 5.0}, at))

	s.restart()

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "seats", "evt-r2",
		map[string]interface{}{"count": 3.0}, at.Add(time.Minute)))

	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.True(buckets[0].LatestValue.Equal(decimal.NewFromInt(8)),
		"the level resumes from the materialized 5, got %s", buckets[0].LatestValue)
}

func (s *MaterializerSuite) TestUniqueValuesNotRecountedAfterRestart() {
	met := s.createMetric(func(m *metric.Metric) {
		m.EventName = "login"
		m.UsageAggregation = types.AggregationUnique
		m.PropertyName = "user_id"
	})
	at := time.Now().UTC().Add(-time.Hour)

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "login", "evt-u1",
		map[string]interface{}{"user_id": "u1"}, at))

	s.restart()

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "login", "evt-u2",
		map[string]interface{}{"user_id": "u1"}, at.Add(time.Minute)))
	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "login", "evt-u3",
		map[string]interface{}{"user_id": "u2"}, at.Add(2*time.Minute)))

	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.Equal(uint64(2), buckets[0].UniqueCount,
		"u1 was already counted before the restart")
}

func (s *MaterializerSuite) TestEventsMissingThePropertyDoNotSkewValues() {
	met := s.createMetric(func(m *metric.Metric) {
		m.EventName = "transfer"
		m.UsageAggregation = types.AggregationAverage
		m.PropertyName = "bytes"
	})
	at := time.Now().UTC().Add(-time.Hour)

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "transfer", "evt-v1",
		map[string]interface{}{"bytes": 100.0}, at))
	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "transfer", "evt-v2",
		nil, at.Add(time.Minute)))
	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "transfer", "evt-v3",
		map[string]interface{}{"bytes": 200.0}, at.Add(2*time.Minute)))

	s.Equal(3, s.eventRepo.EventCount(), "the bare event is still stored durably")

	buckets := s.buckets(met, "cust_1", "", at)
	s.Require().Len(buckets, 1)
	s.Equal(uint64(2), buckets[0].Count, "only events carrying the property fold in")
	s.True(buckets[0].Sum.Equal(decimal.NewFromInt(300)), "got %s", buckets[0].Sum)
	s.True(buckets[0].Min.Equal(decimal.NewFromInt(100)),
		"the bare event must not pull the minimum to zero, got %s", buckets[0].Min)
}

func (s *MaterializerSuite) TestMetricPropertyFilters() {
	s.createMetric(func(m *metric.Metric) {
		m.CategoricalFilters = []metric.CategoricalFilter{
			{PropertyName: "tier", Operator: metric.CategoricalIsIn, Values: []string{"premium"}},
		}
	})
	at := time.Now().UTC().Add(-time.Hour)

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "api_call", "evt-basic",
		map[string]interface{}{"tier": "basic"}, at))

	s.Equal(1, s.eventRepo.EventCount(), "non-matching events are still stored durably")
	s.Empty(s.alertChecks, "no metric matched, no alert check")
}

func (s *MaterializerSuite) TestAlertCheckEnqueued() {
	met := s.createMetric(nil)
	at := time.Now().UTC().Add(-time.Hour)

	s.process(events.NewEvent(testutil.TestOrgID, "cust_1", "api_call", "evt-1", nil, at))

	s.Require().Len(s.alertChecks, 1)
	var check map[string]string
	s.Require().NoError(json.Unmarshal(s.alertChecks[0], &check))
	s.Equal(met.ID, check["metric_id"])
	s.Equal("cust_1", check["customer_id"])
	s.Equal(testutil.TestOrgID, check["organization_id"])
}

func (s *MaterializerSuite) TestPartitionMarkAdvances() {
	s.createMetric(nil)
	at := time.Now().UTC().Add(-time.Hour)

	event := events.NewEvent(testutil.TestOrgID, "cust_1", "api_call", "evt-1", nil, at)
	s.process(event)

	mark, err := s.eventRepo.GetPartitionMark(s.ctx, testutil.TestOrgID, "cust_1")
	s.NoError(err)
	s.True(mark.Equal(event.IngestedAt))
}

func (s *MaterializerSuite) TestUnparseablePayloadDropped() {
	s.createMetric(nil)

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	s.NoError(s.m.ProcessMessage(s.ctx, msg), "poison messages are logged and dropped")
	s.Equal(0, s.eventRepo.EventCount())
}
