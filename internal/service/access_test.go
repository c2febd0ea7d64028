package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type AccessServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  AccessService
	subSvc   SubscriptionService
	testData struct {
		metric  *metric.Metric
		plan    *planDomain.Plan
		version *planDomain.PlanVersion
	}
}

func TestAccessService(t *testing.T) {
	suite.Run(t, new(AccessServiceSuite))
}

func (s *AccessServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.service = NewAccessService(params)
	s.subSvc = NewSubscriptionService(params)
	s.setupTestData()
}

func (s *AccessServiceSuite) setupTestData() {
	ctx := s.GetContext()

	cust := customer.New(ctx, "cust_1", "Test Customer", "test@example.com", "usd")
	s.Require().NoError(s.GetStores().CustomerRepo.Create(ctx, cust))

	met := metric.New(ctx)
	met.EventName = "api_call"
	met.MetricType = types.MetricTypeCounter
	met.UsageAggregation = types.AggregationCount
	met.Granularity = types.GranularityDay
	s.Require().NoError(s.GetStores().MetricRepo.Create(ctx, met))
	s.testData.metric = met

	pl := &planDomain.Plan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		PlanName:     "Pro",
		PlanDuration: types.PlanDurationMonthly,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	version := &planDomain.PlanVersion{
		ID:       types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN_VERSION),
		PlanID:   pl.ID,
		Version:  1,
		Currency: "usd",
		Components: []planDomain.PlanComponent{
			{
				ID:       types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COMPONENT),
				MetricID: met.ID,
				Tiers: []planDomain.PriceTier{
					{
						RangeStart: decimal.Zero,
						RangeEnd:   lo.ToPtr(decimal.NewFromInt(100)),
						Type:       types.TierTypeFree,
					},
					{
						RangeStart:    decimal.NewFromInt(100),
						RangeEnd:      lo.ToPtr(decimal.NewFromInt(1000)),
						Type:          types.TierTypePerUnit,
						CostPerBatch:  decimal.NewFromFloat(0.01),
						UnitsPerBatch: decimal.NewFromInt(1),
					},
				},
			},
		},
		Features: []planDomain.Feature{
			{ID: "feat_sso", Name: "Single sign on"},
		},
		ActiveFrom: s.GetNow().Add(-time.Hour),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PlanRepo.CreatePlan(ctx, pl))
	s.Require().NoError(s.GetStores().PlanRepo.CreateVersion(ctx, version))
	s.testData.plan = pl
	s.testData.version = version
}

func (s *AccessServiceSuite) attach(filters map[string]string) *subscription.SubscriptionRecord {
	rec, err := s.subSvc.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
		Filters:    filters,
	})
	s.Require().NoError(err)
	return rec
}

func (s *AccessServiceSuite) seedUsage(rec *subscription.SubscriptionRecord, count uint64) {
	bucket := &events.UsageBucket{
		OrganizationID:    testutil.TestOrgID,
		MetricID:          s.testData.metric.ID,
		CustomerID:        rec.CustomerID,
		FilterFingerprint: events.FilterFingerprint(rec.Filters),
		BucketStart:       rec.UsageStartDate,
		Count:             count,
		Sum:               decimal.NewFromInt(int64(count)),
	}
	s.Require().NoError(s.GetStores().EventRepo.UpsertBucket(s.GetContext(), bucket))
}

func (s *AccessServiceSuite) TestMetricAccessNoSubscription() {
	resp, err := s.service.MetricAccess(s.GetContext(), "cust_1", s.testData.metric.ID, nil)
	s.NoError(err)
	s.False(resp.Access)
	s.Empty(resp.Records)
}

func (s *AccessServiceSuite) TestMetricAccessUnderLimit() {
	rec := s.attach(nil)
	s.seedUsage(rec, 500)

	resp, err := s.service.MetricAccess(s.GetContext(), "cust_1", s.testData.metric.ID, nil)
	s.NoError(err)
	s.True(resp.Access)
	s.Require().Len(resp.Records, 1)
	s.Equal(rec.ID, resp.Records[0].SubscriptionRecordID)
	s.True(resp.Records[0].MetricUsage.Equal(decimal.NewFromInt(500)))
	s.True(resp.Records[0].MetricFreeLimit.Equal(decimal.NewFromInt(100)))
	s.Require().NotNil(resp.Records[0].MetricTotalLimit)
	s.True(resp.Records[0].MetricTotalLimit.Equal(decimal.NewFromInt(1000)))
}

func (s *AccessServiceSuite) TestMetricAccessAtLimit() {
	rec := s.attach(nil)
	s.seedUsage(rec, 1000)

	resp, err := s.service.MetricAccess(s.GetContext(), "cust_1", s.testData.metric.ID, nil)
	s.NoError(err)
	s.False(resp.Access, "usage at the cap denies access")
	s.Require().Len(resp.Records, 1)
	s.False(resp.Records[0].Access)
}

func (s *AccessServiceSuite) TestMetricAccessUnboundedComponent() {
	s.testData.version.Components[0].Tiers[1].RangeEnd = nil
	s.Require().NoError(s.GetStores().PlanRepo.UpdateVersion(s.GetContext(), s.testData.version))

	rec := s.attach(nil)
	s.seedUsage(rec, 1000000)

	resp, err := s.service.MetricAccess(s.GetContext(), "cust_1", s.testData.metric.ID, nil)
	s.NoError(err)
	s.True(resp.Access, "no total limit means unconditional access")
	s.Require().Len(resp.Records, 1)
	s.Nil(resp.Records[0].MetricTotalLimit)
}

func (s *AccessServiceSuite) TestMetricAccessFilters() {
	s.attach(map[string]string{"region": "us"})

	resp, err := s.service.MetricAccess(s.GetContext(), "cust_1", s.testData.metric.ID, map[string]string{"region": "us"})
	s.NoError(err)
	s.True(resp.Access)

	resp, err = s.service.MetricAccess(s.GetContext(), "cust_1", s.testData.metric.ID, map[string]string{"region": "eu"})
	s.NoError(err)
	s.False(resp.Access, "a record scoped to another region does not answer")
}

func (s *AccessServiceSuite) TestMetricAccessNoComponent() {
	other := metric.New(s.GetContext())
	other.EventName = "export"
	other.MetricType = types.MetricTypeCounter
	other.UsageAggregation = types.AggregationCount
	other.Granularity = types.GranularityDay
	s.Require().NoError(s.GetStores().MetricRepo.Create(s.GetContext(), other))

	s.attach(nil)

	resp, err := s.service.MetricAccess(s.GetContext(), "cust_1", other.ID, nil)
	s.NoError(err)
	s.False(resp.Access, "plans without a component for the metric deny access")
	s.Empty(resp.Records)
}

func (s *AccessServiceSuite) TestMetricAccessUnknownMetric() {
	_, err := s.service.MetricAccess(s.GetContext(), "cust_1", "metric_missing", nil)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *AccessServiceSuite) TestFeatureAccess() {
	s.attach(nil)

	resp, err := s.service.FeatureAccess(s.GetContext(), "cust_1", "feat_sso", nil)
	s.NoError(err)
	s.True(resp.Access)

	resp, err = s.service.FeatureAccess(s.GetContext(), "cust_1", "feat_missing", nil)
	s.NoError(err)
	s.False(resp.Access)
}

func (s *AccessServiceSuite) TestFeatureAccessNoSubscription() {
	resp, err := s.service.FeatureAccess(s.GetContext(), "cust_1", "feat_sso", nil)
	s.NoError(err)
	s.False(resp.Access)
}
