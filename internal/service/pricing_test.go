package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type PricingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PricingService
}

func TestPricingService(t *testing.T) {
	suite.Run(t, new(PricingServiceSuite))
}

func (s *PricingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPricingService(newTestParams(&s.BaseServiceTestSuite))
}

// threeTierComponent prices: 0-100 free, 100-1000 at 0.01/unit, 1000+ at
// 0.005/unit
func threeTierComponent() *plan.PlanComponent {
	return &plan.PlanComponent{
		ID:       "cmp_tiers",
		MetricID: "metric_api_calls",
		Tiers: []plan.PriceTier{
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
			{
				RangeStart:    decimal.NewFromInt(1000),
				Type:          types.TierTypePerUnit,
				CostPerBatch:  decimal.NewFromFloat(0.005),
				UnitsPerBatch: decimal.NewFromInt(1),
			},
		},
	}
}

func (s *PricingServiceSuite) TestTierRevenueGraduated() {
	testCases := []struct {
		name     string
		quantity decimal.Decimal
		expected decimal.Decimal
	}{
		{"zero_quantity", decimal.Zero, decimal.Zero},
		{"inside_free_tier", decimal.NewFromInt(80), decimal.Zero},
		{"at_free_boundary", decimal.NewFromInt(100), decimal.Zero},
		{"middle_tier", decimal.NewFromInt(500), decimal.NewFromInt(4)},
		{"spans_all_tiers", decimal.NewFromInt(2000), decimal.NewFromInt(14)},
		{"negative_clamped_to_zero", decimal.NewFromInt(-5), decimal.Zero},
	}

	component := threeTierComponent()
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			got, err := s.service.TierRevenue(component, tc.quantity)
			s.NoError(err)
			s.True(tc.expected.Equal(got), "expected %s got %s", tc.expected, got)
		})
	}
}

func (s *PricingServiceSuite) TestTierRevenueNoTiers() {
	_, err := s.service.TierRevenue(&plan.PlanComponent{ID: "cmp_empty"}, decimal.NewFromInt(10))
	s.Error(err)
}

func (s *PricingServiceSuite) TestTierRevenueFlatTier() {
	component := &plan.PlanComponent{
		ID: "cmp_flat",
		Tiers: []plan.PriceTier{
			{
				RangeStart:   decimal.Zero,
				RangeEnd:     lo.ToPtr(decimal.NewFromInt(1000)),
				Type:         types.TierTypeFlat,
				CostPerBatch: decimal.NewFromInt(25),
			},
		},
	}

	got, err := s.service.TierRevenue(component, decimal.NewFromInt(1))
	s.NoError(err)
	s.True(decimal.NewFromInt(25).Equal(got))

	got, err = s.service.TierRevenue(component, decimal.NewFromInt(999))
	s.NoError(err)
	s.True(decimal.NewFromInt(25).Equal(got), "flat tier does not scale with quantity")
}

func (s *PricingServiceSuite) TestTierRevenueBatchRounding() {
	component := func(rounding types.RoundingMode) *plan.PlanComponent {
		return &plan.PlanComponent{
			ID: "cmp_batch",
			Tiers: []plan.PriceTier{
				{
					RangeStart:    decimal.Zero,
					Type:          types.TierTypePerUnit,
					CostPerBatch:  decimal.NewFromInt(1),
					UnitsPerBatch: decimal.NewFromInt(100),
					Rounding:      rounding,
				},
			},
		}
	}

	testCases := []struct {
		name     string
		rounding types.RoundingMode
		quantity decimal.Decimal
		expected decimal.Decimal
	}{
		{"round_up", types.RoundingUp, decimal.NewFromInt(250), decimal.NewFromInt(3)},
		{"round_down", types.RoundingDown, decimal.NewFromInt(250), decimal.NewFromInt(2)},
		{"round_nearest", types.RoundingNearest, decimal.NewFromInt(250), decimal.NewFromInt(3)},
		{"no_rounding", types.RoundingNone, decimal.NewFromInt(250), decimal.NewFromFloat(2.5)},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			got, err := s.service.TierRevenue(component(tc.rounding), tc.quantity)
			s.NoError(err)
			s.True(tc.expected.Equal(got), "expected %s got %s", tc.expected, got)
		})
	}
}

func (s *PricingServiceSuite) TestTierRevenueBulkPricing() {
	component := threeTierComponent()
	component.BulkPricingEnabled = true

	// the whole quantity is priced by the single tier containing it
	got, err := s.service.TierRevenue(component, decimal.NewFromInt(500))
	s.NoError(err)
	s.True(decimal.NewFromInt(5).Equal(got), "expected 5 got %s", got)

	got, err = s.service.TierRevenue(component, decimal.NewFromInt(50))
	s.NoError(err)
	s.True(got.IsZero(), "bulk quantity inside the free tier costs nothing")

	got, err = s.service.TierRevenue(component, decimal.NewFromInt(2000))
	s.NoError(err)
	s.True(decimal.NewFromInt(10).Equal(got), "expected 10 got %s", got)
}

func (s *PricingServiceSuite) TestRecurringAmountDue() {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	charge := &plan.RecurringCharge{
		ID:             "rc_base",
		Name:           "Base fee",
		ChargeTiming:   types.ChargeTimingInAdvance,
		ChargeBehavior: types.ChargeBehaviorChargeFull,
		Amount:         decimal.NewFromInt(30),
	}

	rec := &subscription.SubscriptionRecord{
		ID:        "sr_full",
		StartDate: start,
		EndDate:   end,
		Quantity:  decimal.NewFromInt(1),
	}

	s.Run("charge_full_ignores_partial_coverage", func() {
		partial := *rec
		partial.StartDate = start.AddDate(0, 0, 15)
		got := s.service.RecurringAmountDue(charge, &partial, start, end)
		s.True(decimal.NewFromInt(30).Equal(got))
	})

	s.Run("prorate_full_period", func() {
		prorated := *charge
		prorated.ChargeBehavior = types.ChargeBehaviorProrate
		got := s.service.RecurringAmountDue(&prorated, rec, start, end)
		s.True(decimal.NewFromInt(30).Equal(got))
	})

	s.Run("prorate_half_period", func() {
		prorated := *charge
		prorated.ChargeBehavior = types.ChargeBehaviorProrate
		partial := *rec
		partial.StartDate = time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
		got := s.service.RecurringAmountDue(&prorated, &partial, start, end)
		expected := decimal.NewFromInt(15)
		s.True(expected.Equal(got), "expected %s got %s", expected, got)
	})

	s.Run("prorate_ratio_is_exact", func() {
		// 15 covered days of a 31 day period must come out as the exact
		// decimal quotient, with no binary float noise in the digits
		prorated := *charge
		prorated.ChargeBehavior = types.ChargeBehaviorProrate
		partial := *rec
		partial.StartDate = time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
		partial.EndDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		got := s.service.RecurringAmountDue(&prorated, &partial, start, partial.EndDate)
		expected := decimal.NewFromInt(30).
			Mul(decimal.NewFromInt(15)).
			Div(decimal.NewFromInt(31))
		s.True(expected.Equal(got), "expected %s got %s", expected, got)
	})

	s.Run("quantity_multiplies", func() {
		multi := *rec
		multi.Quantity = decimal.NewFromInt(3)
		got := s.service.RecurringAmountDue(charge, &multi, start, end)
		s.True(decimal.NewFromInt(90).Equal(got))
	})

	s.Run("zero_length_period", func() {
		prorated := *charge
		prorated.ChargeBehavior = types.ChargeBehaviorProrate
		got := s.service.RecurringAmountDue(&prorated, rec, start, start)
		s.True(got.IsZero())
	})
}

func (s *PricingServiceSuite) TestAdjustmentAmount() {
	testCases := []struct {
		name           string
		adj            *plan.PriceAdjustment
		total          decimal.Decimal
		alreadyApplied decimal.Decimal
		expected       decimal.Decimal
	}{
		{
			name:     "nil_adjustment",
			adj:      nil,
			total:    decimal.NewFromInt(100),
			expected: decimal.Zero,
		},
		{
			name:     "percentage_discount",
			adj:      &plan.PriceAdjustment{Type: types.PriceAdjustmentPercentage, Amount: decimal.NewFromInt(-10)},
			total:    decimal.NewFromInt(100),
			expected: decimal.NewFromInt(-10),
		},
		{
			name:           "fixed_nets_already_applied",
			adj:            &plan.PriceAdjustment{Type: types.PriceAdjustmentFixed, Amount: decimal.NewFromInt(50)},
			total:          decimal.NewFromInt(100),
			alreadyApplied: decimal.NewFromInt(20),
			expected:       decimal.NewFromInt(30),
		},
		{
			name:     "override_below_total",
			adj:      &plan.PriceAdjustment{Type: types.PriceAdjustmentPriceOverride, Amount: decimal.NewFromInt(80)},
			total:    decimal.NewFromInt(100),
			expected: decimal.NewFromInt(-20),
		},
		{
			name:           "override_nets_already_applied",
			adj:            &plan.PriceAdjustment{Type: types.PriceAdjustmentPriceOverride, Amount: decimal.NewFromInt(80)},
			total:          decimal.NewFromInt(100),
			alreadyApplied: decimal.NewFromInt(-20),
			expected:       decimal.Zero,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			got := s.service.AdjustmentAmount(tc.adj, tc.total, tc.alreadyApplied)
			s.True(tc.expected.Equal(got), "expected %s got %s", tc.expected, got)
		})
	}
}
