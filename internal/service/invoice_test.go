package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  InvoiceService
	subSvc   SubscriptionService
	testData struct {
		customer *customer.Customer
		metric   *metric.Metric
		plan     *planDomain.Plan
		version  *planDomain.PlanVersion
	}
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.service = NewInvoiceService(params)
	s.subSvc = NewSubscriptionService(params)
	s.setupTestData()
}

func (s *InvoiceServiceSuite) setupTestData() {
	ctx := s.GetContext()

	s.testData.customer = customer.New(ctx, "cust_1", "Test Customer", "test@example.com", "usd")
	s.Require().NoError(s.GetStores().CustomerRepo.Create(ctx, s.testData.customer))

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
						Type:          types.TierTypePerUnit,
						CostPerBatch:  decimal.NewFromFloat(0.01),
						UnitsPerBatch: decimal.NewFromInt(1),
					},
				},
			},
		},
		RecurringCharges: []planDomain.RecurringCharge{
			{
				ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_CHARGE),
				Name:           "Base fee",
				ChargeTiming:   types.ChargeTimingInAdvance,
				ChargeBehavior: types.ChargeBehaviorChargeFull,
				Amount:         decimal.NewFromInt(30),
				Currency:       "usd",
			},
		},
		ActiveFrom: s.GetNow().Add(-time.Hour),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PlanRepo.CreatePlan(ctx, pl))
	s.Require().NoError(s.GetStores().PlanRepo.CreateVersion(ctx, version))
	s.testData.plan = pl
	s.testData.version = version
}

func (s *InvoiceServiceSuite) attach() *subscription.SubscriptionRecord {
	rec, err := s.subSvc.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
	})
	s.Require().NoError(err)
	return rec
}

func (s *InvoiceServiceSuite) seedUsage(rec *subscription.SubscriptionRecord, count uint64) {
	bucket := &events.UsageBucket{
		OrganizationID:    testutil.TestOrgID,
		MetricID:          s.testData.metric.ID,
		CustomerID:        rec.CustomerID,
		FilterFingerprint: events.FilterFingerprint(rec.Filters),
		BucketStart:       types.TruncateToGranularity(rec.UsageStartDate.Add(time.Hour), types.GranularityDay),
		Count:             count,
		Sum:               decimal.NewFromInt(int64(count)),
	}
	// keep the bucket inside the record's usage window
	if bucket.BucketStart.Before(rec.UsageStartDate) {
		bucket.BucketStart = rec.UsageStartDate
	}
	s.Require().NoError(s.GetStores().EventRepo.UpsertBucket(s.GetContext(), bucket))
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceFlatFee() {
	rec := s.attach()

	invoices, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.NoError(err)
	s.Require().Len(invoices, 1)

	inv := invoices[0]
	s.Equal("usd", inv.Currency)
	s.Equal(types.PaymentStatusUnpaid, inv.PaymentStatus)
	s.True(inv.Amount.Equal(decimal.NewFromInt(30)), "got %s", inv.Amount)
	s.True(inv.DueDate.After(inv.IssueDate), "grace period pushes the due date out")
	s.Require().Len(inv.LineItems, 1)
	s.Equal("Base fee", inv.LineItems[0].Name)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceWithUsage() {
	rec := s.attach()
	s.seedUsage(rec, 500)

	invoices, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.NoError(err)
	s.Require().Len(invoices, 1)

	inv := invoices[0]
	// 30 base + (500-100) * 0.01 usage
	s.True(inv.Amount.Equal(decimal.NewFromInt(34)), "got %s", inv.Amount)

	var usageLine *invoice.LineItem
	for i := range inv.LineItems {
		if inv.LineItems[i].ChargeableItemType == types.ChargeableItemUsageCharge {
			usageLine = &inv.LineItems[i]
		}
	}
	s.Require().NotNil(usageLine)
	s.Equal("api_call usage", usageLine.Name)
	s.Require().NotNil(usageLine.Quantity)
	s.True(usageLine.Quantity.Equal(decimal.NewFromInt(500)))
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceIdempotent() {
	rec := s.attach()
	params := GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	}

	first, err := s.service.GenerateInvoices(s.GetContext(), params)
	s.Require().NoError(err)
	second, err := s.service.GenerateInvoices(s.GetContext(), params)
	s.Require().NoError(err)

	s.Equal(first[0].ID, second[0].ID)

	all, err := s.service.List(s.GetContext(), nil)
	s.NoError(err)
	s.Len(all, 1)
}

func (s *InvoiceServiceSuite) TestDraftThenIssue() {
	rec := s.attach()

	drafts, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
		Draft:      true,
	})
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusDraft, drafts[0].PaymentStatus)

	// drafts never touch the record's billing state
	got, err := s.subSvc.GetRecord(s.GetContext(), rec.ID)
	s.NoError(err)
	s.False(got.FullyBilled)

	issued, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.Require().NoError(err)
	s.Equal(drafts[0].ID, issued[0].ID, "the same day draft gets promoted, not duplicated")
	s.Equal(types.PaymentStatusUnpaid, issued[0].PaymentStatus)
	s.True(issued[0].Amount.Equal(decimal.NewFromInt(30)))
}

func (s *InvoiceServiceSuite) TestBalanceApplication() {
	rec := s.attach()

	grant := balance.New(s.GetContext(), "cust_1", decimal.NewFromInt(100), "usd", "promo credit")
	s.Require().NoError(s.GetStores().BalanceRepo.Create(s.GetContext(), grant))

	invoices, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.NoError(err)
	s.Require().Len(invoices, 1)

	inv := invoices[0]
	s.True(inv.Amount.IsZero(), "credit covers the fee, got %s", inv.Amount)
	s.Equal(types.PaymentStatusPaid, inv.PaymentStatus)

	var appliedLine *invoice.LineItem
	for i := range inv.LineItems {
		if inv.LineItems[i].Name == "Applied from balance" {
			appliedLine = &inv.LineItems[i]
		}
	}
	s.Require().NotNil(appliedLine)
	s.True(appliedLine.Base.Equal(decimal.NewFromInt(-30)))

	grants, err := s.GetStores().BalanceRepo.List(s.GetContext(), "cust_1")
	s.NoError(err)
	s.Require().Len(grants, 1)
	s.True(grants[0].Remaining().Equal(decimal.NewFromInt(70)), "got %s", grants[0].Remaining())
}

func (s *InvoiceServiceSuite) TestDraftSkipsBalance() {
	rec := s.attach()

	grant := balance.New(s.GetContext(), "cust_1", decimal.NewFromInt(100), "usd", "promo credit")
	s.Require().NoError(s.GetStores().BalanceRepo.Create(s.GetContext(), grant))

	drafts, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
		Draft:      true,
	})
	s.NoError(err)
	s.True(drafts[0].Amount.Equal(decimal.NewFromInt(30)), "previews never draw the balance")

	grants, err := s.GetStores().BalanceRepo.List(s.GetContext(), "cust_1")
	s.NoError(err)
	s.True(grants[0].Remaining().Equal(decimal.NewFromInt(100)))
}

func (s *InvoiceServiceSuite) TestRefundMintsCredit() {
	rec := s.attach()
	chargeID := s.testData.version.RecurringCharges[0].ID

	// yesterday's paid invoice already collected the full fee
	prior := invoice.New(s.GetContext(), "cust_1", "usd", s.GetNow().AddDate(0, 0, -1), s.GetNow())
	prior.SubscriptionRecordIDs = []string{rec.ID}
	prior.PaymentStatus = types.PaymentStatusPaid
	prior.AddLineItem(invoice.LineItem{
		Name:                    "Base fee",
		Base:                    decimal.NewFromInt(30),
		ChargeableItemType:      types.ChargeableItemRecurringCharge,
		AssociatedRecordID:      rec.ID,
		AssociatedPlanVersionID: s.testData.version.ID,
		AssociatedChargeID:      chargeID,
	})
	prior.Finalize()
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), prior))

	_, err := s.subSvc.Cancel(s.GetContext(), CancelParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		FlatFeeBehavior:   types.FlatFeeRefund,
		UsageBehavior:     types.UsageBillNone,
		InvoicingBehavior: types.InvoiceNow,
	})
	s.NoError(err)

	invoices, err := s.service.List(s.GetContext(), &invoice.Filter{CustomerID: "cust_1"})
	s.NoError(err)
	s.Require().Len(invoices, 2)

	var refund *invoice.Invoice
	for _, inv := range invoices {
		if inv.ID != prior.ID {
			refund = inv
		}
	}
	s.Require().NotNil(refund)
	s.True(refund.Amount.IsZero(), "refund nets to zero after minting credit, got %s", refund.Amount)
	s.Equal(types.PaymentStatusPaid, refund.PaymentStatus)

	grants, err := s.GetStores().BalanceRepo.List(s.GetContext(), "cust_1")
	s.NoError(err)
	s.Require().Len(grants, 1)
	s.True(grants[0].Amount.Equal(decimal.NewFromInt(30)), "the paid fee comes back as credit")
}

func (s *InvoiceServiceSuite) TestStaticTaxRate() {
	s.testData.customer.TaxRate = lo.ToPtr(10.0)
	s.Require().NoError(s.GetStores().CustomerRepo.Update(s.GetContext(), s.testData.customer))

	rec := s.attach()
	invoices, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.NoError(err)
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(33)), "10%% tax on 30, got %s", invoices[0].Amount)

	s.Require().Len(invoices[0].LineItems, 1)
	s.Require().Len(invoices[0].LineItems[0].Adjustments, 1)
	s.Equal(types.AdjustmentSalesTax, invoices[0].LineItems[0].Adjustments[0].Type)
}

func (s *InvoiceServiceSuite) TestPercentageDiscount() {
	s.testData.version.PriceAdjustment = &planDomain.PriceAdjustment{
		Type:   types.PriceAdjustmentPercentage,
		Amount: decimal.NewFromInt(-10),
	}
	s.Require().NoError(s.GetStores().PlanRepo.UpdateVersion(s.GetContext(), s.testData.version))

	rec := s.attach()
	invoices, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.NoError(err)
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(27)), "10%% off 30, got %s", invoices[0].Amount)
}

func (s *InvoiceServiceSuite) TestValidation() {
	rec := s.attach()

	_, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_other",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.Error(err)
	s.True(ierr.IsValidation(err), "records must belong to the invoiced customer")
}

func (s *InvoiceServiceSuite) TestUpdatePaymentStatus() {
	rec := s.attach()
	invoices, err := s.service.GenerateInvoices(s.GetContext(), GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.Require().NoError(err)
	inv := invoices[0]

	s.Run("issued_cannot_return_to_draft", func() {
		_, err := s.service.UpdatePaymentStatus(s.GetContext(), inv.ID, types.PaymentStatusDraft)
		s.Error(err)
		s.True(ierr.IsPreconditionFailed(err))
	})

	s.Run("unpaid_to_paid", func() {
		got, err := s.service.UpdatePaymentStatus(s.GetContext(), inv.ID, types.PaymentStatusPaid)
		s.NoError(err)
		s.Equal(types.PaymentStatusPaid, got.PaymentStatus)
	})

	s.Run("paid_is_terminal", func() {
		_, err := s.service.UpdatePaymentStatus(s.GetContext(), inv.ID, types.PaymentStatusUnpaid)
		s.Error(err)
		s.True(ierr.IsPreconditionFailed(err))
	})

	s.Run("invalid_status", func() {
		_, err := s.service.UpdatePaymentStatus(s.GetContext(), inv.ID, types.PaymentStatus("bogus"))
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

// A prorated in-advance charge bills the covered fraction of the billing
// period. The period is one charge interval ending at the record's boundary,
// so a record attached mid-period pays only for the days it covers.
func (s *InvoiceServiceSuite) TestProratedChargeBillsCoveredFraction() {
	ctx := s.GetContext()

	pl := &planDomain.Plan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		PlanName:     "Support",
		PlanDuration: types.PlanDurationMonthly,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	version := &planDomain.PlanVersion{
		ID:       types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN_VERSION),
		PlanID:   pl.ID,
		Version:  1,
		Currency: "usd",
		RecurringCharges: []planDomain.RecurringCharge{
			{
				ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_CHARGE),
				Name:           "Support fee",
				ChargeTiming:   types.ChargeTimingInAdvance,
				ChargeBehavior: types.ChargeBehaviorProrate,
				Amount:         decimal.NewFromInt(10),
				Currency:       "usd",
			},
		},
		ActiveFrom: s.GetNow().Add(-time.Hour),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PlanRepo.CreatePlan(ctx, pl))
	s.Require().NoError(s.GetStores().PlanRepo.CreateVersion(ctx, version))

	// ten covered days of the thirty day June period
	start := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rec, err := s.subSvc.AttachPlan(ctx, AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     pl.ID,
		Start:      start,
		End:        end,
	})
	s.Require().NoError(err)

	invoices, err := s.service.GenerateInvoices(ctx, GenerateInvoiceParams{
		CustomerID: "cust_1",
		Records:    []*subscription.SubscriptionRecord{rec},
	})
	s.Require().NoError(err)
	s.Require().Len(invoices, 1)

	inv := invoices[0]
	s.Require().Len(inv.LineItems, 1)
	expected := decimal.NewFromInt(10).
		Mul(decimal.NewFromInt(10)).
		Div(decimal.NewFromInt(30))
	s.True(inv.LineItems[0].Base.Equal(expected), "got %s", inv.LineItems[0].Base)
	s.True(inv.Amount.Equal(decimal.RequireFromString("3.33")), "got %s", inv.Amount)
}
