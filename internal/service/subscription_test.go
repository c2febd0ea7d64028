package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/metric"
	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SubscriptionService
	testData struct {
		customer *customer.Customer
		metric   *metric.Metric
		plan     *planDomain.Plan
		version  *planDomain.PlanVersion
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(newTestParams(&s.BaseServiceTestSuite))
	s.setupTestData()
}

func (s *SubscriptionServiceSuite) setupTestData() {
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

	s.testData.plan, s.testData.version = s.createPlan("Pro", types.PlanDurationMonthly, decimal.NewFromInt(30))
}

// createPlan seeds a plan with one in_advance base fee and one usage
// component on the api_call metric
func (s *SubscriptionServiceSuite) createPlan(name string, duration types.PlanDuration, baseFee decimal.Decimal) (*planDomain.Plan, *planDomain.PlanVersion) {
	ctx := s.GetContext()

	pl := &planDomain.Plan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		PlanName:     name,
		PlanDuration: duration,
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
				MetricID: s.testData.metric.ID,
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
				Amount:         baseFee,
				Currency:       "usd",
			},
		},
		ActiveFrom: s.GetNow().Add(-time.Hour),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PlanRepo.CreatePlan(ctx, pl))
	s.Require().NoError(s.GetStores().PlanRepo.CreateVersion(ctx, version))
	return pl, version
}

func (s *SubscriptionServiceSuite) createAddOnPlan(frequency types.AddOnBillingFrequency, invoicing types.AddOnInvoicingBehavior, fee decimal.Decimal) (*planDomain.Plan, *planDomain.PlanVersion) {
	ctx := s.GetContext()

	pl := &planDomain.Plan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		PlanName:     "Priority support",
		PlanDuration: types.PlanDurationMonthly,
		IsAddOn:      true,
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
				ChargeBehavior: types.ChargeBehaviorChargeFull,
				Amount:         fee,
				Currency:       "usd",
			},
		},
		AddOnSpec: &planDomain.AddOnSpecification{
			BillingFrequency:         frequency,
			FlatFeeInvoicingBehavior: invoicing,
		},
		ActiveFrom: s.GetNow().Add(-time.Hour),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PlanRepo.CreatePlan(ctx, pl))
	s.Require().NoError(s.GetStores().PlanRepo.CreateVersion(ctx, version))
	return pl, version
}

func (s *SubscriptionServiceSuite) attach(planID string, filters map[string]string) *subscription.SubscriptionRecord {
	rec, err := s.service.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     planID,
		Filters:    filters,
	})
	s.Require().NoError(err)
	return rec
}

func (s *SubscriptionServiceSuite) TestAttachPlan() {
	rec := s.attach(s.testData.plan.ID, nil)

	s.Equal("cust_1", rec.CustomerID)
	s.Equal(s.testData.version.ID, rec.BillingPlanID)
	s.True(rec.AutoRenew)
	s.True(rec.IsNew)
	s.True(rec.Quantity.Equal(decimal.NewFromInt(1)))
	s.NotNil(rec.NextBillingDate)
	s.True(rec.NextBillingDate.Equal(rec.EndDate))

	expectedEnd := types.PeriodEnd(rec.StartDate, types.PlanDurationMonthly, rec.StartDate.Day(), 0)
	s.True(rec.EndDate.Equal(expectedEnd))

	// the billing container was created lazily with anchors from the start
	container, err := s.GetStores().SubRepo.GetSubscription(s.GetContext(), rec.SubscriptionID)
	s.NoError(err)
	s.Equal(rec.StartDate.Day(), container.DayAnchor)
	s.Equal(types.PlanDurationMonthly, container.BillingCadence)
	s.False(container.EndDate.Before(rec.EndDate))
}

func (s *SubscriptionServiceSuite) TestAttachPlanUnknownCustomer() {
	_, err := s.service.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_missing",
		PlanID:     s.testData.plan.ID,
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestAttachPlanOverlapRejected() {
	s.attach(s.testData.plan.ID, nil)

	_, err := s.service.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionServiceSuite) TestAttachPlanDistinctFiltersAllowed() {
	s.attach(s.testData.plan.ID, map[string]string{"region": "us"})
	rec := s.attach(s.testData.plan.ID, map[string]string{"region": "eu"})
	s.Equal("eu", rec.Filters["region"])

	// both records share the customer's single billing container
	records, err := s.service.ListRecords(s.GetContext(), &subscription.RecordFilter{CustomerID: "cust_1"})
	s.NoError(err)
	s.Len(records, 2)
	s.Equal(records[0].SubscriptionID, records[1].SubscriptionID)
}

func (s *SubscriptionServiceSuite) TestAttachPlanTargetedVersion() {
	version := s.testData.version
	version.TargetCustomerIDs = []string{"cust_other"}
	s.Require().NoError(s.GetStores().PlanRepo.UpdateVersion(s.GetContext(), version))

	_, err := s.service.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *SubscriptionServiceSuite) TestAttachPlanPinnedVersionWrongPlan() {
	other, _ := s.createPlan("Starter", types.PlanDurationMonthly, decimal.NewFromInt(10))

	_, err := s.service.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     other.ID,
		VersionID:  s.testData.version.ID,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestCancelWithoutInvoicing() {
	rec := s.attach(s.testData.plan.ID, nil)

	cancelled, err := s.service.Cancel(s.GetContext(), CancelParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		UsageBehavior:     types.UsageBillNone,
		InvoicingBehavior: types.AddToNextInvoice,
	})
	s.NoError(err)
	s.Len(cancelled, 1)

	got, err := s.service.GetRecord(s.GetContext(), rec.ID)
	s.NoError(err)
	s.False(got.AutoRenew)
	s.False(got.FullyBilled)
	s.False(got.InvoiceUsageCharges)
	s.True(got.EndDate.Before(rec.EndDate))

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Empty(invoices)
}

func (s *SubscriptionServiceSuite) TestCancelInvoiceNow() {
	rec := s.attach(s.testData.plan.ID, nil)

	_, err := s.service.Cancel(s.GetContext(), CancelParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		UsageBehavior:     types.UsageBillFull,
		InvoicingBehavior: types.InvoiceNow,
	})
	s.NoError(err)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Require().Len(invoices, 1)
	s.Equal(types.PaymentStatusUnpaid, invoices[0].PaymentStatus)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(30)), "base fee bills in full, got %s", invoices[0].Amount)

	got, err := s.service.GetRecord(s.GetContext(), rec.ID)
	s.NoError(err)
	s.True(got.FullyBilled)
}

func (s *SubscriptionServiceSuite) TestCancelEndsAttachedAddOns() {
	s.attach(s.testData.plan.ID, nil)
	addOnPlan, _ := s.createAddOnPlan(types.AddOnBillingRecurring, types.AddOnInvoiceOnSubscriptionEnd, decimal.NewFromInt(5))

	child, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:   "cust_1",
		ParentPlanID: s.testData.plan.ID,
		AddOnPlanID:  addOnPlan.ID,
	})
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.GetContext(), CancelParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		UsageBehavior:     types.UsageBillNone,
		InvoicingBehavior: types.AddToNextInvoice,
	})
	s.NoError(err)

	got, err := s.service.GetRecord(s.GetContext(), child.ID)
	s.NoError(err)
	s.False(got.AutoRenew)
	s.False(got.IsActive(s.GetNow().Add(time.Minute)))
}

// Record mutations and the invoice run they trigger share one enclosing
// transaction so billing state cannot tear under concurrent writers.
func (s *SubscriptionServiceSuite) TestCancelRunsTransactionally() {
	s.attach(s.testData.plan.ID, nil)
	before := s.GetDB().TxCalls

	_, err := s.service.Cancel(s.GetContext(), CancelParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		InvoicingBehavior: types.InvoiceNow,
	})
	s.NoError(err)
	s.Greater(s.GetDB().TxCalls, before)
}

func (s *SubscriptionServiceSuite) TestCancelNothingMatches() {
	_, err := s.service.Cancel(s.GetContext(), CancelParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestSwitchPlan() {
	old := s.attach(s.testData.plan.ID, nil)
	replacement, replacementVersion := s.createPlan("Enterprise", types.PlanDurationMonthly, decimal.NewFromInt(100))

	replaced, err := s.service.SwitchPlan(s.GetContext(), SwitchPlanParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		ReplacePlanID:     replacement.ID,
		UsageBehavior:     types.UsageTransfer,
		InvoicingBehavior: types.AddToNextInvoice,
	})
	s.NoError(err)
	s.Require().Len(replaced, 1)

	next := replaced[0]
	s.Equal(replacementVersion.ID, next.BillingPlanID)
	s.True(next.EndDate.Equal(old.EndDate), "replacement keeps the original period end")
	s.True(next.UsageStartDate.Equal(old.UsageStartDate), "accrued usage transfers")
	s.Equal(old.SubscriptionID, next.SubscriptionID)

	ended, err := s.service.GetRecord(s.GetContext(), old.ID)
	s.NoError(err)
	s.False(ended.AutoRenew)
	s.Equal(types.FlatFeeProrate, ended.FlatFeeBehavior)
	s.False(ended.InvoiceUsageCharges, "transferred usage must not bill on the old record")
}

func (s *SubscriptionServiceSuite) TestSwitchPlanKeepSeparate() {
	old := s.attach(s.testData.plan.ID, nil)
	replacement, _ := s.createPlan("Enterprise", types.PlanDurationMonthly, decimal.NewFromInt(100))

	replaced, err := s.service.SwitchPlan(s.GetContext(), SwitchPlanParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		ReplacePlanID:     replacement.ID,
		UsageBehavior:     types.UsageKeepSeparate,
		InvoicingBehavior: types.AddToNextInvoice,
	})
	s.NoError(err)
	s.Require().Len(replaced, 1)
	s.True(replaced[0].UsageStartDate.After(old.UsageStartDate), "usage does not transfer")

	ended, err := s.service.GetRecord(s.GetContext(), old.ID)
	s.NoError(err)
	s.True(ended.InvoiceUsageCharges, "old usage still bills on the old record")
}

// Switching with invoice_now bills the closed record's full in-advance fee
// and the replacement's remaining-period fee on the same invoice.
func (s *SubscriptionServiceSuite) TestSwitchPlanInvoiceNowBillsReplacement() {
	start := time.Now().UTC().AddDate(0, 0, -15)
	old, err := s.service.AttachPlan(s.GetContext(), AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
		Start:      start,
	})
	s.Require().NoError(err)
	replacement, _ := s.createPlan("Enterprise", types.PlanDurationMonthly, decimal.NewFromInt(60))

	replaced, err := s.service.SwitchPlan(s.GetContext(), SwitchPlanParams{
		CustomerID:        "cust_1",
		PlanID:            s.testData.plan.ID,
		ReplacePlanID:     replacement.ID,
		UsageBehavior:     types.UsageTransfer,
		InvoicingBehavior: types.InvoiceNow,
	})
	s.Require().NoError(err)
	s.Require().Len(replaced, 1)
	next := replaced[0]
	s.Equal(types.FlatFeeProrate, next.FlatFeeBehavior)

	invoices, err := s.GetStores().InvoiceRepo.ListForRecord(s.GetContext(), next.ID, false)
	s.Require().NoError(err)
	s.Require().Len(invoices, 1)
	inv := invoices[0]

	var oldFee, nextFee decimal.Decimal
	for _, li := range inv.LineItems {
		switch li.AssociatedRecordID {
		case old.ID:
			oldFee = oldFee.Add(li.Base)
		case next.ID:
			nextFee = nextFee.Add(li.Base)
		}
	}
	s.True(oldFee.Equal(decimal.NewFromInt(30)), "old plan fee accrued in full, got %s", oldFee)
	// the replacement covers roughly the remaining half of the period
	s.True(nextFee.GreaterThan(decimal.NewFromInt(25)), "got %s", nextFee)
	s.True(nextFee.LessThan(decimal.NewFromInt(35)), "got %s", nextFee)
	s.True(inv.Amount.Equal(oldFee.Add(nextFee).Round(2)), "got %s", inv.Amount)
}

func (s *SubscriptionServiceSuite) TestSwitchPlanDurationMismatch() {
	s.attach(s.testData.plan.ID, nil)
	yearly, _ := s.createPlan("Annual", types.PlanDurationYearly, decimal.NewFromInt(300))

	_, err := s.service.SwitchPlan(s.GetContext(), SwitchPlanParams{
		CustomerID:    "cust_1",
		PlanID:        s.testData.plan.ID,
		ReplacePlanID: yearly.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *SubscriptionServiceSuite) TestUpdateRecord() {
	rec := s.attach(s.testData.plan.ID, nil)

	newEnd := rec.EndDate.AddDate(0, 0, -5)
	updated, err := s.service.UpdateRecord(s.GetContext(), UpdateRecordParams{
		CustomerID:       "cust_1",
		PlanID:           s.testData.plan.ID,
		EndDate:          &newEnd,
		TurnOffAutoRenew: true,
	})
	s.NoError(err)
	s.Require().Len(updated, 1)
	s.True(updated[0].EndDate.Equal(newEnd))
	s.False(updated[0].AutoRenew)

	badEnd := rec.StartDate.AddDate(0, 0, -1)
	_, err = s.service.UpdateRecord(s.GetContext(), UpdateRecordParams{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
		EndDate:    &badEnd,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestAttachAddOn() {
	parent := s.attach(s.testData.plan.ID, map[string]string{"region": "us"})
	addOnPlan, addOnVersion := s.createAddOnPlan(types.AddOnBillingRecurring, types.AddOnInvoiceOnSubscriptionEnd, decimal.NewFromInt(5))

	child, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:    "cust_1",
		ParentPlanID:  s.testData.plan.ID,
		ParentFilters: map[string]string{"region": "us"},
		AddOnPlanID:   addOnPlan.ID,
		Quantity:      decimal.NewFromInt(2),
	})
	s.NoError(err)
	s.Equal(parent.ID, child.ParentID)
	s.Equal(addOnVersion.ID, child.BillingPlanID)
	s.Equal(parent.SubscriptionID, child.SubscriptionID)
	s.True(child.EndDate.Equal(parent.EndDate))
	s.Equal("us", child.Filters["region"])
	s.True(child.Quantity.Equal(decimal.NewFromInt(2)))
	s.True(child.AutoRenew, "recurring add-ons renew with the parent")

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Empty(invoices, "on_subscription_end add-ons wait for the period invoice")
}

func (s *SubscriptionServiceSuite) TestAttachAddOnOneTimeInvoicedOnAttach() {
	s.attach(s.testData.plan.ID, nil)
	addOnPlan, _ := s.createAddOnPlan(types.AddOnBillingOneTime, types.AddOnInvoiceOnAttach, decimal.NewFromInt(25))

	child, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:   "cust_1",
		ParentPlanID: s.testData.plan.ID,
		AddOnPlanID:  addOnPlan.ID,
	})
	s.NoError(err)
	s.False(child.AutoRenew)
	s.True(child.FullyBilled)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(25)))
}

func (s *SubscriptionServiceSuite) TestAttachAddOnRequiresAddOnPlan() {
	s.attach(s.testData.plan.ID, nil)
	regular, _ := s.createPlan("Starter", types.PlanDurationMonthly, decimal.NewFromInt(10))

	_, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:   "cust_1",
		ParentPlanID: s.testData.plan.ID,
		AddOnPlanID:  regular.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *SubscriptionServiceSuite) TestAttachAddOnRequiresSingleParent() {
	addOnPlan, _ := s.createAddOnPlan(types.AddOnBillingRecurring, types.AddOnInvoiceOnSubscriptionEnd, decimal.NewFromInt(5))

	_, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:   "cust_1",
		ParentPlanID: s.testData.plan.ID,
		AddOnPlanID:  addOnPlan.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *SubscriptionServiceSuite) TestUpdateAddOnQuantityReductionCredits() {
	s.attach(s.testData.plan.ID, nil)
	addOnPlan, _ := s.createAddOnPlan(types.AddOnBillingRecurring, types.AddOnInvoiceOnSubscriptionEnd, decimal.NewFromInt(10))

	child, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:   "cust_1",
		ParentPlanID: s.testData.plan.ID,
		AddOnPlanID:  addOnPlan.ID,
		Quantity:     decimal.NewFromInt(3),
	})
	s.Require().NoError(err)

	// a paid invoice already covered the add-on's flat fee at quantity 3
	paid := invoice.New(s.GetContext(), "cust_1", "usd", s.GetNow().AddDate(0, 0, -3), s.GetNow().AddDate(0, 0, -2))
	paid.SubscriptionRecordIDs = []string{child.ID}
	paid.PaymentStatus = types.PaymentStatusPaid
	paid.AddLineItem(invoice.LineItem{
		Name:               "Support fee",
		Base:               decimal.NewFromInt(30),
		ChargeableItemType: types.ChargeableItemRecurringCharge,
		AssociatedRecordID: child.ID,
	})
	paid.Finalize()
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), paid))

	updated, err := s.service.UpdateAddOn(s.GetContext(), UpdateAddOnParams{
		RecordID: child.ID,
		Quantity: lo.ToPtr(decimal.NewFromInt(1)),
	})
	s.NoError(err)
	s.True(updated.Quantity.Equal(decimal.NewFromInt(1)))

	grants, err := s.GetStores().BalanceRepo.List(s.GetContext(), "cust_1")
	s.NoError(err)
	s.Require().Len(grants, 1)
	s.True(grants[0].Amount.Equal(decimal.NewFromInt(20)), "two thirds of the paid fee comes back, got %s", grants[0].Amount)
}

func (s *SubscriptionServiceSuite) TestUpdateAddOnRejectsNonAddOn() {
	rec := s.attach(s.testData.plan.ID, nil)

	_, err := s.service.UpdateAddOn(s.GetContext(), UpdateAddOnParams{
		RecordID: rec.ID,
		Quantity: lo.ToPtr(decimal.NewFromInt(2)),
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *SubscriptionServiceSuite) TestCancelAddOnRefundCredits() {
	s.attach(s.testData.plan.ID, nil)
	addOnPlan, _ := s.createAddOnPlan(types.AddOnBillingRecurring, types.AddOnInvoiceOnSubscriptionEnd, decimal.NewFromInt(10))

	child, err := s.service.AttachAddOn(s.GetContext(), AttachAddOnParams{
		CustomerID:   "cust_1",
		ParentPlanID: s.testData.plan.ID,
		AddOnPlanID:  addOnPlan.ID,
		Quantity:     decimal.NewFromInt(3),
	})
	s.Require().NoError(err)

	paid := invoice.New(s.GetContext(), "cust_1", "usd", s.GetNow().AddDate(0, 0, -3), s.GetNow().AddDate(0, 0, -2))
	paid.SubscriptionRecordIDs = []string{child.ID}
	paid.PaymentStatus = types.PaymentStatusPaid
	paid.AddLineItem(invoice.LineItem{
		Name:               "Support fee",
		Base:               decimal.NewFromInt(30),
		ChargeableItemType: types.ChargeableItemRecurringCharge,
		AssociatedRecordID: child.ID,
	})
	paid.Finalize()
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), paid))

	cancelled, err := s.service.CancelAddOn(s.GetContext(), CancelAddOnParams{
		RecordID:        child.ID,
		FlatFeeBehavior: types.FlatFeeRefund,
	})
	s.NoError(err)
	s.False(cancelled.AutoRenew)
	s.WithinDuration(time.Now().UTC(), cancelled.EndDate, time.Minute)

	grants, err := s.GetStores().BalanceRepo.List(s.GetContext(), "cust_1")
	s.NoError(err)
	s.Require().Len(grants, 1)
	s.True(grants[0].Amount.Equal(decimal.NewFromInt(30)), "the whole paid fee comes back, got %s", grants[0].Amount)
}

func (s *SubscriptionServiceSuite) TestCancelAddOnRejectsNonAddOn() {
	rec := s.attach(s.testData.plan.ID, nil)

	_, err := s.service.CancelAddOn(s.GetContext(), CancelAddOnParams{
		RecordID: rec.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *SubscriptionServiceSuite) TestRenewRecord() {
	rec := s.attach(s.testData.plan.ID, map[string]string{"region": "us"})

	next, err := s.service.RenewRecord(s.GetContext(), rec, rec.BillingPlanID)
	s.NoError(err)
	s.False(next.IsNew)
	s.True(next.StartDate.Equal(types.AddClampedDate(rec.EndDate, 0, 0, 1)))
	s.True(next.EndDate.After(next.StartDate))
	s.Equal("us", next.Filters["region"])
	s.Equal(rec.SubscriptionID, next.SubscriptionID)

	// the container stretches to cover the new period
	container, err := s.GetStores().SubRepo.GetSubscription(s.GetContext(), rec.SubscriptionID)
	s.NoError(err)
	s.False(container.EndDate.Before(next.EndDate))
}

func (s *SubscriptionServiceSuite) TestRenewRecordRequiresAutoRenew() {
	rec := s.attach(s.testData.plan.ID, nil)
	rec.AutoRenew = false
	s.Require().NoError(s.GetStores().SubRepo.UpdateRecord(s.GetContext(), rec))

	_, err := s.service.RenewRecord(s.GetContext(), rec, rec.BillingPlanID)
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}
