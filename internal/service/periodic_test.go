package service

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/payment"
	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// stubPaymentProvider reports a fixed status for every payment object
type stubPaymentProvider struct {
	status payment.Status
}

func (p *stubPaymentProvider) Name() string { return "stub" }

func (p *stubPaymentProvider) CreatePaymentObject(ctx context.Context, customerRef string, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	return "pay_stub", nil
}

func (p *stubPaymentProvider) GetPaymentStatus(ctx context.Context, ref string) (payment.Status, error) {
	return p.status, nil
}

type PeriodicServiceSuite struct {
	testutil.BaseServiceTestSuite
	provider *stubPaymentProvider
	service  PeriodicService
	subSvc   SubscriptionService
}

func TestPeriodicService(t *testing.T) {
	suite.Run(t, new(PeriodicServiceSuite))
}

func (s *PeriodicServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.provider = &stubPaymentProvider{status: payment.StatusPending}
	params := newTestParams(&s.BaseServiceTestSuite)
	params.PaymentProvider = s.provider
	s.service = NewPeriodicService(params)
	s.subSvc = NewSubscriptionService(params)

	cust := customer.New(s.GetContext(), "cust_1", "Test Customer", "test@example.com", "usd")
	s.Require().NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), cust))
}

func (s *PeriodicServiceSuite) createPlan(autoRenewFee decimal.Decimal) *planDomain.Plan {
	ctx := s.GetContext()
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
		RecurringCharges: []planDomain.RecurringCharge{
			{
				ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_CHARGE),
				Name:           "Base fee",
				ChargeTiming:   types.ChargeTimingInAdvance,
				ChargeBehavior: types.ChargeBehaviorChargeFull,
				Amount:         autoRenewFee,
				Currency:       "usd",
			},
		},
		ActiveFrom: s.GetNow().AddDate(0, -2, 0),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PlanRepo.CreatePlan(ctx, pl))
	s.Require().NoError(s.GetStores().PlanRepo.CreateVersion(ctx, version))
	return pl
}

func (s *PeriodicServiceSuite) TestExpireBalances() {
	ctx := s.GetContext()

	expiring := balance.New(ctx, "cust_1", decimal.NewFromInt(50), "usd", "expiring credit")
	expiring.EffectiveAt = s.GetNow().AddDate(0, 0, -10)
	expiring.ExpiresAt = lo.ToPtr(s.GetNow().Add(-time.Hour))
	s.Require().NoError(s.GetStores().BalanceRepo.Create(ctx, expiring))

	evergreen := balance.New(ctx, "cust_1", decimal.NewFromInt(20), "usd", "no expiry")
	s.Require().NoError(s.GetStores().BalanceRepo.Create(ctx, evergreen))

	s.NoError(s.service.ExpireBalances(ctx, s.GetNow()))

	grants, err := s.GetStores().BalanceRepo.List(ctx, "cust_1")
	s.NoError(err)
	s.Require().Len(grants, 2)
	for _, grant := range grants {
		switch grant.ID {
		case expiring.ID:
			s.Equal(types.BalanceStatusInactive, grant.AdjStatus)
			s.True(grant.Remaining().IsZero())
			s.Require().Len(grant.Drawdowns, 1)
			s.Equal(types.DrawdownReasonExpired, grant.Drawdowns[0].Reason)
		case evergreen.ID:
			s.Equal(types.BalanceStatusActive, grant.AdjStatus)
			s.True(grant.Remaining().Equal(decimal.NewFromInt(20)))
		}
	}

	// a second sweep finds nothing left to expire
	s.NoError(s.service.ExpireBalances(ctx, s.GetNow()))
}

func (s *PeriodicServiceSuite) TestRefreshInvoices() {
	ctx := s.GetContext()

	inv := invoice.New(ctx, "cust_1", "usd", s.GetNow().AddDate(0, 0, -2), s.GetNow())
	inv.PaymentStatus = types.PaymentStatusUnpaid
	inv.ExternalPaymentObjRef = "pay_123"
	inv.ExternalPaymentObjTyp = "stub"
	inv.AddLineItem(invoice.LineItem{Name: "Base fee", Base: decimal.NewFromInt(30)})
	inv.Finalize()
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(ctx, inv))

	s.provider.status = payment.StatusPending
	s.NoError(s.service.RefreshInvoices(ctx))
	got, err := s.GetStores().InvoiceRepo.Get(ctx, inv.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusUnpaid, got.PaymentStatus, "pending payments leave the invoice open")

	s.provider.status = payment.StatusSucceeded
	s.NoError(s.service.RefreshInvoices(ctx))
	got, err = s.GetStores().InvoiceRepo.Get(ctx, inv.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, got.PaymentStatus)
}

func (s *PeriodicServiceSuite) TestClosePeriodsRenews() {
	ctx := s.GetContext()
	pl := s.createPlan(decimal.NewFromInt(30))

	// the billing period ended yesterday, past the close grace window
	start := s.GetNow().AddDate(0, -1, -1)
	rec, err := s.subSvc.AttachPlan(ctx, AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     pl.ID,
		Start:      start,
	})
	s.Require().NoError(err)
	s.Require().True(rec.EndDate.Before(s.GetNow()))

	s.NoError(s.service.ClosePeriods(ctx, s.GetNow()))

	invoices, err := s.GetStores().InvoiceRepo.List(ctx, nil)
	s.NoError(err)
	s.Require().Len(invoices, 1)
	// the closed period's fee plus next period's in_advance fee
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(60)), "got %s", invoices[0].Amount)

	closed, err := s.subSvc.GetRecord(ctx, rec.ID)
	s.NoError(err)
	s.True(closed.FullyBilled)

	records, err := s.subSvc.ListRecords(ctx, &subscription.RecordFilter{CustomerID: "cust_1"})
	s.NoError(err)
	s.Require().Len(records, 2)
	var next *subscription.SubscriptionRecord
	for _, r := range records {
		if r.ID != rec.ID {
			next = r
		}
	}
	s.Require().NotNil(next)
	s.False(next.IsNew)
	s.True(next.StartDate.Equal(types.AddClampedDate(rec.EndDate, 0, 0, 1)))

	// renewal stretched the container past now, so it survives
	container, err := s.GetStores().SubRepo.GetSubscription(ctx, rec.SubscriptionID)
	s.NoError(err)
	s.False(container.EndDate.Before(s.GetNow()))

	// re-running the sweep is a no-op: same invoice, no extra records
	s.NoError(s.service.ClosePeriods(ctx, s.GetNow()))
	invoices, err = s.GetStores().InvoiceRepo.List(ctx, nil)
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *PeriodicServiceSuite) TestClosePeriodsDeletesTerminatedContainer() {
	ctx := s.GetContext()
	pl := s.createPlan(decimal.NewFromInt(30))

	start := s.GetNow().AddDate(0, -1, -1)
	rec, err := s.subSvc.AttachPlan(ctx, AttachPlanParams{
		CustomerID: "cust_1",
		PlanID:     pl.ID,
		Start:      start,
		AutoRenew:  lo.ToPtr(false),
	})
	s.Require().NoError(err)

	s.NoError(s.service.ClosePeriods(ctx, s.GetNow()))

	invoices, err := s.GetStores().InvoiceRepo.List(ctx, nil)
	s.NoError(err)
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(30)), "no renewal, only the closed period bills")

	// nothing renews, the container has no future coverage left
	_, err = s.GetStores().SubRepo.GetSubscription(ctx, rec.SubscriptionID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
