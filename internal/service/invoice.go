package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tax"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/tenant"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/idempotency"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/meters"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// nearZero is the threshold under which a residual amount is treated as
// settled rather than billed
var nearZero = decimal.NewFromFloat(0.01)

// GenerateInvoiceParams drives one builder run for one customer
type GenerateInvoiceParams struct {
	CustomerID string

	// Records to bill; every record must belong to CustomerID
	Records []*subscription.SubscriptionRecord

	// Draft builds a preview: no balance application, no payment object,
	// no tax provider calls beyond configured static rates
	Draft bool

	// ChargeNextPlan bills next period's in_advance charges on this invoice
	ChargeNextPlan bool

	// GenerateNextRecord renews auto renewing records whose period closed
	GenerateNextRecord bool

	// IssueDate defaults to now
	IssueDate time.Time
}

// InvoiceService builds invoices from subscription records. One run emits
// at most one invoice per currency; re-running with the same record set and
// issue date returns the existing invoice instead of a new one.
type InvoiceService interface {
	GenerateInvoices(ctx context.Context, params GenerateInvoiceParams) ([]*invoice.Invoice, error)
	Get(ctx context.Context, id string) (*invoice.Invoice, error)
	List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error)
	// UpdatePaymentStatus patches the invoice's payment status; voided and
	// paid invoices are terminal
	UpdatePaymentStatus(ctx context.Context, id string, status types.PaymentStatus) (*invoice.Invoice, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) GenerateInvoices(ctx context.Context, params GenerateInvoiceParams) ([]*invoice.Invoice, error) {
	if params.CustomerID == "" {
		return nil, ierr.NewError("customer_id is required").
			Mark(ierr.ErrValidation)
	}
	if len(params.Records) == 0 {
		return nil, ierr.NewError("no subscription records to bill").
			Mark(ierr.ErrValidation)
	}
	for _, rec := range params.Records {
		if rec.CustomerID != params.CustomerID {
			return nil, ierr.NewError("record belongs to another customer").
				WithHintf("Record %s is not owned by customer %s", rec.ID, params.CustomerID).
				Mark(ierr.ErrValidation)
		}
	}

	cust, err := s.CustomerRepo.Get(ctx, params.CustomerID)
	if err != nil {
		return nil, err
	}
	org, err := s.TenantRepo.GetOrganization(ctx, types.GetOrganizationID(ctx))
	if err != nil {
		return nil, err
	}

	issueDate := params.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}

	versions, err := s.loadVersions(ctx, params.Records)
	if err != nil {
		return nil, err
	}

	// one invoice per currency
	byCurrency := map[string][]*subscription.SubscriptionRecord{}
	for _, rec := range params.Records {
		currency := versions[rec.BillingPlanID].Currency
		if currency == "" {
			currency = cust.DefaultCurrency
		}
		byCurrency[currency] = append(byCurrency[currency], rec)
	}
	currencies := lo.Keys(byCurrency)
	sort.Strings(currencies)

	var out []*invoice.Invoice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// row locks serialize concurrent billers netting the same records
		if err := s.SubRepo.LockRecords(ctx, recordIDs(params.Records)); err != nil {
			return err
		}
		for _, currency := range currencies {
			inv, err := s.buildForCurrency(ctx, buildInput{
				params:    params,
				customer:  cust,
				org:       org,
				currency:  currency,
				records:   byCurrency[currency],
				versions:  versions,
				issueDate: issueDate,
			})
			if err != nil {
				return err
			}
			if inv != nil {
				out = append(out, inv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type buildInput struct {
	params    GenerateInvoiceParams
	customer  *customer.Customer
	org       *tenant.Organization
	currency  string
	records   []*subscription.SubscriptionRecord
	versions  map[string]*planDomain.PlanVersion
	issueDate time.Time
}

func (s *invoiceService) buildForCurrency(ctx context.Context, in buildInput) (*invoice.Invoice, error) {
	existing, err := s.findExisting(ctx, in.records, in.issueDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.PaymentStatus != types.PaymentStatusDraft {
			// issued invoices are immutable per record set and issue date
			return existing, nil
		}
		// drafts are rebuilt from scratch on every run
		existing.LineItems = nil
	}

	graceDays := in.org.PaymentGracePeriodDays
	if graceDays == 0 {
		graceDays = s.Config.Billing.PaymentGracePeriodDays
	}
	dueDate := in.issueDate.AddDate(0, 0, graceDays)

	inv := existing
	if inv == nil {
		inv = invoice.New(ctx, in.params.CustomerID, in.currency, in.issueDate, dueDate)
		inv.SubscriptionRecordIDs = recordIDs(in.records)
	}
	if !in.params.Draft {
		inv.PaymentStatus = types.PaymentStatusUnpaid
	}

	pricing := NewPricingService(s.ServiceParams)

	for _, rec := range in.records {
		version := in.versions[rec.BillingPlanID]
		if err := s.addRecurringLines(ctx, inv, pricing, rec, version, in.issueDate); err != nil {
			return nil, err
		}
		if rec.InvoiceUsageCharges {
			if err := s.addUsageLines(ctx, inv, pricing, rec, version); err != nil {
				return nil, err
			}
		}
	}

	if err := s.addRenewalLines(ctx, inv, in); err != nil {
		return nil, err
	}

	if err := s.addPlanAdjustments(ctx, inv, pricing, in); err != nil {
		return nil, err
	}

	if err := s.addTaxes(ctx, inv, in); err != nil {
		return nil, err
	}

	if !in.params.Draft {
		if err := s.applyBalance(ctx, inv, in); err != nil {
			return nil, err
		}
	}

	inv.Finalize()
	if err := inv.CheckAmountInvariant(); err != nil {
		return nil, err
	}
	if !in.params.Draft && inv.Amount.Abs().LessThan(nearZero) {
		inv.PaymentStatus = types.PaymentStatusPaid
	}

	if !in.params.Draft && inv.PaymentStatus == types.PaymentStatusUnpaid && s.PaymentProvider != nil {
		key := idempotency.NewGenerator().GenerateKey(idempotency.ScopePayment, map[string]interface{}{
			"invoice_id": inv.ID,
			"amount":     inv.Amount.String(),
			"currency":   inv.Currency,
		})
		ref, err := s.PaymentProvider.CreatePaymentObject(ctx, in.customer.CustomerID, inv.Amount, inv.Currency, key)
		if err != nil {
			s.Logger.Errorw("payment object creation failed",
				"invoice_id", inv.ID,
				"error", err,
			)
		} else if ref != "" {
			inv.ExternalPaymentObjRef = ref
			inv.ExternalPaymentObjTyp = s.PaymentProvider.Name()
		}
	}

	if existing != nil {
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return nil, err
		}
	} else {
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return nil, err
		}
	}

	if !in.params.Draft {
		for _, rec := range in.records {
			if rec.EndDate.After(in.issueDate) {
				continue
			}
			rec.FullyBilled = true
			if err := s.SubRepo.UpdateRecord(ctx, rec); err != nil {
				return nil, err
			}
		}
		s.publishCreated(ctx, inv)
	}

	s.Logger.Infow("built invoice",
		"invoice_id", inv.ID,
		"customer_id", inv.CustomerID,
		"currency", inv.Currency,
		"amount", inv.Amount,
		"status", inv.PaymentStatus,
		"line_items", len(inv.LineItems),
	)
	return inv, nil
}

// findExisting locates a prior invoice covering the same record set on the
// same issue date
func (s *invoiceService) findExisting(ctx context.Context, records []*subscription.SubscriptionRecord, issueDate time.Time) (*invoice.Invoice, error) {
	if len(records) == 0 {
		return nil, nil
	}
	candidates, err := s.InvoiceRepo.ListForRecord(ctx, records[0].ID, true)
	if err != nil {
		return nil, err
	}
	want := recordSetKey(recordIDs(records))
	for _, inv := range candidates {
		if inv.PaymentStatus == types.PaymentStatusVoided {
			continue
		}
		if recordSetKey(inv.SubscriptionRecordIDs) != want {
			continue
		}
		y1, m1, d1 := inv.IssueDate.UTC().Date()
		y2, m2, d2 := issueDate.UTC().Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			return inv, nil
		}
	}
	return nil, nil
}

func (s *invoiceService) addRecurringLines(ctx context.Context, inv *invoice.Invoice, pricing PricingService, rec *subscription.SubscriptionRecord, version *planDomain.PlanVersion, issueDate time.Time) error {
	periodEnd := rec.EndDate
	if rec.NextBillingDate != nil && rec.NextBillingDate.After(periodEnd) {
		periodEnd = *rec.NextBillingDate
	}
	cadence := s.cadenceFor(ctx, rec)

	for i := range version.RecurringCharges {
		charge := version.RecurringCharges[i]

		// The billing period is one charge interval ending at the record's
		// period boundary. A record attached mid-period covers only part of
		// it, which is what proration divides against.
		interval := cadence
		if charge.ResetInterval != nil {
			interval = *charge.ResetInterval
		}
		periodStart := types.AddClampedDate(periodEnd, 0, -interval.Months(), 0)

		var due decimal.Decimal
		switch rec.FlatFeeBehavior {
		case types.FlatFeeRefund:
			due = decimal.Zero
		case types.FlatFeeProrate:
			prorated := charge
			prorated.ChargeBehavior = types.ChargeBehaviorProrate
			due = pricing.RecurringAmountDue(&prorated, rec, periodStart, periodEnd)
		default:
			due = pricing.RecurringAmountDue(&charge, rec, periodStart, periodEnd)
		}

		alreadyBilled, err := pricing.AmountAlreadyInvoiced(ctx, rec.ID, charge.ID)
		if err != nil {
			return err
		}

		if due.Sub(alreadyBilled).Abs().LessThan(nearZero) {
			continue
		}
		if charge.ChargeTiming == types.ChargeTimingInArrears && rec.EndDate.After(issueDate) {
			// arrears charges wait for the period to close
			continue
		}

		billingType := types.BillingTypeInAdvance
		if charge.ChargeTiming == types.ChargeTimingInArrears {
			billingType = types.BillingTypeInArrears
		}

		inv.AddLineItem(invoice.LineItem{
			Name:                    charge.Name,
			StartDate:               rec.StartDate,
			EndDate:                 rec.EndDate,
			Base:                    due,
			BillingType:             billingType,
			ChargeableItemType:      types.ChargeableItemRecurringCharge,
			AssociatedRecordID:      rec.ID,
			AssociatedPlanVersionID: version.ID,
			AssociatedChargeID:      charge.ID,
		})
		if alreadyBilled.IsPositive() {
			inv.AddLineItem(invoice.LineItem{
				Name:                    charge.Name + " (already billed)",
				StartDate:               rec.StartDate,
				EndDate:                 rec.EndDate,
				Base:                    alreadyBilled.Neg(),
				BillingType:             billingType,
				ChargeableItemType:      types.ChargeableItemRecurringCharge,
				AssociatedRecordID:      rec.ID,
				AssociatedPlanVersionID: version.ID,
				AssociatedChargeID:      charge.ID,
			})
		}
	}
	return nil
}

func (s *invoiceService) addUsageLines(ctx context.Context, inv *invoice.Invoice, pricing PricingService, rec *subscription.SubscriptionRecord, version *planDomain.PlanVersion) error {
	for i := range version.Components {
		component := &version.Components[i]

		met, err := s.MetricRepo.Get(ctx, component.MetricID)
		if err != nil {
			return err
		}
		handler, err := meters.NewHandler(met, s.EventRepo)
		if err != nil {
			return err
		}

		quantity, err := handler.BillableUsage(ctx, rec, rec.UsageStartDate, rec.EndDate)
		if err != nil {
			return err
		}
		revenue, err := pricing.TierRevenue(component, quantity)
		if err != nil {
			return err
		}
		if quantity.IsZero() && revenue.IsZero() {
			continue
		}

		qty := quantity
		inv.AddLineItem(invoice.LineItem{
			Name:                    met.EventName + " usage",
			StartDate:               rec.UsageStartDate,
			EndDate:                 rec.EndDate,
			Quantity:                &qty,
			Base:                    revenue,
			BillingType:             types.BillingTypeInArrears,
			ChargeableItemType:      types.ChargeableItemUsageCharge,
			AssociatedRecordID:      rec.ID,
			AssociatedPlanVersionID: version.ID,
		})
	}
	return nil
}

// addRenewalLines renews closed auto renewing records and, when requested,
// bills next period's in_advance flat fees on this invoice
func (s *invoiceService) addRenewalLines(ctx context.Context, inv *invoice.Invoice, in buildInput) error {
	if !in.params.GenerateNextRecord && !in.params.ChargeNextPlan {
		return nil
	}

	subSvc := NewSubscriptionService(s.ServiceParams)

	for _, rec := range in.records {
		if !s.renews(ctx, rec, in.issueDate) {
			continue
		}

		nextVersion, err := s.nextBillingVersion(ctx, in.versions[rec.BillingPlanID])
		if err != nil {
			return err
		}

		var next *subscription.SubscriptionRecord
		if in.params.GenerateNextRecord && !rec.EndDate.After(in.issueDate) {
			next, err = subSvc.RenewRecord(ctx, rec, nextVersion.ID)
			if err != nil {
				return err
			}
		}

		if !in.params.ChargeNextPlan {
			continue
		}

		nextStart := types.AddClampedDate(rec.EndDate, 0, 0, 1)
		nextEnd := types.PeriodEnd(nextStart, s.cadenceFor(ctx, rec), 0, 0)
		if next != nil {
			nextStart, nextEnd = next.StartDate, next.EndDate
		}

		for i := range nextVersion.RecurringCharges {
			charge := nextVersion.RecurringCharges[i]
			if charge.ChargeTiming != types.ChargeTimingInAdvance {
				continue
			}
			amount := charge.Amount.Mul(rec.Quantity)
			if !amount.IsPositive() {
				continue
			}
			inv.AddLineItem(invoice.LineItem{
				Name:                    charge.Name,
				StartDate:               nextStart,
				EndDate:                 nextEnd,
				Base:                    amount,
				BillingType:             types.BillingTypeInAdvance,
				ChargeableItemType:      types.ChargeableItemRecurringCharge,
				AssociatedRecordID:      lo.TernaryF(next != nil, func() string { return next.ID }, func() string { return rec.ID }),
				AssociatedPlanVersionID: nextVersion.ID,
				AssociatedChargeID:      charge.ID,
			})
		}
	}
	return nil
}

// renews reports whether the record continues past this billing run
func (s *invoiceService) renews(ctx context.Context, rec *subscription.SubscriptionRecord, issueDate time.Time) bool {
	if !rec.AutoRenew || rec.EndDate.Before(issueDate) {
		return false
	}
	if rec.ParentID == "" {
		return true
	}
	parent, err := s.SubRepo.GetRecord(ctx, rec.ParentID)
	if err != nil {
		return false
	}
	return parent.AutoRenew
}

// nextBillingVersion resolves the version the record renews onto:
// transition target, then replacement version, then the current version
func (s *invoiceService) nextBillingVersion(ctx context.Context, current *planDomain.PlanVersion) (*planDomain.PlanVersion, error) {
	if current.TransitionToID != "" {
		return s.PlanRepo.GetActiveVersion(ctx, current.TransitionToID)
	}
	if current.ReplaceWithID != "" {
		return s.PlanRepo.GetVersion(ctx, current.ReplaceWithID)
	}
	return current, nil
}

func (s *invoiceService) cadenceFor(ctx context.Context, rec *subscription.SubscriptionRecord) types.PlanDuration {
	container, err := s.SubRepo.GetSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		return types.PlanDurationMonthly
	}
	return container.BillingCadence
}

// addPlanAdjustments applies each version's price adjustment over that
// version's line items on this invoice. Percentage adjustments attach per
// line item; fixed and override adjustments emit one plan_adjustment line,
// netting what prior invoices already applied.
func (s *invoiceService) addPlanAdjustments(ctx context.Context, inv *invoice.Invoice, pricing PricingService, in buildInput) error {
	for _, rec := range in.records {
		version := in.versions[rec.BillingPlanID]
		adj := version.PriceAdjustment
		if adj == nil {
			continue
		}

		total := decimal.Zero
		for i := range inv.LineItems {
			li := &inv.LineItems[i]
			if li.AssociatedRecordID != rec.ID || li.ChargeableItemType == types.ChargeableItemPlanAdjustment {
				continue
			}
			total = total.Add(li.Base)
		}

		if adj.Type == types.PriceAdjustmentPercentage {
			name := "Plan discount"
			adjType := types.AdjustmentPlanDiscount
			if adj.Amount.IsPositive() {
				name = "Plan surcharge"
				adjType = types.AdjustmentPlanSurcharge
			}
			for i := range inv.LineItems {
				li := &inv.LineItems[i]
				if li.AssociatedRecordID != rec.ID || li.ChargeableItemType == types.ChargeableItemPlanAdjustment {
					continue
				}
				li.Adjustments = append(li.Adjustments, invoice.Adjustment{
					Type:   adjType,
					Name:   name,
					Amount: li.Base.Mul(adj.Amount).Div(decimal.NewFromInt(100)),
				})
			}
			continue
		}

		alreadyApplied, err := s.appliedAdjustment(ctx, rec.ID, version.ID)
		if err != nil {
			return err
		}
		amount := pricing.AdjustmentAmount(adj, total, alreadyApplied)
		if amount.Abs().LessThan(nearZero) {
			continue
		}
		inv.AddLineItem(invoice.LineItem{
			Name:                    "Plan price adjustment",
			StartDate:               rec.StartDate,
			EndDate:                 rec.EndDate,
			Base:                    amount,
			BillingType:             types.BillingTypeOneTime,
			ChargeableItemType:      types.ChargeableItemPlanAdjustment,
			AssociatedRecordID:      rec.ID,
			AssociatedPlanVersionID: version.ID,
		})
	}
	return nil
}

// appliedAdjustment sums prior plan_adjustment line items for the record
// and version on non-voided issued invoices
func (s *invoiceService) appliedAdjustment(ctx context.Context, srID, versionID string) (decimal.Decimal, error) {
	invoices, err := s.InvoiceRepo.ListForRecord(ctx, srID, false)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.PaymentStatus == types.PaymentStatusVoided {
			continue
		}
		for _, li := range inv.LineItems {
			if li.AssociatedRecordID == srID &&
				li.AssociatedPlanVersionID == versionID &&
				li.ChargeableItemType == types.ChargeableItemPlanAdjustment {
				total = total.Add(li.Amount)
			}
		}
	}
	return total, nil
}

// addTaxes attaches a sales_tax adjustment to every line item of a record
// whose resolved rate is non-zero. Providers are consulted customer first,
// then the wired external providers, then the organization fallback; the
// first answer wins and is cached per plan version.
func (s *invoiceService) addTaxes(ctx context.Context, inv *invoice.Invoice, in buildInput) error {
	providers := s.taxChain(in.customer, in.org)
	if len(providers) == 0 {
		return nil
	}

	rateByVersion := map[string]decimal.Decimal{}
	for _, rec := range in.records {
		versionID := in.versions[rec.BillingPlanID].ID

		rate, cached := rateByVersion[versionID]
		if !cached {
			for _, provider := range providers {
				r, ok, err := provider.GetTaxRate(ctx, rec.CustomerID, versionID)
				if err != nil {
					if in.params.Draft {
						// drafts tolerate unreachable providers
						continue
					}
					return err
				}
				if ok {
					rate = r
					break
				}
			}
			rateByVersion[versionID] = rate
		}
		if rate.IsZero() {
			continue
		}

		for i := range inv.LineItems {
			li := &inv.LineItems[i]
			if li.AssociatedRecordID != rec.ID {
				continue
			}
			li.Adjustments = append(li.Adjustments, invoice.Adjustment{
				Type:   types.AdjustmentSalesTax,
				Name:   "Sales tax",
				Amount: li.Base.Mul(rate).Div(decimal.NewFromInt(100)),
			})
		}
	}
	return nil
}

func (s *invoiceService) taxChain(cust *customer.Customer, org *tenant.Organization) []tax.Provider {
	var chain []tax.Provider
	if cust.TaxRate != nil {
		chain = append(chain, tax.NewStaticProvider("customer", decimal.NewFromFloat(*cust.TaxRate)))
	}
	chain = append(chain, s.TaxProviders...)
	if org.TaxRate != nil {
		chain = append(chain, tax.NewStaticProvider("organization", decimal.NewFromFloat(*org.TaxRate)))
	}
	return chain
}

// applyBalance settles the invoice against the customer's credit balance.
// A negative invoice mints a grant; a positive one draws existing grants
// soonest expiring first.
func (s *invoiceService) applyBalance(ctx context.Context, inv *invoice.Invoice, in buildInput) error {
	amount := decimal.Zero
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		lineAmount := li.Base
		for _, adj := range li.Adjustments {
			lineAmount = lineAmount.Add(adj.Amount)
		}
		amount = amount.Add(lineAmount)
	}

	switch {
	case amount.IsNegative():
		credit := amount.Neg()
		grant := balance.New(ctx, inv.CustomerID, credit, inv.Currency, "credited from invoice "+inv.ID)
		if err := s.BalanceRepo.Create(ctx, grant); err != nil {
			return err
		}
		inv.AddLineItem(invoice.LineItem{
			Name:               "Credited to balance",
			StartDate:          inv.IssueDate,
			EndDate:            inv.IssueDate,
			Base:               credit,
			BillingType:        types.BillingTypeOneTime,
			ChargeableItemType: types.ChargeableItemCustomerAdjustment,
		})

	case amount.IsPositive():
		grants, err := s.BalanceRepo.ListActive(ctx, inv.CustomerID, inv.Currency)
		if err != nil {
			return err
		}
		drawnTotal := decimal.Zero
		remaining := amount
		for _, grant := range grants {
			if !remaining.IsPositive() {
				break
			}
			drawn, err := grant.DrawDown(remaining, types.DrawdownReasonInvoice, inv.ID)
			if err != nil {
				return err
			}
			if drawn.IsZero() {
				continue
			}
			if err := s.BalanceRepo.Update(ctx, grant); err != nil {
				return err
			}
			drawnTotal = drawnTotal.Add(drawn)
			remaining = remaining.Sub(drawn)
		}
		if drawnTotal.IsPositive() {
			inv.AddLineItem(invoice.LineItem{
				Name:               "Applied from balance",
				StartDate:          inv.IssueDate,
				EndDate:            inv.IssueDate,
				Base:               drawnTotal.Neg(),
				BillingType:        types.BillingTypeOneTime,
				ChargeableItemType: types.ChargeableItemCustomerAdjustment,
			})
		}
	}
	return nil
}

func (s *invoiceService) publishCreated(ctx context.Context, inv *invoice.Invoice) {
	err := s.TaskQueue.Enqueue(ctx, taskqueue.TaskWebhookDispatch, map[string]any{
		"topic":       types.TopicInvoiceCreated,
		"invoice_id":  inv.ID,
		"customer_id": inv.CustomerID,
		"currency":    inv.Currency,
		"amount":      inv.Amount.String(),
		"status":      inv.PaymentStatus,
	})
	if err != nil {
		s.Logger.Errorw("invoice.created dispatch failed",
			"invoice_id", inv.ID,
			"error", err,
		)
	}
}

func (s *invoiceService) loadVersions(ctx context.Context, records []*subscription.SubscriptionRecord) (map[string]*planDomain.PlanVersion, error) {
	versions := map[string]*planDomain.PlanVersion{}
	for _, rec := range records {
		if _, ok := versions[rec.BillingPlanID]; ok {
			continue
		}
		version, err := s.PlanRepo.GetVersion(ctx, rec.BillingPlanID)
		if err != nil {
			return nil, err
		}
		versions[rec.BillingPlanID] = version
	}
	return versions, nil
}

func (s *invoiceService) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.Get(ctx, id)
}

func (s *invoiceService) List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error) {
	return s.InvoiceRepo.List(ctx, filter)
}

func (s *invoiceService) UpdatePaymentStatus(ctx context.Context, id string, status types.PaymentStatus) (*invoice.Invoice, error) {
	if !status.Validate() {
		return nil, ierr.NewError("invalid payment status").
			WithHintf("%s is not a payment status", status).
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.PaymentStatus {
	case types.PaymentStatusPaid, types.PaymentStatusVoided:
		return nil, ierr.NewError("invoice is in a terminal status").
			WithHintf("Invoice %s is already %s", id, inv.PaymentStatus).
			Mark(ierr.ErrPreconditionFailed)
	}
	if status == types.PaymentStatusDraft && inv.PaymentStatus != types.PaymentStatusDraft {
		return nil, ierr.NewError("issued invoices cannot return to draft").
			Mark(ierr.ErrPreconditionFailed)
	}

	inv.PaymentStatus = status
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func recordIDs(records []*subscription.SubscriptionRecord) []string {
	return lo.Map(records, func(rec *subscription.SubscriptionRecord, _ int) string {
		return rec.ID
	})
}

// recordSetKey builds an order independent identity for a record set
func recordSetKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
