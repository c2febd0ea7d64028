package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// AttachPlanParams attaches a customer to a plan
type AttachPlanParams struct {
	CustomerID string
	PlanID     string
	// VersionID pins a specific plan version; empty picks the active one
	VersionID string
	Start     time.Time
	// End overrides the computed period end; zero derives it from the
	// plan duration and the billing container's anchors
	End       time.Time
	Filters   map[string]string
	Quantity  decimal.Decimal
	AutoRenew *bool
}

// CancelParams ends a customer's matching records
type CancelParams struct {
	CustomerID        string
	PlanID            string
	Filters           map[string]string
	FlatFeeBehavior   types.FlatFeeBehavior
	UsageBehavior     types.UsageBehavior
	InvoicingBehavior types.InvoicingBehavior
}

// SwitchPlanParams moves matching records onto a replacement plan
type SwitchPlanParams struct {
	CustomerID        string
	PlanID            string
	Filters           map[string]string
	ReplacePlanID     string
	UsageBehavior     types.UsageBehavior
	InvoicingBehavior types.InvoicingBehavior
}

// UpdateRecordParams edits a record's end date or auto renew flag
type UpdateRecordParams struct {
	CustomerID       string
	PlanID           string
	Filters          map[string]string
	EndDate          *time.Time
	TurnOffAutoRenew bool
}

// AttachAddOnParams attaches an add-on plan under a parent record
type AttachAddOnParams struct {
	CustomerID    string
	ParentPlanID  string
	ParentFilters map[string]string
	AddOnPlanID   string
	Quantity      decimal.Decimal
}

// UpdateAddOnParams edits an attached add-on record
type UpdateAddOnParams struct {
	RecordID          string
	Quantity          *decimal.Decimal
	EndDate           *time.Time
	TurnOffAutoRenew  bool
	InvoicingBehavior types.InvoicingBehavior
}

// CancelAddOnParams ends an attached add-on record
type CancelAddOnParams struct {
	RecordID          string
	FlatFeeBehavior   types.FlatFeeBehavior
	InvoicingBehavior types.InvoicingBehavior
}

// SubscriptionService is the record state machine: attach, cancel, plan
// switch, add-ons and renewal. Records move not_started -> active -> ended
// purely by the clock; mutations only ever adjust the window and flags.
type SubscriptionService interface {
	AttachPlan(ctx context.Context, params AttachPlanParams) (*subscription.SubscriptionRecord, error)
	Cancel(ctx context.Context, params CancelParams) ([]*subscription.SubscriptionRecord, error)
	SwitchPlan(ctx context.Context, params SwitchPlanParams) ([]*subscription.SubscriptionRecord, error)
	UpdateRecord(ctx context.Context, params UpdateRecordParams) ([]*subscription.SubscriptionRecord, error)
	AttachAddOn(ctx context.Context, params AttachAddOnParams) (*subscription.SubscriptionRecord, error)
	UpdateAddOn(ctx context.Context, params UpdateAddOnParams) (*subscription.SubscriptionRecord, error)
	CancelAddOn(ctx context.Context, params CancelAddOnParams) (*subscription.SubscriptionRecord, error)

	GetRecord(ctx context.Context, id string) (*subscription.SubscriptionRecord, error)
	ListRecords(ctx context.Context, filter *subscription.RecordFilter) ([]*subscription.SubscriptionRecord, error)

	// RenewRecord creates the successor of an ended auto renewing record,
	// starting the day after its end date with anchors aligned
	RenewRecord(ctx context.Context, rec *subscription.SubscriptionRecord, billingPlanID string) (*subscription.SubscriptionRecord, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) AttachPlan(ctx context.Context, params AttachPlanParams) (*subscription.SubscriptionRecord, error) {
	if params.CustomerID == "" || params.PlanID == "" {
		return nil, ierr.NewError("customer_id and plan_id are required").
			Mark(ierr.ErrValidation)
	}
	if _, err := s.CustomerRepo.Get(ctx, params.CustomerID); err != nil {
		return nil, err
	}

	pl, err := s.PlanRepo.GetPlan(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	version, err := s.resolveVersion(ctx, params.PlanID, params.VersionID, params.CustomerID)
	if err != nil {
		return nil, err
	}

	start := params.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}

	var rec *subscription.SubscriptionRecord
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		container, err := s.openContainer(ctx, params.CustomerID, pl.PlanDuration, version, start)
		if err != nil {
			return err
		}

		end := params.End
		if end.IsZero() {
			end = types.PeriodEnd(start, pl.PlanDuration, container.DayAnchor, container.MonthAnchor)
		}

		rec = subscription.NewRecord(ctx, params.CustomerID, version.ID, start, end)
		rec.SubscriptionID = container.ID
		rec.Filters = params.Filters
		if params.Quantity.IsPositive() {
			rec.Quantity = params.Quantity
		}
		if params.AutoRenew != nil {
			rec.AutoRenew = *params.AutoRenew
		}
		next := end
		rec.NextBillingDate = &next

		if err := rec.Validate(); err != nil {
			return err
		}
		if err := s.rejectOverlap(ctx, rec, params.PlanID); err != nil {
			return err
		}
		if err := s.SubRepo.CreateRecord(ctx, rec); err != nil {
			return err
		}

		if container.EndDate.Before(end) {
			container.EndDate = end
			if err := s.SubRepo.UpdateSubscription(ctx, container); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("attached plan",
		"customer_id", params.CustomerID,
		"plan_id", params.PlanID,
		"sr_id", rec.ID,
		"start", rec.StartDate,
		"end", rec.EndDate,
	)
	return rec, nil
}

// resolveVersion picks the plan version a new record bills on, respecting
// target customer restrictions
func (s *subscriptionService) resolveVersion(ctx context.Context, planID, versionID, customerID string) (*planDomain.PlanVersion, error) {
	if versionID != "" {
		version, err := s.PlanRepo.GetVersion(ctx, versionID)
		if err != nil {
			return nil, err
		}
		if version.PlanID != planID {
			return nil, ierr.NewError("version does not belong to plan").
				WithHintf("Version %s belongs to a different plan", versionID).
				Mark(ierr.ErrValidation)
		}
		return version, nil
	}

	version, err := s.PlanRepo.GetActiveVersion(ctx, planID)
	if err != nil {
		return nil, err
	}
	if len(version.TargetCustomerIDs) > 0 {
		targeted := false
		for _, id := range version.TargetCustomerIDs {
			if id == customerID {
				targeted = true
				break
			}
		}
		if !targeted {
			return nil, ierr.NewError("plan version not available to customer").
				WithHint("The active plan version targets other customers").
				Mark(ierr.ErrPreconditionFailed)
		}
	}
	return version, nil
}

// openContainer returns the customer's open billing container, creating one
// lazily with anchors derived from the start date and the plan version
func (s *subscriptionService) openContainer(ctx context.Context, customerID string, cadence types.PlanDuration, version *planDomain.PlanVersion, start time.Time) (*subscription.Subscription, error) {
	container, err := s.SubRepo.GetOpenSubscription(ctx, customerID)
	if err == nil {
		return container, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	dayAnchor := version.DayAnchor
	if dayAnchor == 0 {
		dayAnchor = start.Day()
	}
	monthAnchor := version.MonthAnchor
	if monthAnchor == 0 && cadence != types.PlanDurationMonthly {
		monthAnchor = int(start.Month())
	}

	container = &subscription.Subscription{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:     customerID,
		BillingCadence: cadence,
		StartDate:      start,
		EndDate:        types.PeriodEnd(start, cadence, dayAnchor, monthAnchor),
		DayAnchor:      dayAnchor,
		MonthAnchor:    monthAnchor,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := s.SubRepo.CreateSubscription(ctx, container); err != nil {
		return nil, err
	}
	return container, nil
}

// rejectOverlap enforces that records for the same customer and plan with
// identical filters never overlap in time
func (s *subscriptionService) rejectOverlap(ctx context.Context, rec *subscription.SubscriptionRecord, planID string) error {
	existing, err := s.SubRepo.ListRecords(ctx, &subscription.RecordFilter{
		CustomerID: rec.CustomerID,
		RangeStart: &rec.StartDate,
		RangeEnd:   &rec.EndDate,
	})
	if err != nil {
		return err
	}
	versionPlans := map[string]string{}
	for _, other := range existing {
		if other.ID == rec.ID || !other.SameFilters(rec.Filters) {
			continue
		}
		otherPlanID, err := s.planIDFor(ctx, versionPlans, other.BillingPlanID)
		if err != nil {
			return err
		}
		if otherPlanID != planID {
			continue
		}
		if types.Overlaps(rec.StartDate, rec.EndDate, other.StartDate, other.EndDate) {
			return ierr.NewError("overlapping subscription record").
				WithHintf("Customer already has record %s on this plan with the same filters over that window", other.ID).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return nil
}

func (s *subscriptionService) Cancel(ctx context.Context, params CancelParams) ([]*subscription.SubscriptionRecord, error) {
	if params.FlatFeeBehavior != "" && !params.FlatFeeBehavior.Validate() {
		return nil, ierr.NewError("invalid flat_fee_behavior").
			Mark(ierr.ErrValidation)
	}

	now := time.Now().UTC()
	var records []*subscription.SubscriptionRecord
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		records, err = s.matchActiveRecords(ctx, params.CustomerID, params.PlanID, params.Filters)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return ierr.NewError("no active subscription records match").
				WithHint("Nothing to cancel for this customer, plan and filters").
				Mark(ierr.ErrNotFound)
		}
		if err := s.SubRepo.LockRecords(ctx, recordIDs(records)); err != nil {
			return err
		}

		for _, rec := range records {
			rec.EndDate = now
			rec.AutoRenew = false
			rec.FullyBilled = params.InvoicingBehavior == types.InvoiceNow
			rec.InvoiceUsageCharges = params.UsageBehavior != types.UsageBillNone
			if params.FlatFeeBehavior != "" {
				rec.FlatFeeBehavior = params.FlatFeeBehavior
			}
			if err := s.SubRepo.UpdateRecord(ctx, rec); err != nil {
				return err
			}
			// attached add-ons end with their parent
			children, err := s.SubRepo.ListChildren(ctx, rec.ID)
			if err != nil {
				return err
			}
			for _, child := range children {
				if !child.IsActive(now) {
					continue
				}
				child.EndDate = now
				child.AutoRenew = false
				if err := s.SubRepo.UpdateRecord(ctx, child); err != nil {
					return err
				}
			}
		}

		if params.InvoicingBehavior == types.InvoiceNow {
			invoiceSvc := NewInvoiceService(s.ServiceParams)
			if _, err := invoiceSvc.GenerateInvoices(ctx, GenerateInvoiceParams{
				CustomerID: params.CustomerID,
				Records:    records,
				IssueDate:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled subscription records",
		"customer_id", params.CustomerID,
		"plan_id", params.PlanID,
		"count", len(records),
	)
	return records, nil
}

func (s *subscriptionService) SwitchPlan(ctx context.Context, params SwitchPlanParams) ([]*subscription.SubscriptionRecord, error) {
	current, err := s.PlanRepo.GetPlan(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	replacement, err := s.PlanRepo.GetPlan(ctx, params.ReplacePlanID)
	if err != nil {
		return nil, err
	}
	if current.PlanDuration != replacement.PlanDuration {
		return nil, ierr.NewError("replacement plan duration mismatch").
			WithHintf("Cannot switch a %s plan to a %s plan", current.PlanDuration, replacement.PlanDuration).
			Mark(ierr.ErrPreconditionFailed)
	}

	version, err := s.resolveVersion(ctx, params.ReplacePlanID, "", params.CustomerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var replaced []*subscription.SubscriptionRecord
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		records, err := s.matchActiveRecords(ctx, params.CustomerID, params.PlanID, params.Filters)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return ierr.NewError("no active subscription records match").
				Mark(ierr.ErrNotFound)
		}
		if err := s.SubRepo.LockRecords(ctx, recordIDs(records)); err != nil {
			return err
		}

		replaced = make([]*subscription.SubscriptionRecord, 0, len(records))
		for _, old := range records {
			next := subscription.NewRecord(ctx, old.CustomerID, version.ID, now, old.EndDate)
			next.SubscriptionID = old.SubscriptionID
			next.Filters = old.Filters
			next.Quantity = old.Quantity
			next.NextBillingDate = old.NextBillingDate
			next.AutoRenew = old.AutoRenew
			// the replacement starts mid-period, so its in-advance fee covers
			// only the remaining days
			next.FlatFeeBehavior = types.FlatFeeProrate
			if params.UsageBehavior != types.UsageKeepSeparate {
				// accrued usage transfers to the replacement
				next.UsageStartDate = old.UsageStartDate
			}
			if err := s.SubRepo.CreateRecord(ctx, next); err != nil {
				return err
			}

			old.EndDate = now
			old.AutoRenew = false
			old.FlatFeeBehavior = types.FlatFeeProrate
			// usage moved to the replacement record; do not bill it twice
			old.InvoiceUsageCharges = params.UsageBehavior == types.UsageKeepSeparate
			if err := s.SubRepo.UpdateRecord(ctx, old); err != nil {
				return err
			}
			replaced = append(replaced, next)
		}

		if params.InvoicingBehavior == types.InvoiceNow {
			// bill the closed records and the replacements together: the old
			// plan's fee and the new plan's remaining-period fee land on one
			// invoice
			billable := append(append([]*subscription.SubscriptionRecord{}, records...), replaced...)
			invoiceSvc := NewInvoiceService(s.ServiceParams)
			if _, err := invoiceSvc.GenerateInvoices(ctx, GenerateInvoiceParams{
				CustomerID: params.CustomerID,
				Records:    billable,
				IssueDate:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("switched plan",
		"customer_id", params.CustomerID,
		"from_plan", params.PlanID,
		"to_plan", params.ReplacePlanID,
		"count", len(replaced),
	)
	return replaced, nil
}

func (s *subscriptionService) UpdateRecord(ctx context.Context, params UpdateRecordParams) ([]*subscription.SubscriptionRecord, error) {
	var records []*subscription.SubscriptionRecord
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		records, err = s.matchActiveRecords(ctx, params.CustomerID, params.PlanID, params.Filters)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return ierr.NewError("no active subscription records match").
				Mark(ierr.ErrNotFound)
		}
		if err := s.SubRepo.LockRecords(ctx, recordIDs(records)); err != nil {
			return err
		}

		for _, rec := range records {
			if params.EndDate != nil {
				if params.EndDate.Before(rec.StartDate) {
					return ierr.NewError("end_date is before start_date").
						Mark(ierr.ErrValidation)
				}
				rec.EndDate = *params.EndDate
			}
			if params.TurnOffAutoRenew {
				rec.AutoRenew = false
			}
			if err := s.SubRepo.UpdateRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *subscriptionService) AttachAddOn(ctx context.Context, params AttachAddOnParams) (*subscription.SubscriptionRecord, error) {
	parents, err := s.matchActiveRecords(ctx, params.CustomerID, params.ParentPlanID, params.ParentFilters)
	if err != nil {
		return nil, err
	}
	if len(parents) != 1 {
		return nil, ierr.NewError("add-on requires exactly one parent record").
			WithHintf("Found %d active records for the parent plan and filters", len(parents)).
			Mark(ierr.ErrPreconditionFailed)
	}
	parent := parents[0]

	addOnPlan, err := s.PlanRepo.GetPlan(ctx, params.AddOnPlanID)
	if err != nil {
		return nil, err
	}
	if !addOnPlan.IsAddOn {
		return nil, ierr.NewError("plan is not an add-on").
			WithHintf("Plan %s cannot attach to another record", params.AddOnPlanID).
			Mark(ierr.ErrPreconditionFailed)
	}
	version, err := s.resolveVersion(ctx, params.AddOnPlanID, "", params.CustomerID)
	if err != nil {
		return nil, err
	}
	spec := version.AddOnSpec
	if spec == nil {
		return nil, ierr.NewError("add-on version has no specification").
			Mark(ierr.ErrValidation)
	}

	now := time.Now().UTC()
	rec := subscription.NewRecord(ctx, params.CustomerID, version.ID, now, parent.EndDate)
	rec.ParentID = parent.ID
	rec.SubscriptionID = parent.SubscriptionID
	rec.Filters = parent.Filters
	rec.NextBillingDate = parent.NextBillingDate
	if params.Quantity.IsPositive() {
		rec.Quantity = params.Quantity
	}
	if spec.BillingFrequency == types.AddOnBillingOneTime {
		rec.AutoRenew = false
	}

	switch {
	case spec.BillingFrequency == types.AddOnBillingOneTime && spec.FlatFeeInvoicingBehavior == types.AddOnInvoiceOnAttach:
		// invoiced immediately below; nothing left for period end
		rec.FullyBilled = true
	case spec.FlatFeeInvoicingBehavior == types.AddOnInvoiceOnSubscriptionEnd:
		// flat fee rides the parent's next invoice
		rec.FlatFeeBehavior = types.FlatFeeChargeFull
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.LockRecords(ctx, []string{parent.ID}); err != nil {
			return err
		}
		if err := s.SubRepo.CreateRecord(ctx, rec); err != nil {
			return err
		}

		if spec.FlatFeeInvoicingBehavior == types.AddOnInvoiceOnAttach && s.addOnFlatFee(version).IsPositive() {
			invoiceSvc := NewInvoiceService(s.ServiceParams)
			if _, err := invoiceSvc.GenerateInvoices(ctx, GenerateInvoiceParams{
				CustomerID: params.CustomerID,
				Records:    []*subscription.SubscriptionRecord{rec},
				IssueDate:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("attached add-on",
		"customer_id", params.CustomerID,
		"parent_sr", parent.ID,
		"addon_sr", rec.ID,
		"billing_frequency", spec.BillingFrequency,
	)
	return rec, nil
}

// addOnFlatFee sums the version's recurring charge amounts, the add-on's
// flat price
func (s *subscriptionService) addOnFlatFee(version *planDomain.PlanVersion) decimal.Decimal {
	total := decimal.Zero
	for _, charge := range version.RecurringCharges {
		total = total.Add(charge.Amount)
	}
	return total
}

func (s *subscriptionService) UpdateAddOn(ctx context.Context, params UpdateAddOnParams) (*subscription.SubscriptionRecord, error) {
	rec, err := s.SubRepo.GetRecord(ctx, params.RecordID)
	if err != nil {
		return nil, err
	}
	if !rec.IsAddOn() {
		return nil, ierr.NewError("record is not an add-on").
			WithHintf("Record %s has no parent", rec.ID).
			Mark(ierr.ErrPreconditionFailed)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.LockRecords(ctx, []string{rec.ID}); err != nil {
			return err
		}

		if params.Quantity != nil {
			if !params.Quantity.IsPositive() {
				return ierr.NewError("quantity must be positive").
					Mark(ierr.ErrValidation)
			}
			if params.Quantity.LessThan(rec.Quantity) {
				if err := s.creditReducedQuantity(ctx, rec, *params.Quantity); err != nil {
					return err
				}
			}
			rec.Quantity = *params.Quantity
		}
		if params.EndDate != nil {
			rec.EndDate = *params.EndDate
		}
		if params.TurnOffAutoRenew {
			rec.AutoRenew = false
		}

		if err := s.SubRepo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		if params.InvoicingBehavior == types.InvoiceNow {
			invoiceSvc := NewInvoiceService(s.ServiceParams)
			if _, err := invoiceSvc.GenerateInvoices(ctx, GenerateInvoiceParams{
				CustomerID: rec.CustomerID,
				Records:    []*subscription.SubscriptionRecord{rec},
				IssueDate:  time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *subscriptionService) CancelAddOn(ctx context.Context, params CancelAddOnParams) (*subscription.SubscriptionRecord, error) {
	if params.FlatFeeBehavior != "" && !params.FlatFeeBehavior.Validate() {
		return nil, ierr.NewError("invalid flat_fee_behavior").
			Mark(ierr.ErrValidation)
	}

	rec, err := s.SubRepo.GetRecord(ctx, params.RecordID)
	if err != nil {
		return nil, err
	}
	if !rec.IsAddOn() {
		return nil, ierr.NewError("record is not an add-on").
			WithHintf("Record %s has no parent", rec.ID).
			Mark(ierr.ErrPreconditionFailed)
	}
	now := time.Now().UTC()
	if !rec.IsActive(now) {
		return nil, ierr.NewError("add-on record is not active").
			WithHintf("Record %s is already ended", rec.ID).
			Mark(ierr.ErrPreconditionFailed)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.LockRecords(ctx, []string{rec.ID}); err != nil {
			return err
		}

		// refund credits the paid flat fee for the cancelled capacity; the
		// emitted invoice itself is never amended
		if params.FlatFeeBehavior == types.FlatFeeRefund {
			if err := s.creditReducedQuantity(ctx, rec, decimal.Zero); err != nil {
				return err
			}
		}

		rec.EndDate = now
		rec.AutoRenew = false
		rec.FullyBilled = params.InvoicingBehavior == types.InvoiceNow
		if params.FlatFeeBehavior != "" {
			rec.FlatFeeBehavior = params.FlatFeeBehavior
		}
		if err := s.SubRepo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		if params.InvoicingBehavior == types.InvoiceNow {
			invoiceSvc := NewInvoiceService(s.ServiceParams)
			if _, err := invoiceSvc.GenerateInvoices(ctx, GenerateInvoiceParams{
				CustomerID: rec.CustomerID,
				Records:    []*subscription.SubscriptionRecord{rec},
				IssueDate:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled add-on record",
		"record_id", rec.ID,
		"customer_id", rec.CustomerID,
	)
	return rec, nil
}

// creditReducedQuantity mints a credit grant for the paid but no longer
// subscribed fraction of an add-on's flat fee
func (s *subscriptionService) creditReducedQuantity(ctx context.Context, rec *subscription.SubscriptionRecord, newQuantity decimal.Decimal) error {
	invoices, err := s.InvoiceRepo.ListForRecord(ctx, rec.ID, false)
	if err != nil {
		return err
	}

	paidForRecord := decimal.Zero
	currency := ""
	for _, inv := range invoices {
		if inv.PaymentStatus != types.PaymentStatusPaid {
			continue
		}
		for _, li := range inv.LineItems {
			if li.AssociatedRecordID == rec.ID && li.ChargeableItemType == types.ChargeableItemRecurringCharge {
				paidForRecord = paidForRecord.Add(li.Amount)
				currency = inv.Currency
			}
		}
	}
	if !paidForRecord.IsPositive() {
		return nil
	}

	// the overcharged fraction of what was paid
	overcharge := paidForRecord.Mul(rec.Quantity.Sub(newQuantity)).Div(rec.Quantity)
	if !overcharge.IsPositive() {
		return nil
	}

	grant := balance.New(ctx, rec.CustomerID, overcharge, currency, "add-on quantity reduction credit")
	return s.BalanceRepo.Create(ctx, grant)
}

func (s *subscriptionService) GetRecord(ctx context.Context, id string) (*subscription.SubscriptionRecord, error) {
	return s.SubRepo.GetRecord(ctx, id)
}

func (s *subscriptionService) ListRecords(ctx context.Context, filter *subscription.RecordFilter) ([]*subscription.SubscriptionRecord, error) {
	return s.SubRepo.ListRecords(ctx, filter)
}

func (s *subscriptionService) RenewRecord(ctx context.Context, rec *subscription.SubscriptionRecord, billingPlanID string) (*subscription.SubscriptionRecord, error) {
	if !rec.AutoRenew {
		return nil, ierr.NewError("record does not auto renew").
			Mark(ierr.ErrPreconditionFailed)
	}

	container, err := s.SubRepo.GetSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		return nil, err
	}

	start := types.AddClampedDate(rec.EndDate, 0, 0, 1)
	end := types.PeriodEnd(start, container.BillingCadence, container.DayAnchor, container.MonthAnchor)

	next := subscription.NewRecord(ctx, rec.CustomerID, billingPlanID, start, end)
	next.SubscriptionID = rec.SubscriptionID
	next.Filters = rec.Filters
	next.Quantity = rec.Quantity
	next.ParentID = rec.ParentID
	next.IsNew = false
	nextBilling := end
	next.NextBillingDate = &nextBilling

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.LockRecords(ctx, []string{rec.ID}); err != nil {
			return err
		}
		if err := s.SubRepo.CreateRecord(ctx, next); err != nil {
			return err
		}

		if container.EndDate.Before(end) {
			container.EndDate = end
			if err := s.SubRepo.UpdateSubscription(ctx, container); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("renewed subscription record",
		"sr_id", rec.ID,
		"next_sr_id", next.ID,
		"start", start,
		"end", end,
	)
	return next, nil
}

// matchActiveRecords returns the customer's active records on the plan whose
// filters match exactly. An empty plan ID matches all plans.
func (s *subscriptionService) matchActiveRecords(ctx context.Context, customerID, planID string, filters map[string]string) ([]*subscription.SubscriptionRecord, error) {
	now := time.Now().UTC()
	records, err := s.SubRepo.ListRecords(ctx, &subscription.RecordFilter{
		CustomerID: customerID,
		ActiveAt:   &now,
	})
	if err != nil {
		return nil, err
	}

	versionPlans := map[string]string{}
	var out []*subscription.SubscriptionRecord
	for _, rec := range records {
		if rec.IsAddOn() {
			continue
		}
		if planID != "" {
			recPlanID, err := s.planIDFor(ctx, versionPlans, rec.BillingPlanID)
			if err != nil {
				return nil, err
			}
			if recPlanID != planID {
				continue
			}
		}
		if len(filters) == 0 || rec.SameFilters(filters) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// planIDFor resolves the plan identity a record's billing version belongs to
func (s *subscriptionService) planIDFor(ctx context.Context, cache map[string]string, versionID string) (string, error) {
	if id, ok := cache[versionID]; ok {
		return id, nil
	}
	version, err := s.PlanRepo.GetVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	cache[versionID] = version.PlanID
	return version.PlanID, nil
}
