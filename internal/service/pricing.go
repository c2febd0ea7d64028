package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// PricingService turns measured quantities into money. All math carries
// full decimal precision; rounding to currency precision happens only when
// an invoice materializes its amount.
type PricingService interface {
	// TierRevenue prices a quantity under a component's tiers
	TierRevenue(component *plan.PlanComponent, quantity decimal.Decimal) (decimal.Decimal, error)

	// RecurringAmountDue computes a recurring charge's fee for a record
	// over the billing period
	RecurringAmountDue(charge *plan.RecurringCharge, sr *subscription.SubscriptionRecord, periodStart, periodEnd time.Time) decimal.Decimal

	// AmountAlreadyInvoiced sums prior non-draft line items for the charge
	// on the record, so mid-period switches never double bill
	AmountAlreadyInvoiced(ctx context.Context, srID, chargeID string) (decimal.Decimal, error)

	// AdjustmentAmount computes the plan level adjustment over a version's
	// line item total, netting what prior invoices already applied
	AdjustmentAmount(adj *plan.PriceAdjustment, total, alreadyApplied decimal.Decimal) decimal.Decimal
}

type pricingService struct {
	ServiceParams
}

func NewPricingService(params ServiceParams) PricingService {
	return &pricingService{ServiceParams: params}
}

func (s *pricingService) TierRevenue(component *plan.PlanComponent, quantity decimal.Decimal) (decimal.Decimal, error) {
	if len(component.Tiers) == 0 {
		return decimal.Zero, ierr.NewError("component has no tiers").
			WithHintf("Component %s has no price tiers", component.ID).
			Mark(ierr.ErrValidation)
	}
	if quantity.IsNegative() {
		quantity = decimal.Zero
	}

	if component.BulkPricingEnabled {
		return bulkRevenue(component.Tiers, quantity)
	}

	total := decimal.Zero
	for i := range component.Tiers {
		tier := &component.Tiers[i]
		total = total.Add(tierContribution(tier, quantity))
	}
	return total, nil
}

// tierContribution prices the slice of quantity falling inside one tier
func tierContribution(tier *plan.PriceTier, quantity decimal.Decimal) decimal.Decimal {
	if quantity.LessThanOrEqual(tier.RangeStart) {
		return decimal.Zero
	}

	inTier := quantity.Sub(tier.RangeStart)
	if tier.RangeEnd != nil {
		width := tier.RangeEnd.Sub(tier.RangeStart)
		if inTier.GreaterThan(width) {
			inTier = width
		}
	}
	if inTier.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	switch tier.Type {
	case types.TierTypeFree:
		return decimal.Zero
	case types.TierTypeFlat:
		return tier.CostPerBatch
	case types.TierTypePerUnit:
		return batchRevenue(tier, inTier)
	}
	return decimal.Zero
}

// bulkRevenue prices the whole quantity under the single tier containing it
func bulkRevenue(tiers []plan.PriceTier, quantity decimal.Decimal) (decimal.Decimal, error) {
	for i := range tiers {
		tier := &tiers[i]
		if quantity.LessThan(tier.RangeStart) {
			continue
		}
		if tier.RangeEnd != nil && quantity.GreaterThan(*tier.RangeEnd) {
			continue
		}
		switch tier.Type {
		case types.TierTypeFree:
			return decimal.Zero, nil
		case types.TierTypeFlat:
			if quantity.IsPositive() {
				return tier.CostPerBatch, nil
			}
			return decimal.Zero, nil
		case types.TierTypePerUnit:
			return batchRevenue(tier, quantity), nil
		}
	}
	return decimal.Zero, ierr.NewError("quantity outside all tiers").
		WithHintf("No tier covers quantity %s", quantity).
		Mark(ierr.ErrValidation)
}

func batchRevenue(tier *plan.PriceTier, units decimal.Decimal) decimal.Decimal {
	unitsPerBatch := tier.UnitsPerBatch
	if unitsPerBatch.LessThanOrEqual(decimal.Zero) {
		unitsPerBatch = decimal.NewFromInt(1)
	}
	batches := units.Div(unitsPerBatch)
	switch tier.Rounding {
	case types.RoundingUp:
		batches = batches.Ceil()
	case types.RoundingDown:
		batches = batches.Floor()
	case types.RoundingNearest:
		batches = batches.Round(0)
	}
	return batches.Mul(tier.CostPerBatch)
}

func (s *pricingService) RecurringAmountDue(charge *plan.RecurringCharge, sr *subscription.SubscriptionRecord, periodStart, periodEnd time.Time) decimal.Decimal {
	full := charge.Amount.Mul(sr.Quantity)

	if charge.ChargeBehavior != types.ChargeBehaviorProrate {
		return full
	}

	periodSecs := int64(periodEnd.Sub(periodStart) / time.Second)
	if periodSecs <= 0 {
		return decimal.Zero
	}

	coveredStart := periodStart
	if sr.StartDate.After(coveredStart) {
		coveredStart = sr.StartDate
	}
	// An in-advance fee accrues in full the moment its period opens, so an
	// early end date does not shrink it. Only a late start prorates it;
	// clawing back unused days is what the refund behavior is for.
	coveredEnd := periodEnd
	if charge.ChargeTiming == types.ChargeTimingInArrears && sr.EndDate.Before(coveredEnd) {
		coveredEnd = sr.EndDate
	}
	coveredSecs := int64(coveredEnd.Sub(coveredStart) / time.Second)
	if coveredSecs <= 0 {
		return decimal.Zero
	}
	if coveredSecs >= periodSecs {
		return full
	}
	// exact integer ratio keeps float noise out of money
	return full.Mul(decimal.NewFromInt(coveredSecs)).
		Div(decimal.NewFromInt(periodSecs))
}

func (s *pricingService) AmountAlreadyInvoiced(ctx context.Context, srID, chargeID string) (decimal.Decimal, error) {
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
			if li.AssociatedRecordID == srID && li.AssociatedChargeID == chargeID {
				total = total.Add(li.Amount)
			}
		}
	}
	return total, nil
}

func (s *pricingService) AdjustmentAmount(adj *plan.PriceAdjustment, total, alreadyApplied decimal.Decimal) decimal.Decimal {
	if adj == nil {
		return decimal.Zero
	}
	switch adj.Type {
	case types.PriceAdjustmentPercentage:
		return total.Mul(adj.Amount).Div(decimal.NewFromInt(100))
	case types.PriceAdjustmentFixed:
		return adj.Amount.Sub(alreadyApplied)
	case types.PriceAdjustmentPriceOverride:
		return adj.Amount.Sub(total).Sub(alreadyApplied)
	}
	return decimal.Zero
}
