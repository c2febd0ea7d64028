package types

// PlanDuration is the billing cadence of a plan
type PlanDuration string

const (
	PlanDurationMonthly   PlanDuration = "monthly"
	PlanDurationQuarterly PlanDuration = "quarterly"
	PlanDurationYearly    PlanDuration = "yearly"
)

func (d PlanDuration) Validate() bool {
	switch d {
	case PlanDurationMonthly, PlanDurationQuarterly, PlanDurationYearly:
		return true
	}
	return false
}

// Months returns the number of calendar months the duration spans
func (d PlanDuration) Months() int {
	switch d {
	case PlanDurationQuarterly:
		return 3
	case PlanDurationYearly:
		return 12
	default:
		return 1
	}
}

// TierType is the pricing formula applied within a tier range
type TierType string

const (
	TierTypeFree    TierType = "free"
	TierTypeFlat    TierType = "flat"
	TierTypePerUnit TierType = "per_unit"
)

// RoundingMode is applied to the batch count of a per_unit tier
type RoundingMode string

const (
	RoundingNone    RoundingMode = "none"
	RoundingUp      RoundingMode = "up"
	RoundingDown    RoundingMode = "down"
	RoundingNearest RoundingMode = "nearest"
)

// ChargeTiming controls when a recurring charge is invoiced
type ChargeTiming string

const (
	ChargeTimingInAdvance ChargeTiming = "in_advance"
	ChargeTimingInArrears ChargeTiming = "in_arrears"
)

// ChargeBehavior controls proration of a recurring charge over partial periods
type ChargeBehavior string

const (
	ChargeBehaviorProrate    ChargeBehavior = "prorate"
	ChargeBehaviorChargeFull ChargeBehavior = "charge_full"
)

// PriceAdjustmentType is the kind of per plan version discount or surcharge
type PriceAdjustmentType string

const (
	PriceAdjustmentPercentage    PriceAdjustmentType = "percentage"
	PriceAdjustmentFixed         PriceAdjustmentType = "fixed"
	PriceAdjustmentPriceOverride PriceAdjustmentType = "price_override"
)

// AddOnBillingFrequency is how often an add-on's flat fee recurs
type AddOnBillingFrequency string

const (
	AddOnBillingOneTime   AddOnBillingFrequency = "one_time"
	AddOnBillingRecurring AddOnBillingFrequency = "recurring"
)

// AddOnInvoicingBehavior is when an add-on's flat fee is invoiced
type AddOnInvoicingBehavior string

const (
	AddOnInvoiceOnAttach          AddOnInvoicingBehavior = "on_attach"
	AddOnInvoiceOnSubscriptionEnd AddOnInvoicingBehavior = "on_subscription_end"
)
