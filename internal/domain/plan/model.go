package plan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Plan groups versions under a stable identity and carries the billing
// cadence shared by all of them.
type Plan struct {
	ID string `db:"id" json:"plan_id"`

	PlanName string `db:"plan_name" json:"plan_name"`

	PlanDuration types.PlanDuration `db:"plan_duration" json:"plan_duration"`

	// IsAddOn marks plans that attach to a parent subscription record
	IsAddOn bool `db:"is_addon" json:"is_addon"`

	Tags []string `db:"tags" json:"tags,omitempty"`

	types.BaseModel
}

// PlanVersion is an immutable-after-activation pricing configuration.
type PlanVersion struct {
	ID string `db:"id" json:"version_id"`

	PlanID string `db:"plan_id" json:"plan_id"`

	Version int `db:"version" json:"version"`

	Currency string `db:"currency" json:"currency"`

	Components []PlanComponent `db:"components" json:"components"`

	RecurringCharges []RecurringCharge `db:"recurring_charges" json:"recurring_charges"`

	Features []Feature `db:"features" json:"features,omitempty"`

	PriceAdjustment *PriceAdjustment `db:"price_adjustment" json:"price_adjustment,omitempty"`

	// DayAnchor and MonthAnchor align billing dates of subscriptions on
	// this version; zero means derive from the subscription start
	DayAnchor   int `db:"day_anchor" json:"day_anchor,omitempty"`
	MonthAnchor int `db:"month_anchor" json:"month_anchor,omitempty"`

	ActiveFrom time.Time  `db:"active_from" json:"active_from"`
	ActiveTo   *time.Time `db:"active_to" json:"active_to,omitempty"`

	// ReplaceWith points to the version new renewals move to; TransitionTo
	// points to a different plan entirely
	ReplaceWithID  string `db:"replace_with_id" json:"replace_with_id,omitempty"`
	TransitionToID string `db:"transition_to_id" json:"transition_to_id,omitempty"`

	// TargetCustomerIDs restricts the version to specific customers
	TargetCustomerIDs []string `db:"target_customer_ids" json:"target_customer_ids,omitempty"`

	LocalizedName string `db:"localized_name" json:"localized_name,omitempty"`

	// AddOnSpec is only present on versions of add-on plans
	AddOnSpec *AddOnSpecification `db:"addon_spec" json:"addon_spec,omitempty"`

	types.BaseModel
}

// PlanComponent prices one metric's usage with tiers.
type PlanComponent struct {
	ID string `json:"component_id"`

	MetricID string `json:"metric_id"`

	Tiers []PriceTier `json:"tiers"`

	// InvoicingInterval and ResetInterval default to the plan duration
	InvoicingInterval *types.PlanDuration `json:"invoicing_interval,omitempty"`
	ResetInterval     *types.PlanDuration `json:"reset_interval,omitempty"`

	// PrepaidCharge bills an expected quantity in advance
	PrepaidCharge *decimal.Decimal `json:"prepaid_charge,omitempty"`

	// BulkPricingEnabled prices the entire quantity under the single tier
	// containing it instead of walking the tiers
	BulkPricingEnabled bool `json:"bulk_pricing_enabled"`
}

// PriceTier is one contiguous [RangeStart, RangeEnd] pricing rule. A nil
// RangeEnd means the tier is open ended and must be last.
type PriceTier struct {
	RangeStart decimal.Decimal  `json:"range_start"`
	RangeEnd   *decimal.Decimal `json:"range_end,omitempty"`

	Type types.TierType `json:"type"`

	CostPerBatch  decimal.Decimal `json:"cost_per_batch"`
	UnitsPerBatch decimal.Decimal `json:"units_per_batch"`

	Rounding types.RoundingMode `json:"batch_rounding_type"`
}

// RecurringCharge is a flat fee on a plan version with its own cadence.
type RecurringCharge struct {
	ID string `json:"recurring_charge_id"`

	Name string `json:"name"`

	ChargeTiming types.ChargeTiming `json:"charge_timing"`

	ChargeBehavior types.ChargeBehavior `json:"charge_behavior"`

	Amount decimal.Decimal `json:"amount"`

	Currency string `json:"pricing_unit"`

	InvoicingInterval *types.PlanDuration `json:"invoicing_interval,omitempty"`
	ResetInterval     *types.PlanDuration `json:"reset_interval,omitempty"`
}

// PriceAdjustment is the per plan version discount, surcharge or override.
type PriceAdjustment struct {
	Type   types.PriceAdjustmentType `json:"price_adjustment_type"`
	Amount decimal.Decimal           `json:"price_adjustment_amount"`
}

// Feature is a named boolean capability granted by a plan version.
type Feature struct {
	ID   string `json:"feature_id"`
	Name string `json:"feature_name"`
}

// AddOnSpecification describes how an add-on plan bills.
type AddOnSpecification struct {
	BillingFrequency types.AddOnBillingFrequency `json:"billing_frequency"`

	FlatFeeInvoicingBehavior types.AddOnInvoicingBehavior `json:"flat_fee_invoicing_behavior"`

	RecurringFlatFeeTiming *types.ChargeTiming `json:"recurring_flat_fee_timing,omitempty"`
}

// ComponentForMetric returns the component pricing the metric, if any
func (v *PlanVersion) ComponentForMetric(metricID string) *PlanComponent {
	for i := range v.Components {
		if v.Components[i].MetricID == metricID {
			return &v.Components[i]
		}
	}
	return nil
}

// HasFeature reports whether the version grants the feature
func (v *PlanVersion) HasFeature(featureID string) bool {
	for _, f := range v.Features {
		if f.ID == featureID {
			return true
		}
	}
	return false
}

// FreeLimit returns the end of a leading free tier, zero when absent
func (c *PlanComponent) FreeLimit() decimal.Decimal {
	if len(c.Tiers) == 0 {
		return decimal.Zero
	}
	first := c.Tiers[0]
	if first.Type != types.TierTypeFree || first.RangeEnd == nil {
		return decimal.Zero
	}
	return *first.RangeEnd
}

// TotalLimit returns the last tier's range end, nil meaning unlimited
func (c *PlanComponent) TotalLimit() *decimal.Decimal {
	if len(c.Tiers) == 0 {
		return nil
	}
	return c.Tiers[len(c.Tiers)-1].RangeEnd
}
