package plan

import (
	"github.com/shopspring/decimal"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

var tierGapTolerance = decimal.NewFromInt(1)

// ValidateTiers enforces the tier invariant: sorted by range_start, first
// tier starts at zero, successive tiers contiguous (gap of 0 or 1), only the
// last tier may be open ended.
func (c *PlanComponent) ValidateTiers() error {
	if len(c.Tiers) == 0 {
		return ierr.NewError("component has no tiers").
			WithHint("A plan component requires at least one price tier").
			Mark(ierr.ErrValidation)
	}

	if !c.Tiers[0].RangeStart.IsZero() {
		return ierr.NewError("first tier must start at 0").
			WithHintf("First tier starts at %s", c.Tiers[0].RangeStart).
			Mark(ierr.ErrValidation)
	}

	for i, tier := range c.Tiers {
		last := i == len(c.Tiers)-1
		if tier.RangeEnd == nil {
			if !last {
				return ierr.NewError("only the last tier may be open ended").
					WithHint("An open ended tier must be the final tier").
					Mark(ierr.ErrValidation)
			}
			continue
		}
		if tier.RangeEnd.LessThanOrEqual(tier.RangeStart) {
			return ierr.NewError("tier range is empty").
				WithHintf("Tier %d ends at %s before its start %s", i, tier.RangeEnd, tier.RangeStart).
				Mark(ierr.ErrValidation)
		}
		if !last {
			gap := c.Tiers[i+1].RangeStart.Sub(*tier.RangeEnd)
			if gap.IsNegative() || gap.GreaterThan(tierGapTolerance) {
				return ierr.NewError("tiers are not contiguous").
					WithHintf("Tier %d ends at %s but tier %d starts at %s", i, tier.RangeEnd, i+1, c.Tiers[i+1].RangeStart).
					Mark(ierr.ErrValidation)
			}
		}
		if tier.Type == "" {
			return ierr.NewError("tier type is required").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// Validate checks a plan version before activation
func (v *PlanVersion) Validate() error {
	if v.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Plan version is missing a currency").
			Mark(ierr.ErrValidation)
	}
	for i := range v.Components {
		if err := v.Components[i].ValidateTiers(); err != nil {
			return err
		}
	}
	for _, rc := range v.RecurringCharges {
		if rc.Amount.IsNegative() {
			return ierr.NewError("recurring charge amount cannot be negative").
				WithHintf("Charge %s has amount %s", rc.Name, rc.Amount).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}
