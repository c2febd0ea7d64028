package subscription

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// SubscriptionRecord binds one customer to one plan version over a time
// window, optionally narrowed by filters. Records for the same customer and
// plan may not overlap in time unless their filters differ.
type SubscriptionRecord struct {
	ID string `db:"id" json:"sr_id"`

	CustomerID string `db:"customer_id" json:"customer_id"`

	// BillingPlanID is the plan version this record is billed on
	BillingPlanID string `db:"billing_plan_id" json:"billing_plan_id"`

	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`

	// UsageStartDate may precede StartDate after a plan switch that
	// transfers usage
	UsageStartDate time.Time `db:"usage_start_date" json:"usage_start_date"`

	NextBillingDate *time.Time `db:"next_billing_date" json:"next_billing_date,omitempty"`
	LastBillingDate *time.Time `db:"last_billing_date" json:"last_billing_date,omitempty"`

	AutoRenew bool `db:"auto_renew" json:"auto_renew"`

	// IsNew is false for records created by renewal
	IsNew bool `db:"is_new" json:"is_new"`

	FullyBilled bool `db:"fully_billed" json:"fully_billed"`

	FlatFeeBehavior types.FlatFeeBehavior `db:"flat_fee_behavior" json:"flat_fee_behavior"`

	InvoiceUsageCharges bool `db:"invoice_usage_charges" json:"invoice_usage_charges"`

	Quantity decimal.Decimal `db:"quantity" json:"quantity"`

	// Filters narrow which events count toward this record's usage
	Filters map[string]string `db:"filters" json:"subscription_filters,omitempty"`

	// ParentID is set when this record is an add-on attached to another
	ParentID string `db:"parent_id" json:"parent_id,omitempty"`

	// SubscriptionID is the billing container holding the shared anchors
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	types.BaseModel
}

// Subscription is the per-customer billing container. It holds the anchors
// that align next billing dates across all concurrent records and is created
// lazily when the first record attaches.
type Subscription struct {
	ID string `db:"id" json:"subscription_id"`

	CustomerID string `db:"customer_id" json:"customer_id"`

	BillingCadence types.PlanDuration `db:"billing_cadence" json:"billing_cadence"`

	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`

	DayAnchor   int `db:"day_anchor" json:"day_anchor"`
	MonthAnchor int `db:"month_anchor" json:"month_anchor,omitempty"`

	types.BaseModel
}

// NewRecord constructs a subscription record with defaults
func NewRecord(ctx context.Context, customerID, billingPlanID string, start, end time.Time) *SubscriptionRecord {
	return &SubscriptionRecord{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_REC),
		CustomerID:          customerID,
		BillingPlanID:       billingPlanID,
		StartDate:           start,
		EndDate:             end,
		UsageStartDate:      start,
		AutoRenew:           true,
		IsNew:               true,
		FlatFeeBehavior:     types.FlatFeeChargeFull,
		InvoiceUsageCharges: true,
		Quantity:            decimal.NewFromInt(1),
		BaseModel:           types.GetDefaultBaseModel(ctx),
	}
}

// Status derives the record's state from its window
func (r *SubscriptionRecord) Status(now time.Time) types.SubscriptionRecordStatus {
	switch {
	case now.Before(r.StartDate):
		return types.SRStatusNotStarted
	case now.After(r.EndDate):
		return types.SRStatusEnded
	default:
		return types.SRStatusActive
	}
}

// IsActive reports whether the record covers the instant
func (r *SubscriptionRecord) IsActive(now time.Time) bool {
	return r.Status(now) == types.SRStatusActive
}

// IsAddOn reports whether the record is attached to a parent record
func (r *SubscriptionRecord) IsAddOn() bool {
	return r.ParentID != ""
}

// MatchesFilters reports whether the record's filters are a superset of the
// requested filters
func (r *SubscriptionRecord) MatchesFilters(requested map[string]string) bool {
	for k, v := range requested {
		if r.Filters[k] != v {
			return false
		}
	}
	return true
}

// SameFilters reports whether two filter sets are identical; used by the
// overlap check
func (r *SubscriptionRecord) SameFilters(other map[string]string) bool {
	if len(r.Filters) != len(other) {
		return false
	}
	for k, v := range r.Filters {
		if other[k] != v {
			return false
		}
	}
	return true
}

// Validate enforces the record's date invariants
func (r *SubscriptionRecord) Validate() error {
	if r.UsageStartDate.After(r.EndDate) {
		return ierr.NewError("usage_start_date is after end_date").
			Mark(ierr.ErrValidation)
	}
	if r.EndDate.Before(r.StartDate) {
		return ierr.NewError("end_date is before start_date").
			Mark(ierr.ErrValidation)
	}
	return nil
}
