package dto

import (
	"time"

	planDomain "github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/plan"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type CreatePlanRequest struct {
	PlanName     string             `json:"plan_name" validate:"required"`
	PlanDuration types.PlanDuration `json:"plan_duration" validate:"required"`
	IsAddOn      bool               `json:"is_addon"`
	Tags         []string           `json:"tags,omitempty"`

	Version CreateVersionRequest `json:"version" validate:"required"`
}

func (r *CreatePlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreatePlanRequest) ToParams() service.CreatePlanParams {
	return service.CreatePlanParams{
		PlanName:     r.PlanName,
		PlanDuration: r.PlanDuration,
		IsAddOn:      r.IsAddOn,
		Tags:         r.Tags,
		Version:      r.Version.ToParams(),
	}
}

// CreateVersionRequest carries one pricing configuration, either as the
// first version of a new plan or appended to an existing one
type CreateVersionRequest struct {
	Currency          string                         `json:"currency" validate:"required"`
	Components        []planDomain.PlanComponent     `json:"components,omitempty"`
	RecurringCharges  []planDomain.RecurringCharge   `json:"recurring_charges,omitempty"`
	Features          []planDomain.Feature           `json:"features,omitempty"`
	PriceAdjustment   *planDomain.PriceAdjustment    `json:"price_adjustment,omitempty"`
	DayAnchor         int                            `json:"day_anchor"`
	MonthAnchor       int                            `json:"month_anchor"`
	ActiveFrom        time.Time                      `json:"active_from"`
	TargetCustomerIDs []string                       `json:"target_customer_ids,omitempty"`
	LocalizedName     string                         `json:"localized_name,omitempty"`
	AddOnSpec         *planDomain.AddOnSpecification `json:"addon_spec,omitempty"`
}

func (r *CreateVersionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateVersionRequest) ToParams() service.CreateVersionParams {
	return service.CreateVersionParams{
		Currency:          r.Currency,
		Components:        r.Components,
		RecurringCharges:  r.RecurringCharges,
		Features:          r.Features,
		PriceAdjustment:   r.PriceAdjustment,
		DayAnchor:         r.DayAnchor,
		MonthAnchor:       r.MonthAnchor,
		ActiveFrom:        r.ActiveFrom,
		TargetCustomerIDs: r.TargetCustomerIDs,
		LocalizedName:     r.LocalizedName,
		AddOnSpec:         r.AddOnSpec,
	}
}

// RetireVersionRequest closes a version to new subscriptions
type RetireVersionRequest struct {
	ReplaceWithID string `json:"replace_with_id,omitempty"`
}
