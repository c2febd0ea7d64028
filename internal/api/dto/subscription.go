package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type AttachSubscriptionRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	PlanID     string `json:"plan_id" validate:"required"`
	// VersionID pins a specific plan version; empty picks the active one
	VersionID string    `json:"version_id,omitempty"`
	StartDate time.Time `json:"start_date"`
	// EndDate overrides the computed period end
	EndDate   time.Time         `json:"end_date,omitempty"`
	Filters   map[string]string `json:"subscription_filters,omitempty"`
	Quantity  decimal.Decimal   `json:"quantity"`
	AutoRenew *bool             `json:"auto_renew,omitempty"`
}

func (r *AttachSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *AttachSubscriptionRequest) ToParams() service.AttachPlanParams {
	return service.AttachPlanParams{
		CustomerID: r.CustomerID,
		PlanID:     r.PlanID,
		VersionID:  r.VersionID,
		Start:      r.StartDate,
		End:        r.EndDate,
		Filters:    r.Filters,
		Quantity:   r.Quantity,
		AutoRenew:  r.AutoRenew,
	}
}

type CancelSubscriptionRequest struct {
	CustomerID        string                  `json:"customer_id" validate:"required"`
	PlanID            string                  `json:"plan_id,omitempty"`
	Filters           map[string]string       `json:"subscription_filters,omitempty"`
	FlatFeeBehavior   types.FlatFeeBehavior   `json:"flat_fee_behavior"`
	UsageBehavior     types.UsageBehavior     `json:"usage_behavior"`
	InvoicingBehavior types.InvoicingBehavior `json:"invoicing_behavior"`
}

func (r *CancelSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CancelSubscriptionRequest) ToParams() service.CancelParams {
	return service.CancelParams{
		CustomerID:        r.CustomerID,
		PlanID:            r.PlanID,
		Filters:           r.Filters,
		FlatFeeBehavior:   r.FlatFeeBehavior,
		UsageBehavior:     r.UsageBehavior,
		InvoicingBehavior: r.InvoicingBehavior,
	}
}

// UpdateSubscriptionRequest edits matching records. When replace_plan_id is
// set the update is a plan switch; otherwise it patches the end date or the
// auto renew flag.
type UpdateSubscriptionRequest struct {
	CustomerID        string                  `json:"customer_id" validate:"required"`
	PlanID            string                  `json:"plan_id" validate:"required"`
	Filters           map[string]string       `json:"subscription_filters,omitempty"`
	ReplacePlanID     string                  `json:"replace_plan_id,omitempty"`
	UsageBehavior     types.UsageBehavior     `json:"usage_behavior,omitempty"`
	InvoicingBehavior types.InvoicingBehavior `json:"invoicing_behavior,omitempty"`
	TurnOffAutoRenew  bool                    `json:"turn_off_auto_renew,omitempty"`
	EndDate           *time.Time              `json:"end_date,omitempty"`
}

func (r *UpdateSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// IsSwitch reports whether the update replaces the plan
func (r *UpdateSubscriptionRequest) IsSwitch() bool {
	return r.ReplacePlanID != ""
}

func (r *UpdateSubscriptionRequest) ToSwitchParams() service.SwitchPlanParams {
	return service.SwitchPlanParams{
		CustomerID:        r.CustomerID,
		PlanID:            r.PlanID,
		Filters:           r.Filters,
		ReplacePlanID:     r.ReplacePlanID,
		UsageBehavior:     r.UsageBehavior,
		InvoicingBehavior: r.InvoicingBehavior,
	}
}

func (r *UpdateSubscriptionRequest) ToUpdateParams() service.UpdateRecordParams {
	return service.UpdateRecordParams{
		CustomerID:       r.CustomerID,
		PlanID:           r.PlanID,
		Filters:          r.Filters,
		EndDate:          r.EndDate,
		TurnOffAutoRenew: r.TurnOffAutoRenew,
	}
}

type AttachAddOnRequest struct {
	CustomerID    string            `json:"customer_id" validate:"required"`
	ParentPlanID  string            `json:"parent_plan_id" validate:"required"`
	ParentFilters map[string]string `json:"parent_filters,omitempty"`
	AddOnID       string            `json:"addon_id" validate:"required"`
	Quantity      decimal.Decimal   `json:"quantity"`
}

func (r *AttachAddOnRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *AttachAddOnRequest) ToParams() service.AttachAddOnParams {
	return service.AttachAddOnParams{
		CustomerID:    r.CustomerID,
		ParentPlanID:  r.ParentPlanID,
		ParentFilters: r.ParentFilters,
		AddOnPlanID:   r.AddOnID,
		Quantity:      r.Quantity,
	}
}

type UpdateAddOnRequest struct {
	RecordID          string                  `json:"subscription_record_id" validate:"required"`
	Quantity          *decimal.Decimal        `json:"quantity,omitempty"`
	EndDate           *time.Time              `json:"end_date,omitempty"`
	TurnOffAutoRenew  bool                    `json:"turn_off_auto_renew,omitempty"`
	InvoicingBehavior types.InvoicingBehavior `json:"invoicing_behavior,omitempty"`
}

func (r *UpdateAddOnRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *UpdateAddOnRequest) ToParams() service.UpdateAddOnParams {
	return service.UpdateAddOnParams{
		RecordID:          r.RecordID,
		Quantity:          r.Quantity,
		EndDate:           r.EndDate,
		TurnOffAutoRenew:  r.TurnOffAutoRenew,
		InvoicingBehavior: r.InvoicingBehavior,
	}
}

type CancelAddOnRequest struct {
	RecordID          string                  `json:"subscription_record_id" validate:"required"`
	FlatFeeBehavior   types.FlatFeeBehavior   `json:"flat_fee_behavior,omitempty"`
	InvoicingBehavior types.InvoicingBehavior `json:"invoicing_behavior,omitempty"`
}

func (r *CancelAddOnRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CancelAddOnRequest) ToParams() service.CancelAddOnParams {
	return service.CancelAddOnParams{
		RecordID:          r.RecordID,
		FlatFeeBehavior:   r.FlatFeeBehavior,
		InvoicingBehavior: r.InvoicingBehavior,
	}
}
