package dto

import (
	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type CreateAlertRequest struct {
	MetricID      string          `json:"metric_id" validate:"required"`
	PlanVersionID string          `json:"plan_version_id" validate:"required"`
	Threshold     decimal.Decimal `json:"threshold" validate:"required"`
}

func (r *CreateAlertRequest) Validate() error {
	return validator.ValidateRequest(r)
}
