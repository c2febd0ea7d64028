package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type CreateBalanceAdjustmentRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency" validate:"required"`
	Description string          `json:"description,omitempty"`
	EffectiveAt time.Time       `json:"effective_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

func (r *CreateBalanceAdjustmentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateBalanceAdjustmentRequest) ToParams() service.CreateGrantParams {
	return service.CreateGrantParams{
		CustomerID:  r.CustomerID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Description: r.Description,
		EffectiveAt: r.EffectiveAt,
		ExpiresAt:   r.ExpiresAt,
	}
}
