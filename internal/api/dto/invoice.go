package dto

import (
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type UpdateInvoiceRequest struct {
	PaymentStatus types.PaymentStatus `json:"payment_status" validate:"required"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}
