package dto

import (
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/validator"
)

type CreateCustomerRequest struct {
	CustomerID          string            `json:"customer_id" validate:"required"`
	Name                string            `json:"name"`
	Email               string            `json:"email" validate:"omitempty,email"`
	DefaultCurrency     string            `json:"default_currency"`
	Timezone            string            `json:"timezone"`
	BillingAddress      *customer.Address `json:"billing_address,omitempty"`
	TaxRate             *float64          `json:"tax_rate,omitempty"`
	PaymentProviderRefs map[string]string `json:"payment_provider_refs,omitempty"`
}

func (r *CreateCustomerRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateCustomerRequest) ToParams() service.CreateCustomerParams {
	return service.CreateCustomerParams{
		CustomerID:          r.CustomerID,
		Name:                r.Name,
		Email:               r.Email,
		DefaultCurrency:     r.DefaultCurrency,
		Timezone:            r.Timezone,
		BillingAddress:      r.BillingAddress,
		TaxRate:             r.TaxRate,
		PaymentProviderRefs: r.PaymentProviderRefs,
	}
}

// BatchCreateCustomersRequest creates many customers in one call; failures
// are reported per customer rather than failing the batch
type BatchCreateCustomersRequest struct {
	Customers []CreateCustomerRequest `json:"customers" validate:"required,min=1,dive"`
}

func (r *BatchCreateCustomersRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *BatchCreateCustomersRequest) ToParams() []service.CreateCustomerParams {
	params := make([]service.CreateCustomerParams, 0, len(r.Customers))
	for i := range r.Customers {
		params = append(params, r.Customers[i].ToParams())
	}
	return params
}

// UpdateCustomerRequest patches mutable customer fields; the customer id
// comes from the path
type UpdateCustomerRequest struct {
	Name                string            `json:"name"`
	Email               string            `json:"email" validate:"omitempty,email"`
	DefaultCurrency     string            `json:"default_currency"`
	Timezone            string            `json:"timezone"`
	BillingAddress      *customer.Address `json:"billing_address,omitempty"`
	TaxRate             *float64          `json:"tax_rate,omitempty"`
	PaymentProviderRefs map[string]string `json:"payment_provider_refs,omitempty"`
}

func (r *UpdateCustomerRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *UpdateCustomerRequest) ToParams(customerID string) service.CreateCustomerParams {
	return service.CreateCustomerParams{
		CustomerID:          customerID,
		Name:                r.Name,
		Email:               r.Email,
		DefaultCurrency:     r.DefaultCurrency,
		Timezone:            r.Timezone,
		BillingAddress:      r.BillingAddress,
		TaxRate:             r.TaxRate,
		PaymentProviderRefs: r.PaymentProviderRefs,
	}
}
