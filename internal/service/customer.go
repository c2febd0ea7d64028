package service

import (
	"context"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// CreateCustomerParams carries the writable customer fields
type CreateCustomerParams struct {
	CustomerID          string
	Name                string
	Email               string
	DefaultCurrency     string
	Timezone            string
	BillingAddress      *customer.Address
	TaxRate             *float64
	PaymentProviderRefs map[string]string
}

// BatchCreateResult partitions a batch create into outcomes per customer id
type BatchCreateResult struct {
	Created []string          `json:"created"`
	Failed  map[string]string `json:"failed,omitempty"`
}

type CustomerService interface {
	Create(ctx context.Context, params CreateCustomerParams) (*customer.Customer, error)
	// BatchCreate creates every creatable customer and reports the rest,
	// never failing the whole batch on one conflict
	BatchCreate(ctx context.Context, batch []CreateCustomerParams) (*BatchCreateResult, error)
	Get(ctx context.Context, customerID string) (*customer.Customer, error)
	List(ctx context.Context) ([]*customer.Customer, error)
	Update(ctx context.Context, params CreateCustomerParams) (*customer.Customer, error)
}

type customerService struct {
	ServiceParams
}

func NewCustomerService(params ServiceParams) CustomerService {
	return &customerService{ServiceParams: params}
}

func (s *customerService) Create(ctx context.Context, params CreateCustomerParams) (*customer.Customer, error) {
	if params.CustomerID == "" {
		return nil, ierr.NewError("customer_id is required").
			Mark(ierr.ErrValidation)
	}
	currency := params.DefaultCurrency
	if currency == "" {
		org, err := s.TenantRepo.GetOrganization(ctx, types.GetOrganizationID(ctx))
		if err != nil {
			return nil, err
		}
		currency = org.DefaultCurrency
	}

	cust := customer.New(ctx, params.CustomerID, params.Name, params.Email, currency)
	if params.Timezone != "" {
		cust.Timezone = params.Timezone
	}
	cust.BillingAddress = params.BillingAddress
	cust.TaxRate = params.TaxRate
	cust.PaymentProviderRefs = params.PaymentProviderRefs

	if err := s.CustomerRepo.Create(ctx, cust); err != nil {
		return nil, err
	}
	s.Logger.Infow("created customer", "customer_id", cust.CustomerID)
	return cust, nil
}

func (s *customerService) BatchCreate(ctx context.Context, batch []CreateCustomerParams) (*BatchCreateResult, error) {
	if len(batch) == 0 {
		return nil, ierr.NewError("empty batch").
			Mark(ierr.ErrValidation)
	}

	result := &BatchCreateResult{Failed: map[string]string{}}
	for _, params := range batch {
		if _, err := s.Create(ctx, params); err != nil {
			result.Failed[params.CustomerID] = ierr.GetHint(err)
			continue
		}
		result.Created = append(result.Created, params.CustomerID)
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result, nil
}

func (s *customerService) Get(ctx context.Context, customerID string) (*customer.Customer, error) {
	return s.CustomerRepo.Get(ctx, customerID)
}

func (s *customerService) List(ctx context.Context) ([]*customer.Customer, error) {
	return s.CustomerRepo.List(ctx)
}

func (s *customerService) Update(ctx context.Context, params CreateCustomerParams) (*customer.Customer, error) {
	cust, err := s.CustomerRepo.Get(ctx, params.CustomerID)
	if err != nil {
		return nil, err
	}

	if params.Name != "" {
		cust.Name = params.Name
	}
	if params.Email != "" {
		cust.Email = params.Email
	}
	if params.DefaultCurrency != "" {
		cust.DefaultCurrency = params.DefaultCurrency
	}
	if params.Timezone != "" {
		cust.Timezone = params.Timezone
	}
	if params.BillingAddress != nil {
		cust.BillingAddress = params.BillingAddress
	}
	if params.TaxRate != nil {
		cust.TaxRate = params.TaxRate
	}
	if params.PaymentProviderRefs != nil {
		cust.PaymentProviderRefs = params.PaymentProviderRefs
	}

	if err := s.CustomerRepo.Update(ctx, cust); err != nil {
		return nil, err
	}
	return cust, nil
}
