package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
)

type CustomerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service CustomerService
}

func TestCustomerService(t *testing.T) {
	suite.Run(t, new(CustomerServiceSuite))
}

func (s *CustomerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewCustomerService(newTestParams(&s.BaseServiceTestSuite))
}

func (s *CustomerServiceSuite) TestCreate() {
	testCases := []struct {
		name    string
		params  CreateCustomerParams
		wantErr bool
	}{
		{
			name: "valid_customer",
			params: CreateCustomerParams{
				CustomerID:      "cust_1",
				Name:            "Acme",
				Email:           "billing@acme.test",
				DefaultCurrency: "usd",
			},
		},
		{
			name: "missing_customer_id",
			params: CreateCustomerParams{
				Name: "No ID",
			},
			wantErr: true,
		},
		{
			name: "duplicate_customer_id",
			params: CreateCustomerParams{
				CustomerID: "cust_1",
				Name:       "Acme again",
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cust, err := s.service.Create(s.GetContext(), tc.params)
			if tc.wantErr {
				s.Error(err)
				return
			}
			s.NoError(err)
			s.Equal(tc.params.CustomerID, cust.CustomerID)
			s.Equal(tc.params.Name, cust.Name)
		})
	}
}

func (s *CustomerServiceSuite) TestCreateCurrencyFallback() {
	cust, err := s.service.Create(s.GetContext(), CreateCustomerParams{
		CustomerID: "cust_2",
		Name:       "No currency",
	})
	s.NoError(err)
	s.Equal("usd", cust.DefaultCurrency, "falls back to the organization default")
}

func (s *CustomerServiceSuite) TestBatchCreate() {
	_, err := s.service.Create(s.GetContext(), CreateCustomerParams{
		CustomerID: "cust_dup",
		Name:       "Existing",
	})
	s.Require().NoError(err)

	result, err := s.service.BatchCreate(s.GetContext(), []CreateCustomerParams{
		{CustomerID: "cust_a", Name: "A"},
		{CustomerID: "cust_dup", Name: "Duplicate"},
		{CustomerID: "cust_b", Name: "B"},
		{Name: "No ID"},
	})
	s.NoError(err)
	s.ElementsMatch([]string{"cust_a", "cust_b"}, result.Created)
	s.Len(result.Failed, 2)
	s.Contains(result.Failed, "cust_dup")
}

func (s *CustomerServiceSuite) TestGetAndList() {
	_, err := s.service.Create(s.GetContext(), CreateCustomerParams{
		CustomerID: "cust_1",
		Name:       "Acme",
	})
	s.Require().NoError(err)

	cust, err := s.service.Get(s.GetContext(), "cust_1")
	s.NoError(err)
	s.Equal("Acme", cust.Name)

	_, err = s.service.Get(s.GetContext(), "cust_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	all, err := s.service.List(s.GetContext())
	s.NoError(err)
	s.Len(all, 1)
}

func (s *CustomerServiceSuite) TestUpdate() {
	_, err := s.service.Create(s.GetContext(), CreateCustomerParams{
		CustomerID: "cust_1",
		Name:       "Acme",
	})
	s.Require().NoError(err)

	updated, err := s.service.Update(s.GetContext(), CreateCustomerParams{
		CustomerID: "cust_1",
		Name:       "Acme Corp",
		TaxRate:    lo.ToPtr(8.25),
	})
	s.NoError(err)
	s.Equal("Acme Corp", updated.Name)
	s.Require().NotNil(updated.TaxRate)
	s.InDelta(8.25, *updated.TaxRate, 0.0001)

	_, err = s.service.Update(s.GetContext(), CreateCustomerParams{
		CustomerID: "cust_missing",
		Name:       "Ghost",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
