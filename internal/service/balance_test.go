package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/customer"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/testutil"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type BalanceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BalanceService
}

func TestBalanceService(t *testing.T) {
	suite.Run(t, new(BalanceServiceSuite))
}

func (s *BalanceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewBalanceService(newTestParams(&s.BaseServiceTestSuite))

	cust := customer.New(s.GetContext(), "cust_1", "Test Customer", "test@example.com", "usd")
	s.Require().NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), cust))
}

func (s *BalanceServiceSuite) TestCreateGrant() {
	testCases := []struct {
		name    string
		params  CreateGrantParams
		wantErr bool
	}{
		{
			name: "valid_grant",
			params: CreateGrantParams{
				CustomerID:  "cust_1",
				Amount:      decimal.NewFromInt(100),
				Currency:    "usd",
				Description: "promo credit",
			},
		},
		{
			name: "zero_amount",
			params: CreateGrantParams{
				CustomerID: "cust_1",
				Amount:     decimal.Zero,
				Currency:   "usd",
			},
			wantErr: true,
		},
		{
			name: "negative_amount",
			params: CreateGrantParams{
				CustomerID: "cust_1",
				Amount:     decimal.NewFromInt(-10),
				Currency:   "usd",
			},
			wantErr: true,
		},
		{
			name: "missing_currency",
			params: CreateGrantParams{
				CustomerID: "cust_1",
				Amount:     decimal.NewFromInt(10),
			},
			wantErr: true,
		},
		{
			name: "unknown_customer",
			params: CreateGrantParams{
				CustomerID: "cust_missing",
				Amount:     decimal.NewFromInt(10),
				Currency:   "usd",
			},
			wantErr: true,
		},
		{
			name: "expiry_before_effective",
			params: CreateGrantParams{
				CustomerID:  "cust_1",
				Amount:      decimal.NewFromInt(10),
				Currency:    "usd",
				EffectiveAt: time.Now().UTC(),
				ExpiresAt:   lo.ToPtr(time.Now().UTC().Add(-time.Hour)),
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			grant, err := s.service.CreateGrant(s.GetContext(), tc.params)
			if tc.wantErr {
				s.Error(err)
				return
			}
			s.NoError(err)
			s.NotEmpty(grant.ID)
			s.Equal(types.BalanceStatusActive, grant.AdjStatus)
			s.True(grant.Remaining().Equal(tc.params.Amount))
		})
	}
}

func (s *BalanceServiceSuite) TestVoidGrant() {
	grant, err := s.service.CreateGrant(s.GetContext(), CreateGrantParams{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(50),
		Currency:   "usd",
	})
	s.Require().NoError(err)

	voided, err := s.service.VoidGrant(s.GetContext(), grant.ID)
	s.NoError(err)
	s.Equal(types.BalanceStatusInactive, voided.AdjStatus)
	s.True(voided.Remaining().IsZero())

	// voiding twice fails, the grant is no longer active
	_, err = s.service.VoidGrant(s.GetContext(), grant.ID)
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *BalanceServiceSuite) TestAvailableBalance() {
	for _, amount := range []int64{30, 20} {
		_, err := s.service.CreateGrant(s.GetContext(), CreateGrantParams{
			CustomerID: "cust_1",
			Amount:     decimal.NewFromInt(amount),
			Currency:   "usd",
		})
		s.Require().NoError(err)
	}
	_, err := s.service.CreateGrant(s.GetContext(), CreateGrantParams{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(500),
		Currency:   "eur",
	})
	s.Require().NoError(err)

	// an already expired grant never counts
	_, err = s.service.CreateGrant(s.GetContext(), CreateGrantParams{
		CustomerID:  "cust_1",
		Amount:      decimal.NewFromInt(1000),
		Currency:    "usd",
		EffectiveAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt:   lo.ToPtr(time.Now().UTC().Add(-time.Hour)),
	})
	s.Require().NoError(err)

	available, err := s.service.AvailableBalance(s.GetContext(), "cust_1", "usd")
	s.NoError(err)
	s.True(available.Equal(decimal.NewFromInt(50)), "got %s", available)

	available, err = s.service.AvailableBalance(s.GetContext(), "cust_1", "eur")
	s.NoError(err)
	s.True(available.Equal(decimal.NewFromInt(500)))
}

func (s *BalanceServiceSuite) TestGetAndList() {
	grant, err := s.service.CreateGrant(s.GetContext(), CreateGrantParams{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(10),
		Currency:   "usd",
	})
	s.Require().NoError(err)

	got, err := s.service.Get(s.GetContext(), grant.ID)
	s.NoError(err)
	s.Equal(grant.ID, got.ID)

	grants, err := s.service.List(s.GetContext(), "cust_1")
	s.NoError(err)
	s.Len(grants, 1)

	_, err = s.service.Get(s.GetContext(), "baladj_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
