package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/balance"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// CreateGrantParams mints one credit grant
type CreateGrantParams struct {
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	EffectiveAt time.Time
	ExpiresAt   *time.Time
}

type BalanceService interface {
	CreateGrant(ctx context.Context, params CreateGrantParams) (*balance.Adjustment, error)
	Get(ctx context.Context, id string) (*balance.Adjustment, error)
	List(ctx context.Context, customerID string) ([]*balance.Adjustment, error)
	// VoidGrant deactivates an active grant and forfeits its remaining
	VoidGrant(ctx context.Context, id string) (*balance.Adjustment, error)
	// AvailableBalance sums the remaining of the customer's active grants
	// in one currency
	AvailableBalance(ctx context.Context, customerID, currency string) (decimal.Decimal, error)
}

type balanceService struct {
	ServiceParams
}

func NewBalanceService(params ServiceParams) BalanceService {
	return &balanceService{ServiceParams: params}
}

func (s *balanceService) CreateGrant(ctx context.Context, params CreateGrantParams) (*balance.Adjustment, error) {
	if params.CustomerID == "" {
		return nil, ierr.NewError("customer_id is required").
			Mark(ierr.ErrValidation)
	}
	if !params.Amount.IsPositive() {
		return nil, ierr.NewError("grant amount must be positive").
			WithHintf("Got amount %s", params.Amount).
			Mark(ierr.ErrValidation)
	}
	if params.Currency == "" {
		return nil, ierr.NewError("pricing_unit is required").
			Mark(ierr.ErrValidation)
	}
	if _, err := s.CustomerRepo.Get(ctx, params.CustomerID); err != nil {
		return nil, err
	}

	grant := balance.New(ctx, params.CustomerID, params.Amount, params.Currency, params.Description)
	if !params.EffectiveAt.IsZero() {
		grant.EffectiveAt = params.EffectiveAt
	}
	grant.ExpiresAt = params.ExpiresAt
	if grant.ExpiresAt != nil && !grant.ExpiresAt.After(grant.EffectiveAt) {
		return nil, ierr.NewError("expires_at must be after effective_at").
			Mark(ierr.ErrValidation)
	}

	if err := s.BalanceRepo.Create(ctx, grant); err != nil {
		return nil, err
	}
	s.Logger.Infow("created balance grant",
		"adjustment_id", grant.ID,
		"customer_id", grant.CustomerID,
		"amount", grant.Amount,
		"currency", grant.PricingUnit,
	)
	return grant, nil
}

func (s *balanceService) Get(ctx context.Context, id string) (*balance.Adjustment, error) {
	return s.BalanceRepo.Get(ctx, id)
}

func (s *balanceService) List(ctx context.Context, customerID string) ([]*balance.Adjustment, error) {
	return s.BalanceRepo.List(ctx, customerID)
}

func (s *balanceService) VoidGrant(ctx context.Context, id string) (*balance.Adjustment, error) {
	grant, err := s.BalanceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if grant.AdjStatus != types.BalanceStatusActive {
		return nil, ierr.NewError("grant is not active").
			WithHintf("Grant %s is %s", id, grant.AdjStatus).
			Mark(ierr.ErrPreconditionFailed)
	}

	remaining := grant.Remaining()
	if remaining.IsPositive() {
		if _, err := grant.DrawDown(remaining, types.DrawdownReasonVoided, ""); err != nil {
			return nil, err
		}
	}
	grant.AdjStatus = types.BalanceStatusInactive
	if err := s.BalanceRepo.Update(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *balanceService) AvailableBalance(ctx context.Context, customerID, currency string) (decimal.Decimal, error) {
	grants, err := s.BalanceRepo.ListActive(ctx, customerID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	now := time.Now().UTC()
	for _, grant := range grants {
		if grant.Expired(now) {
			continue
		}
		total = total.Add(grant.Remaining())
	}
	return total, nil
}
