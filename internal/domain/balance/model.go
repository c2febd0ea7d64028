package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Adjustment is a credit grant on a customer's balance in one currency.
// remaining = Amount - sum(Drawdowns); it never goes negative.
type Adjustment struct {
	ID string `db:"id" json:"adjustment_id"`

	CustomerID string `db:"customer_id" json:"customer_id"`

	Amount decimal.Decimal `db:"amount" json:"amount"`

	// PricingUnit is the grant's currency; drawdowns only apply to
	// invoices in the same currency
	PricingUnit string `db:"pricing_unit" json:"pricing_unit"`

	Description string `db:"description" json:"description,omitempty"`

	EffectiveAt time.Time  `db:"effective_at" json:"effective_at"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	AdjStatus types.BalanceAdjustmentStatus `db:"adj_status" json:"adj_status"`

	Drawdowns []Drawdown `db:"drawdowns" json:"drawdowns,omitempty"`

	types.BaseModel
}

// Drawdown records one consumption of a grant
type Drawdown struct {
	Amount    decimal.Decimal      `json:"amount"`
	Reason    types.DrawdownReason `json:"reason"`
	InvoiceID string               `json:"invoice_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// New mints a grant for the customer
func New(ctx context.Context, customerID string, amount decimal.Decimal, currency, description string) *Adjustment {
	return &Adjustment{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BALANCE_ADJUSTMENT),
		CustomerID:  customerID,
		Amount:      amount,
		PricingUnit: currency,
		Description: description,
		EffectiveAt: time.Now().UTC(),
		AdjStatus:   types.BalanceStatusActive,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
}

// Remaining returns the undrawn portion of the grant
func (a *Adjustment) Remaining() decimal.Decimal {
	drawn := decimal.Zero
	for _, d := range a.Drawdowns {
		drawn = drawn.Add(d.Amount)
	}
	return a.Amount.Sub(drawn)
}

// DrawDown consumes up to amount from the grant and returns the portion
// actually drawn. Drawing more than remaining is an invariant violation.
func (a *Adjustment) DrawDown(amount decimal.Decimal, reason types.DrawdownReason, invoiceID string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ierr.NewError("drawdown amount cannot be negative").
			Mark(ierr.ErrSystem)
	}
	remaining := a.Remaining()
	drawn := decimal.Min(amount, remaining)
	if drawn.IsZero() {
		return decimal.Zero, nil
	}
	a.Drawdowns = append(a.Drawdowns, Drawdown{
		Amount:    drawn,
		Reason:    reason,
		InvoiceID: invoiceID,
		CreatedAt: time.Now().UTC(),
	})
	return drawn, nil
}

// Expired reports whether the grant is past its expiry
func (a *Adjustment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}
