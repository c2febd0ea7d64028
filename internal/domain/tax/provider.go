package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider answers tax rate questions for a customer. Providers are
// consulted in order, customer scoped providers before organization scoped
// ones; the first provider returning ok wins.
type Provider interface {
	Name() string
	// GetTaxRate returns the percentage rate for the customer and plan.
	// ok=false means this provider has no answer and the next one is tried.
	GetTaxRate(ctx context.Context, customerID, planVersionID string) (rate decimal.Decimal, ok bool, err error)
}

// StaticProvider serves a fixed rate, used for customer level and
// organization level configured tax rates
type StaticProvider struct {
	ProviderName string
	Rate         decimal.Decimal
}

func NewStaticProvider(name string, rate decimal.Decimal) *StaticProvider {
	return &StaticProvider{ProviderName: name, Rate: rate}
}

func (p *StaticProvider) Name() string {
	return p.ProviderName
}

func (p *StaticProvider) GetTaxRate(ctx context.Context, customerID, planVersionID string) (decimal.Decimal, bool, error) {
	return p.Rate, true, nil
}
