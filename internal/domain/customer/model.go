package customer

import (
	"context"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Customer is an organization's end customer. CustomerID is chosen by the
// tenant and is unique within the organization, not globally.
type Customer struct {
	// CustomerID is the tenant-chosen identifier used on the wire
	CustomerID string `db:"customer_id" json:"customer_id"`

	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`

	DefaultCurrency string `db:"default_currency" json:"default_currency"`

	Timezone string `db:"timezone" json:"timezone"`

	BillingAddress *Address `db:"billing_address" json:"billing_address,omitempty"`

	// TaxRate, when set, is the first tax provider consulted for this
	// customer's invoices
	TaxRate *float64 `db:"tax_rate" json:"tax_rate,omitempty"`

	// PaymentProviderRefs maps a provider name to the customer's id in
	// that provider, ex {"stripe": "cus_x"}
	PaymentProviderRefs map[string]string `db:"payment_provider_refs" json:"payment_provider_refs,omitempty"`

	types.BaseModel
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// New constructs a customer with organization scoping from the context
func New(ctx context.Context, customerID, name, email, currency string) *Customer {
	return &Customer{
		CustomerID:      customerID,
		Name:            name,
		Email:           email,
		DefaultCurrency: currency,
		Timezone:        "UTC",
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}
