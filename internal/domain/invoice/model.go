package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Invoice is one currency's bill for a customer over a set of subscription
// records. Amount always equals the sum of its line item amounts rounded to
// the currency precision.
type Invoice struct {
	ID string `db:"id" json:"invoice_id"`

	CustomerID string `db:"customer_id" json:"customer_id"`

	Currency string `db:"currency" json:"currency"`

	IssueDate time.Time `db:"issue_date" json:"issue_date"`
	DueDate   time.Time `db:"due_date" json:"due_date"`

	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`

	LineItems []LineItem `db:"line_items" json:"line_items"`

	// SubscriptionRecordIDs are the records this invoice covers
	SubscriptionRecordIDs []string `db:"subscription_record_ids" json:"subscription_records"`

	// ExternalPaymentObjRef references the processor's payment object
	ExternalPaymentObjRef string `db:"external_payment_obj_ref" json:"external_payment_obj_ref,omitempty"`
	ExternalPaymentObjTyp string `db:"external_payment_obj_type" json:"external_payment_obj_type,omitempty"`

	Amount decimal.Decimal `db:"amount" json:"amount"`

	types.BaseModel
}

// LineItem is one charge on an invoice. Amount = Base + sum of adjustments.
type LineItem struct {
	ID string `json:"line_item_id"`

	Name string `json:"name"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Quantity *decimal.Decimal `json:"quantity,omitempty"`

	Base decimal.Decimal `json:"base"`

	BillingType types.BillingType `json:"billing_type"`

	ChargeableItemType types.ChargeableItemType `json:"chargeable_item_type"`

	AssociatedRecordID      string `json:"associated_subscription_record,omitempty"`
	AssociatedPlanVersionID string `json:"associated_plan_version,omitempty"`

	// AssociatedChargeID ties recurring charge line items back to their
	// charge so prior billing can be netted on plan switches
	AssociatedChargeID string `json:"associated_charge_id,omitempty"`

	Adjustments []Adjustment `json:"adjustments,omitempty"`

	Amount decimal.Decimal `json:"amount"`
}

// Adjustment modifies a line item, ex sales tax or a percentage discount
type Adjustment struct {
	Type   types.AdjustmentType `json:"adjustment_type"`
	Name   string               `json:"name"`
	Amount decimal.Decimal      `json:"amount"`
}

// New constructs a draft invoice for a customer in one currency
func New(ctx context.Context, customerID, currency string, issueDate, dueDate time.Time) *Invoice {
	return &Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:    customerID,
		Currency:      currency,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		PaymentStatus: types.PaymentStatusDraft,
		Amount:        decimal.Zero,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

// Finalize recomputes line item amounts and the invoice amount, rounding to
// currency precision only at the invoice level
func (inv *Invoice) Finalize() {
	total := decimal.Zero
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		amount := li.Base
		for _, adj := range li.Adjustments {
			amount = amount.Add(adj.Amount)
		}
		li.Amount = amount
		total = total.Add(amount)
	}
	inv.Amount = total.Round(types.GetCurrencyPrecision(inv.Currency))
}

// CheckAmountInvariant verifies amount == round(sum(line items)); violation
// is an internal error, never a client error
func (inv *Invoice) CheckAmountInvariant() error {
	total := decimal.Zero
	for _, li := range inv.LineItems {
		total = total.Add(li.Amount)
	}
	if !inv.Amount.Equal(total.Round(types.GetCurrencyPrecision(inv.Currency))) {
		return ierr.NewError("invoice amount does not match line items").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"amount":     inv.Amount.String(),
				"line_total": total.String(),
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}

// AddLineItem appends a line item with a generated id
func (inv *Invoice) AddLineItem(li LineItem) {
	if li.ID == "" {
		li.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM)
	}
	amount := li.Base
	for _, adj := range li.Adjustments {
		amount = amount.Add(adj.Amount)
	}
	li.Amount = amount
	inv.LineItems = append(inv.LineItems, li)
}
