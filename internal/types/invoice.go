package types

// PaymentStatus is the invoice payment lifecycle
type PaymentStatus string

const (
	PaymentStatusDraft  PaymentStatus = "draft"
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusVoided PaymentStatus = "voided"
)

func (s PaymentStatus) Validate() bool {
	switch s {
	case PaymentStatusDraft, PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusVoided:
		return true
	}
	return false
}

// BillingType is the timing of a line item relative to its period
type BillingType string

const (
	BillingTypeInAdvance BillingType = "in_advance"
	BillingTypeInArrears BillingType = "in_arrears"
	BillingTypeOneTime   BillingType = "one_time"
)

// ChargeableItemType classifies a line item
type ChargeableItemType string

const (
	ChargeableItemRecurringCharge    ChargeableItemType = "recurring_charge"
	ChargeableItemUsageCharge        ChargeableItemType = "usage_charge"
	ChargeableItemPlanAdjustment     ChargeableItemType = "plan_adjustment"
	ChargeableItemCustomerAdjustment ChargeableItemType = "customer_adjustment"
	ChargeableItemOneTimeCharge      ChargeableItemType = "one_time_charge"
)

// AdjustmentType classifies a per line item adjustment
type AdjustmentType string

const (
	AdjustmentSalesTax      AdjustmentType = "sales_tax"
	AdjustmentPlanDiscount  AdjustmentType = "plan_discount"
	AdjustmentPlanSurcharge AdjustmentType = "plan_surcharge"
)
