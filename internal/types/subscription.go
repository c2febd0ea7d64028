package types

// SubscriptionRecordStatus is derived from the record's time window
type SubscriptionRecordStatus string

const (
	SRStatusNotStarted SubscriptionRecordStatus = "not_started"
	SRStatusActive     SubscriptionRecordStatus = "active"
	SRStatusEnded      SubscriptionRecordStatus = "ended"
)

// FlatFeeBehavior controls how already invoiced flat fees are treated when a
// record ends before its natural period boundary
type FlatFeeBehavior string

const (
	FlatFeeChargeFull FlatFeeBehavior = "charge_full"
	FlatFeeProrate    FlatFeeBehavior = "prorate"
	FlatFeeRefund     FlatFeeBehavior = "refund"
)

func (b FlatFeeBehavior) Validate() bool {
	switch b {
	case FlatFeeChargeFull, FlatFeeProrate, FlatFeeRefund:
		return true
	}
	return false
}

// UsageBehavior controls what happens to accrued usage on cancel or plan switch
type UsageBehavior string

const (
	UsageBillFull     UsageBehavior = "bill_full"
	UsageBillNone     UsageBehavior = "bill_none"
	UsageTransfer     UsageBehavior = "transfer"
	UsageKeepSeparate UsageBehavior = "keep_separate"
)

// InvoicingBehavior controls whether a mutation triggers immediate invoicing
type InvoicingBehavior string

const (
	InvoiceNow       InvoicingBehavior = "invoice_now"
	AddToNextInvoice InvoicingBehavior = "add_to_next_invoice"
)

func (b InvoicingBehavior) Validate() bool {
	return b == InvoiceNow || b == AddToNextInvoice
}
