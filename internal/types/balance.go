package types

// BalanceAdjustmentStatus is the lifecycle of a credit grant
type BalanceAdjustmentStatus string

const (
	BalanceStatusActive   BalanceAdjustmentStatus = "active"
	BalanceStatusInactive BalanceAdjustmentStatus = "inactive"
)

// DrawdownReason explains a balance drawdown entry
type DrawdownReason string

const (
	DrawdownReasonInvoice DrawdownReason = "applied_to_invoice"
	DrawdownReasonExpired DrawdownReason = "expired"
	DrawdownReasonVoided  DrawdownReason = "voided"
)
