package types

// Topics on the durable event stream
const (
	TopicEvents         = "usage.events"
	TopicInvoiceCreated = "invoice.created"
	TopicUsageAlert     = "usage.alert.triggered"
)
