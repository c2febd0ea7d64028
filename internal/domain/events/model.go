package events

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Event is the wire level usage event. IdempotencyID is unique per
// organization; the materializer guarantees at-most-once effective
// materialization per (organization, idempotency_id).
type Event struct {
	// ID is an internal k-sortable message identifier
	ID string `json:"id" ch:"id"`

	OrganizationID string `json:"organization_id" ch:"organization_id"`

	// CustomerID is the tenant-chosen customer identifier and the
	// partition key on the event stream
	CustomerID string `json:"customer_id" ch:"customer_id" validate:"required"`

	EventName string `json:"event_name" ch:"event_name" validate:"required"`

	// IdempotencyID is the tenant scoped dedup key
	IdempotencyID string `json:"idempotency_id" ch:"idempotency_id" validate:"required"`

	TimeCreated time.Time `json:"time_created" ch:"time_created,timezone('UTC')" validate:"required"`

	// IngestedAt is set when the gateway accepts the event
	IngestedAt time.Time `json:"ingested_at" ch:"ingested_at,timezone('UTC')"`

	Properties map[string]interface{} `json:"properties" ch:"properties"`
}

// NewEvent creates a new event with defaults
func NewEvent(
	organizationID, customerID, eventName, idempotencyID string,
	properties map[string]interface{},
	timeCreated time.Time,
) *Event {
	now := time.Now().UTC()
	if timeCreated.IsZero() {
		timeCreated = now
	} else {
		timeCreated = timeCreated.UTC()
	}

	return &Event{
		ID:             types.GenerateEventID(),
		OrganizationID: organizationID,
		CustomerID:     customerID,
		EventName:      eventName,
		IdempotencyID:  idempotencyID,
		TimeCreated:    timeCreated,
		IngestedAt:     now,
		Properties:     properties,
	}
}

// PartitionKey returns the stream partition key: events for the same customer
// within a tenant stay ordered, cross customer order is not guaranteed
func (e *Event) PartitionKey() string {
	return fmt.Sprintf("%s:%s", e.OrganizationID, e.CustomerID)
}

// UsageParams describe a usage aggregation query against the event store
type UsageParams struct {
	OrganizationID  string                  `json:"organization_id"`
	CustomerID      string                  `json:"customer_id"`
	EventName       string                  `json:"event_name" validate:"required"`
	PropertyName    string                  `json:"property_name"`
	AggregationType types.AggregationType   `json:"aggregation_type" validate:"required"`
	Granularity     types.MetricGranularity `json:"granularity"`
	StartTime       time.Time               `json:"start_time" validate:"required"`
	EndTime         time.Time               `json:"end_time" validate:"required"`

	// Filters are AND conjunction predicates on event properties
	Filters map[string][]string `json:"filters"`
}

// UsageWindow is one bucket of an aggregation result
type UsageWindow struct {
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Value       decimal.Decimal `json:"value"`
}

// AggregationResult is the result of a usage query
type AggregationResult struct {
	Value     decimal.Decimal       `json:"value"`
	EventName string                `json:"event_name"`
	Type      types.AggregationType `json:"type"`
	Windows   []UsageWindow         `json:"windows,omitempty"`
}

// FilterFingerprint produces a stable hash for a set of subscription filters
// so continuous aggregate rows for differently filtered records stay apart
func FilterFingerprint(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s;", k, filters[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
