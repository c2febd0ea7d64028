package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriorValueParams scopes a durable first-sight check for unique
// aggregation to one customer's event series within a bucket window
type PriorValueParams struct {
	OrganizationID string
	EventName      string
	CustomerID     string
	PropertyName   string
	Value          string
	WindowStart    time.Time
	WindowEnd      time.Time
	ExcludeEventID string
	// Filters narrow the series to events matching a record's filter set
	Filters map[string]string
}

// Repository is the durable event store plus its continuous aggregates.
// The materializer is the sole writer of buckets; readers may lag and use
// GetPartitionMark to learn how far materialization has advanced.
type Repository interface {
	// InsertEvent appends one raw event; replaying the same
	// (organization, idempotency_id) is a no-op
	InsertEvent(ctx context.Context, event *Event) error

	// IsDuplicate reports whether the idempotency id exists durably
	IsDuplicate(ctx context.Context, organizationID, idempotencyID string) (bool, error)

	// UpsertBucket folds an event's value into its continuous aggregate row
	UpsertBucket(ctx context.Context, bucket *UsageBucket) error

	// GetUsage runs an aggregation over raw events
	GetUsage(ctx context.Context, params *UsageParams) (*AggregationResult, error)

	// GetBuckets reads continuous aggregate rows over a window
	GetBuckets(ctx context.Context, organizationID, metricID, customerID, fingerprint string, start, end time.Time) ([]*UsageBucket, error)

	// GetLatestLevel returns the most recently materialized gauge level for
	// a series, reseeding delta resolution after a restart
	GetLatestLevel(ctx context.Context, organizationID, metricID, customerID, fingerprint string) (decimal.Decimal, bool, error)

	// HasPriorValue reports whether an earlier event in the window already
	// carried the property value, excluding the given event id
	HasPriorValue(ctx context.Context, params *PriorValueParams) (bool, error)

	// AdvancePartitionMark moves the high-water mark forward, monotonically
	AdvancePartitionMark(ctx context.Context, organizationID, customerID string, mark time.Time) error

	// GetPartitionMark returns the partition's high-water mark
	GetPartitionMark(ctx context.Context, organizationID, customerID string) (time.Time, error)
}
