package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageBucket is one row of the continuous aggregate maintained by the
// materializer. The key is (organization, metric, customer, filter
// fingerprint, bucket_start); the value columns carry enough state to
// recompose any of the supported aggregations over a window.
type UsageBucket struct {
	OrganizationID    string    `ch:"organization_id"`
	MetricID          string    `ch:"metric_id"`
	CustomerID        string    `ch:"customer_id"`
	FilterFingerprint string    `ch:"filter_fingerprint"`
	BucketStart       time.Time `ch:"bucket_start,timezone('UTC')"`

	Count       uint64          `ch:"count"`
	Sum         decimal.Decimal `ch:"sum"`
	Max         decimal.Decimal `ch:"max"`
	Min         decimal.Decimal `ch:"min"`
	UniqueCount uint64          `ch:"unique_count"`

	// Latest value together with its event time, for gauge latest/integral
	LatestValue decimal.Decimal `ch:"latest_value"`
	LatestAt    time.Time       `ch:"latest_at,timezone('UTC')"`
}

// PartitionMark is the per-partition high-water mark readers consult before
// caching access answers: anything newer than the mark may not be visible yet
type PartitionMark struct {
	OrganizationID string    `ch:"organization_id"`
	CustomerID     string    `ch:"customer_id"`
	HighWaterMark  time.Time `ch:"high_water_mark,timezone('UTC')"`
}
