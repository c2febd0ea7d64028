package subscription

import (
	"context"
	"time"
)

// RecordFilter narrows record listings
type RecordFilter struct {
	CustomerID string
	// BillingPlanID matches the plan version a record bills on
	BillingPlanID string
	// ActiveAt, when set, keeps only records whose window covers the instant
	ActiveAt *time.Time
	// RangeStart/RangeEnd keep records overlapping the range
	RangeStart *time.Time
	RangeEnd   *time.Time
}

type Repository interface {
	CreateRecord(ctx context.Context, record *SubscriptionRecord) error
	GetRecord(ctx context.Context, id string) (*SubscriptionRecord, error)
	// ListRecords returns records matching the filter, newest first
	ListRecords(ctx context.Context, filter *RecordFilter) ([]*SubscriptionRecord, error)
	// UpdateRecord persists mutations; implementations serialize concurrent
	// writers on the record's row
	UpdateRecord(ctx context.Context, record *SubscriptionRecord) error
	// ListChildren returns add-on records attached to the parent
	ListChildren(ctx context.Context, parentID string) ([]*SubscriptionRecord, error)
	// LockRecords takes row locks on the given records for the span of the
	// ambient transaction, serializing billing mutations against them
	LockRecords(ctx context.Context, ids []string) error

	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	// GetOpenSubscription returns the customer's open billing container
	GetOpenSubscription(ctx context.Context, customerID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
	// ListExpiredSubscriptions returns containers whose end date passed
	// before the cutoff, for the periodic close step
	ListExpiredSubscriptions(ctx context.Context, cutoff time.Time) ([]*Subscription, error)
}
