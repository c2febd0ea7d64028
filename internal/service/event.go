package service

import (
	"context"
	"strconv"
	"time"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/meters"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// MaxBatchSize bounds one /track request
const MaxBatchSize = 1000

// IngestStatus summarizes a batch: every event accepted, some, or none
type IngestStatus string

const (
	IngestAll  IngestStatus = "all"
	IngestSome IngestStatus = "some"
	IngestNone IngestStatus = "none"
)

// RawEvent is one event as presented on the wire, before acceptance
type RawEvent struct {
	CustomerID    string                 `json:"customer_id"`
	EventName     string                 `json:"event_name"`
	IdempotencyID string                 `json:"idempotency_id"`
	TimeCreated   time.Time              `json:"time_created"`
	Properties    map[string]interface{} `json:"properties"`
}

// IngestResult reports per-event acceptance for a batch
type IngestResult struct {
	Status       IngestStatus      `json:"success"`
	FailedEvents map[string]string `json:"failed_events,omitempty"`
}

// EventService is the ingest gateway plus usage reads
type EventService interface {
	// TrackEvents validates a batch and publishes accepted events onto the
	// stream. Validation failures never fail the batch as a whole.
	TrackEvents(ctx context.Context, batch []RawEvent) (*IngestResult, error)

	// GetUsage aggregates one metric's usage over a window
	GetUsage(ctx context.Context, metricID, customerID string, start, end time.Time, granularity types.MetricGranularity) (*events.AggregationResult, error)
}

type eventService struct {
	ServiceParams
}

func NewEventService(params ServiceParams) EventService {
	return &eventService{ServiceParams: params}
}

func (s *eventService) TrackEvents(ctx context.Context, batch []RawEvent) (*IngestResult, error) {
	orgID := types.GetOrganizationID(ctx)
	if orgID == "" {
		return nil, ierr.NewError("missing organization in context").
			Mark(ierr.ErrUnauthorized)
	}
	if len(batch) == 0 {
		return nil, ierr.NewError("empty batch").
			WithHint("At least one event is required").
			Mark(ierr.ErrValidation)
	}
	if len(batch) > MaxBatchSize {
		return nil, ierr.NewError("batch too large").
			WithHintf("At most %d events per request", MaxBatchSize).
			Mark(ierr.ErrValidation)
	}

	now := time.Now().UTC()
	maxAge := time.Duration(s.Config.Billing.EventMaxAgeDays) * 24 * time.Hour

	failed := make(map[string]string)
	seen := make(map[string]struct{}, len(batch))
	accepted := make([]*events.Event, 0, len(batch))

	for i, raw := range batch {
		if reason := validateRawEvent(&raw, now, maxAge); reason != "" {
			failed[failureKey(&raw, i)] = reason
			continue
		}
		if _, dup := seen[raw.IdempotencyID]; dup {
			failed[raw.IdempotencyID] = "Duplicate event idempotency in request"
			continue
		}
		seen[raw.IdempotencyID] = struct{}{}
		accepted = append(accepted, events.NewEvent(
			orgID, raw.CustomerID, raw.EventName, raw.IdempotencyID,
			raw.Properties, raw.TimeCreated,
		))
	}

	// The partitioning marshaler keys messages by tenant:customer, so each
	// customer's events stay ordered on the stream
	for _, event := range accepted {
		if err := s.EventPublisher.Publish(ctx, event); err != nil {
			s.Logger.Errorw("failed to publish event",
				"event_id", event.ID,
				"idempotency_id", event.IdempotencyID,
				"error", err,
			)
			failed[event.IdempotencyID] = "Failed to publish event"
		}
	}

	result := &IngestResult{FailedEvents: failed}
	switch {
	case len(failed) == 0:
		result.Status = IngestAll
	case len(failed) == len(batch):
		result.Status = IngestNone
	default:
		result.Status = IngestSome
	}
	return result, nil
}

func validateRawEvent(raw *RawEvent, now time.Time, maxAge time.Duration) string {
	if raw.CustomerID == "" {
		return "customer_id required"
	}
	if raw.IdempotencyID == "" {
		return "idempotency_id required"
	}
	if raw.EventName == "" {
		return "event_name required"
	}
	if raw.TimeCreated.IsZero() {
		return "time_created required"
	}
	if raw.TimeCreated.Before(now.Add(-maxAge)) {
		return "time_created too old"
	}
	if raw.TimeCreated.After(now.Add(24 * time.Hour)) {
		return "time_created in the future"
	}
	return ""
}

// failureKey keys a failure by idempotency id when present, falling back to
// the batch position so the caller can still locate the event
func failureKey(raw *RawEvent, index int) string {
	if raw.IdempotencyID != "" {
		return raw.IdempotencyID
	}
	return "event_" + strconv.Itoa(index)
}

func (s *eventService) GetUsage(ctx context.Context, metricID, customerID string, start, end time.Time, granularity types.MetricGranularity) (*events.AggregationResult, error) {
	if end.Before(start) {
		return nil, ierr.NewError("end before start").
			WithHint("The query window end must not precede its start").
			Mark(ierr.ErrValidation)
	}

	met, err := s.MetricRepo.Get(ctx, metricID)
	if err != nil {
		return nil, err
	}

	handler, err := meters.NewHandler(met, s.EventRepo)
	if err != nil {
		return nil, err
	}
	return handler.UsageOverWindow(ctx, start, end, granularity, customerID)
}
