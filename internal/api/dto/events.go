package dto

import (
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
)

// maxBatchSize caps events accepted per track request
const maxBatchSize = 1000

// TrackEventsRequest accepts either a single event inline or a batch
type TrackEventsRequest struct {
	service.RawEvent

	Batch []service.RawEvent `json:"batch,omitempty"`
}

func (r *TrackEventsRequest) Validate() error {
	if len(r.Batch) > maxBatchSize {
		return ierr.NewError("batch too large").
			WithHintf("A batch may hold at most %d events", maxBatchSize).
			Mark(ierr.ErrValidation)
	}
	if len(r.Batch) == 0 && r.RawEvent.CustomerID == "" && r.RawEvent.EventName == "" {
		return ierr.NewError("empty track request").
			WithHint("Provide an event or a non-empty batch").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Events flattens the request into the batch the service ingests
func (r *TrackEventsRequest) Events() []service.RawEvent {
	if len(r.Batch) > 0 {
		return r.Batch
	}
	return []service.RawEvent{r.RawEvent}
}
