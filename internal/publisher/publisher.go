package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub/kafka"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// EventPublisher pushes accepted events onto the durable stream
type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

type eventPublisher struct {
	pubsub pubsub.Publisher
	logger *logger.Logger
}

func NewEventPublisher(ps pubsub.Publisher, log *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubsub: ps,
		logger: log,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal event").
			Mark(ierr.ErrValidation)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(kafka.PartitionKeyMetadata, event.PartitionKey())

	p.logger.Debugw("publishing event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"organization_id", event.OrganizationID,
		"customer_id", event.CustomerID,
	)

	if err := p.pubsub.Publish(ctx, types.TopicEvents, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish event to the stream").
			Mark(ierr.ErrUpstream)
	}
	return nil
}
