package webhook

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/taskqueue"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/sentry"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Dispatcher forwards webhook dispatch tasks onto the outbound pubsub
// topic named in the task payload. Delivery to customer endpoints is an
// external concern; the engine's responsibility ends at the topic.
type Dispatcher struct {
	pub    pubsub.Publisher
	sentry *sentry.Service
	log    *logger.Logger
}

func NewDispatcher(pub pubsub.Publisher, sentrySvc *sentry.Service, log *logger.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, sentry: sentrySvc, log: log}
}

// Register subscribes the dispatcher to webhook dispatch tasks
func (d *Dispatcher) Register(queue taskqueue.TaskQueue) {
	queue.Register(taskqueue.TaskWebhookDispatch, d.HandleDispatch)
}

func (d *Dispatcher) HandleDispatch(ctx context.Context, payload json.RawMessage) error {
	var envelope struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed webhook dispatch payload").
			Mark(ierr.ErrValidation)
	}
	if envelope.Topic == "" {
		return ierr.NewError("webhook dispatch without topic").
			WithHint("Webhook dispatch payload must name a topic").
			Mark(ierr.ErrValidation)
	}

	msg := message.NewMessage(types.GenerateUUID(), message.Payload(payload))
	if err := d.pub.Publish(ctx, envelope.Topic, msg); err != nil {
		d.sentry.CaptureException(err)
		return ierr.WithError(err).
			WithHint("Failed to publish webhook event").
			Mark(ierr.ErrUpstream)
	}

	d.log.Debugw("dispatched webhook event", "topic", envelope.Topic)
	return nil
}
