package kafka

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/pubsub"
)

// PartitionKeyMetadata is the message metadata key read by the partitioning
// marshaler. The ingest gateway sets it to tenant:customer so events for one
// customer stay ordered within a partition.
const PartitionKeyMetadata = "partition_key"

type PubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *logger.Logger
}

// NewPubSub creates a kafka-backed pubsub with customer partitioning
func NewPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	marshaler := wkafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(PartitionKeyMetadata), nil
	})

	publisher, err := wkafka.NewPublisher(
		wkafka.PublisherConfig{
			Brokers:   cfg.Kafka.Brokers,
			Marshaler: marshaler,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	subscriber, err := wkafka.NewSubscriber(
		wkafka.SubscriberConfig{
			Brokers:       cfg.Kafka.Brokers,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			Unmarshaler:   marshaler,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     log,
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	if err := p.publisher.Close(); err != nil {
		return err
	}
	return p.subscriber.Close()
}
