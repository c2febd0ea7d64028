package metric

import "context"

type Repository interface {
	Create(ctx context.Context, metric *Metric) error
	Get(ctx context.Context, id string) (*Metric, error)
	List(ctx context.Context) ([]*Metric, error)
	ListByEventName(ctx context.Context, eventName string) ([]*Metric, error)
	Archive(ctx context.Context, id string) error
}
