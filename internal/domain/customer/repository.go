package customer

import "context"

type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, customerID string) (*Customer, error)
	List(ctx context.Context) ([]*Customer, error)
	Update(ctx context.Context, customer *Customer) error
}
