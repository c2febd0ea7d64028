package testutil

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
)

// FakeTxClient satisfies postgres.IClient for service tests. It runs the
// callback inline, counting invocations so a test can assert a mutation
// went through a transaction.
type FakeTxClient struct {
	TxCalls int
}

var _ postgres.IClient = (*FakeTxClient)(nil)

func NewFakeTxClient() *FakeTxClient { return &FakeTxClient{} }

func (c *FakeTxClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	c.TxCalls++
	return fn(ctx)
}

func (c *FakeTxClient) Querier(ctx context.Context) sqlx.ExtContext { return nil }
