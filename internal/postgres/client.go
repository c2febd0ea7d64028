package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
)

type txKey struct{}

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction; nested calls reuse
	// the ambient transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// Querier returns the ambient transaction if one is in flight, or the
	// base connection
	Querier(ctx context.Context) sqlx.ExtContext
}

// Client wraps sqlx.DB to provide transaction management
type Client struct {
	db     *sqlx.DB
	logger *logger.Logger
}

func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	db, err := sqlx.Open("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Client{db: db, logger: logger}, nil
}

func (c *Client) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Errorw("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (c *Client) Querier(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
