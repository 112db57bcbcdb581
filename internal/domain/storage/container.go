package storage

import (
	"context"
	"fmt"

	"spinwish/internal/domain/events"
	"spinwish/internal/domain/payments"
	"spinwish/internal/domain/pushtokens"
	"spinwish/internal/domain/refunds"
	"spinwish/internal/domain/requests"
	"spinwish/internal/domain/sessions"
	"spinwish/internal/domain/users"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool       *pgxpool.Pool // needed so WithPaymentTx can open transactions
	Sessions   sessions.Store
	Payments   payments.Store
	Refunds    refunds.Store
	Events     events.Store
	Requests   requests.Store
	Users      users.Store
	PushTokens pushtokens.Store
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:       db,
		Sessions:   sessions.NewRepository(db),
		Payments:   payments.NewRepository(db),
		Refunds:    refunds.NewRepository(db),
		Events:     events.NewRepository(db),
		Requests:   requests.NewRepository(db),
		Users:      users.NewRepository(db),
		PushTokens: pushtokens.NewRepository(db),
	}
}

// PaymentTx is a tx-scoped set of repos for the atomic units of work in the
// payment lifecycle: completing a session together with its payment row,
// and creating a refund together with its payout bookkeeping.
type PaymentTx struct {
	Sessions sessions.Store
	Payments payments.Store
	Refunds  refunds.Store
}

// WithPaymentTx runs fn atomically; either every write inside commits or
// none do. A completed session can therefore never exist without its
// payment row, and vice versa.
func (c *Container) WithPaymentTx(ctx context.Context, fn func(tx *PaymentTx) error) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &PaymentTx{
		Sessions: sessions.NewRepository(tx),
		Payments: payments.NewRepository(tx),
		Refunds:  refunds.NewRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
