package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "rrfiler/pkg/domain-errors"
)

const defaultTxTimeout = 10 * time.Second

// Transactor runs fn as one unit of work. Stores reached through the context
// passed to fn join the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTransactor opens a database transaction per call, bounded by a default
// timeout when the caller set no deadline.
type SQLTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQL(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db, timeout: defaultTxTimeout}
}

func (t *SQLTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return Run(ctx, t.db, fn)
}

// NoopTransactor runs fn directly, for in-memory stores.
type NoopTransactor struct{}

func (NoopTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
