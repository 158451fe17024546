package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxRunner runs a unit of work inside one database transaction. Repositories
// built on the same connection pick the transaction out of the context, so a
// subscription write and its transaction-log append commit or roll back
// together.
type TxRunner struct {
	db *gorm.DB
}

// NewTxRunner creates a TxRunner on the given connection.
func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

// InTx executes fn inside a transaction. Any error from fn rolls back.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFrom returns the transaction bound to ctx, falling back to the
// repository's own connection.
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}
