package ports

import "context"

// Tx is the transaction handle carried in context. Its concrete type belongs
// to the persistence adapter (*gorm.DB for sqlite).
type Tx interface{}

// UnitOfWork runs fn in one transaction: an error rolls back, nil commits.
// Repositories called with the ctx passed to fn join the transaction.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// InTx reports whether ctx already carries a transaction.
func InTx(ctx context.Context) bool {
	return TxFromContext(ctx) != nil
}
