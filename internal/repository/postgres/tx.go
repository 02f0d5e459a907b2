package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxManager runs callbacks inside a transaction carried by the context.
// Repositories built on the same DB pick the transaction up automatically.
type TxManager struct{ db *DB }

// NewTxManager constructs a transaction manager.
func NewTxManager(db *DB) *TxManager { return &TxManager{db: db} }

// RunInTx commits when fn succeeds and rolls back otherwise.
// A nested call joins the outer transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("commit transaction: %w", e)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}
