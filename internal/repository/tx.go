package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// dbtx is the subset of *sql.DB and *sql.Tx used by the MySQL repository.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxKey struct{}

// withSQLTx runs fn inside a READ COMMITTED transaction carried in the
// context.  A nested call reuses the outer transaction.  The isolation
// level matters: after the category row lock is granted, the capacity SUM
// must observe rows committed by the previous lock holder, which
// REPEATABLE READ (the InnoDB default) would hide.
func withSQLTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if sqlTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, sqlTxKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func sqlTxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx
}
