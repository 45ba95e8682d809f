package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// TxManager runs work in a read-committed transaction carried by the context.
// RunInTx does not nest: a call inside fn opens a second, independent transaction.
type TxManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxManager creates a TxManager. A positive lockTimeout bounds how long any
// statement in the transaction waits for a row lock; zero leaves the server
// default in place.
func NewTxManager(pool *pgxpool.Pool, lockTimeout time.Duration) *TxManager {
	return &TxManager{pool: pool, lockTimeout: lockTimeout}
}

// RunInTx runs fn inside one transaction and commits when fn returns nil.
//
// Failing to begin wraps domain.ErrDependency and fn is not called, so the
// whole call may be retried. Any error or panic from fn rolls back every
// statement fn issued; a panic is re-raised after the rollback.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", domain.ErrDependency, err)
	}

	rollback := func() error { return tx.Rollback(context.WithoutCancel(ctx)) }

	defer func() {
		if r := recover(); r != nil {
			_ = rollback()
			panic(r)
		}
	}()

	if m.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", m.lockTimeout.Milliseconds())); err != nil {
			_ = rollback()
			return fmt.Errorf("set lock timeout: %w: %w", domain.ErrDependency, err)
		}
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", MapError(err, "transaction", "commit"))
	}
	return nil
}
