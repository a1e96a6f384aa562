package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run binds a query set to a new transaction and passes it to fn. The
// transaction commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func Run[T any](ctx context.Context, db *sql.DB, bind func(*sql.Tx) *T, fn func(q *T) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(bind(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
