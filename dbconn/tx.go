package dbconn

import (
	"context"
	"fmt"
	"time"
)

// TxManager provides the run-in-transaction primitive. One connection is
// claimed for the whole callback; nested Run calls reuse it through
// savepoints.
type TxManager struct {
	pool       *Pool
	PopTimeout time.Duration
}

// NewTxManager builds a transaction manager over the pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool, PopTimeout: DefaultPopTimeout}
}

// Tx is the single-connection Executor view passed to transaction
// callbacks. It also supports nested Run calls via savepoints.
type Tx struct {
	exec  *ConnExecutor
	depth int
}

// Query runs a read statement inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	return t.exec.Query(ctx, query, args...)
}

// Exec runs a write statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return t.exec.Exec(ctx, query, args...)
}

// Run claims a connection, opens a transaction, and invokes fn with a
// single-connection view. The transaction commits when fn returns nil and
// rolls back (re-returning fn's error) otherwise.
func (m *TxManager) Run(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := m.pool.Pop(m.PopTimeout)
	if err != nil {
		return err
	}
	defer m.pool.Push(conn)

	exec := NewConnExecutor(conn)
	if _, err := exec.Exec(ctx, "BEGIN"); err != nil {
		return err
	}
	tx := &Tx{exec: exec, depth: 1}
	if err := fn(tx); err != nil {
		if _, rbErr := exec.Exec(ctx, "ROLLBACK"); rbErr != nil {
			return fmt.Errorf("rollback failed (%s) after: %w", rbErr, err)
		}
		return err
	}
	_, err = exec.Exec(ctx, "COMMIT")
	return err
}

// Run nests a transaction on the same connection using a savepoint named by
// depth. A failing callback rolls back to the savepoint and re-returns its
// error; a succeeding one releases it.
func (t *Tx) Run(ctx context.Context, fn func(tx *Tx) error) error {
	name := fmt.Sprintf("sp_%d", t.depth)
	if _, err := t.exec.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	inner := &Tx{exec: t.exec, depth: t.depth + 1}
	if err := fn(inner); err != nil {
		if _, rbErr := t.exec.Exec(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("rollback to %s failed (%s) after: %w", name, rbErr, err)
		}
		return err
	}
	_, err := t.exec.Exec(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
