package dbconn

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// QueryResult is a fully materialized result set. Materialization is a hard
// requirement of the concurrency model: no cursor is ever exposed outside a
// single adapter call, so a connection can always be returned to the pool
// before control leaves the adapter.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// Result reports the outcome of a write statement. AffectedRows carries the
// server-reported count verbatim; the upsert layer depends on MySQL's
// +1 inserted / +2 updated / +0 unchanged convention.
type Result struct {
	AffectedRows int64
	LastInsertID int64
}

// Executor is the statement contract the core components run through. Both
// the pooled adapter and the single-connection transaction view satisfy it.
type Executor interface {
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)
	Exec(ctx context.Context, query string, args ...any) (Result, error)
}

// DefaultPopTimeout bounds how long an adapter call waits for a pooled
// connection before failing with ErrPoolTimeout.
const DefaultPopTimeout = 5 * time.Second

// Adapter executes statements against the pool. Every call is a complete
// acquire-execute-materialize-release cycle.
type Adapter struct {
	pool       *Pool
	PopTimeout time.Duration
}

// NewAdapter wraps a pool in the pooled Executor.
func NewAdapter(pool *Pool) *Adapter {
	return &Adapter{pool: pool, PopTimeout: DefaultPopTimeout}
}

// Pool exposes the underlying pool, for status reporting and the transaction
// manager.
func (a *Adapter) Pool() *Pool {
	return a.pool
}

// Query runs a read statement and returns the fully materialized rows.
// A statement that fails with a connection-reset condition is retried once
// on a fresh connection before ConnectionLostError is surfaced.
func (a *Adapter) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	var result *QueryResult
	err := a.withConn(func(c *Conn) error {
		var err error
		result, err = queryConn(ctx, c, query, args...)
		return err
	})
	return result, err
}

// Exec runs a write statement and returns the server-reported counts, with
// the same single-retry behavior as Query.
func (a *Adapter) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	var result Result
	err := a.withConn(func(c *Conn) error {
		var err error
		result, err = execConn(ctx, c, query, args...)
		return err
	})
	return result, err
}

func (a *Adapter) withConn(fn func(*Conn) error) error {
	conn, err := a.pool.Pop(a.PopTimeout)
	if err != nil {
		return err
	}
	err = fn(conn)
	if err != nil && IsConnectionLost(err) {
		log.Debug("statement hit a dead connection; retrying once on a fresh one")
		a.pool.Discard(conn)
		conn, popErr := a.pool.Pop(a.PopTimeout)
		if popErr != nil {
			return popErr
		}
		err = fn(conn)
		if err != nil && IsConnectionLost(err) {
			a.pool.Discard(conn)
			return &ConnectionLostError{Err: err}
		}
		a.pool.Push(conn)
		return classify(err)
	}
	a.pool.Push(conn)
	return classify(err)
}

func queryConn(ctx context.Context, c *Conn, query string, args ...any) (*QueryResult, error) {
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: columns, Rows: make([]map[string]any, 0)}
	for rows.Next() {
		row := make(map[string]any, len(columns))
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

func execConn(ctx context.Context, c *Conn, query string, args ...any) (Result, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	lastID, _ := res.LastInsertId()
	return Result{AffectedRows: affected, LastInsertID: lastID}, nil
}

// ConnExecutor is the single-connection Executor view handed to transaction
// callbacks. Every statement runs on the one claimed connection.
type ConnExecutor struct {
	conn *Conn
}

// NewConnExecutor pins an Executor to one connection. Used by the
// transaction manager and by tests.
func NewConnExecutor(c *Conn) *ConnExecutor {
	return &ConnExecutor{conn: c}
}

// Query runs a read statement on the pinned connection.
func (e *ConnExecutor) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	result, err := queryConn(ctx, e.conn, query, args...)
	return result, classify(err)
}

// Exec runs a write statement on the pinned connection.
func (e *ConnExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	result, err := execConn(ctx, e.conn, query, args...)
	return result, classify(err)
}
