// Package dbconn provides the MySQL connection layer: configuration, a
// bounded lazy connection pool, a row-materializing adapter, server flavor
// detection, and the transaction manager.
package dbconn

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
)

// ErrPoolTimeout is returned by Pool.Pop when no connection became available
// within the timeout. Callers may retry or fail the request.
var ErrPoolTimeout = errors.New("timed out waiting for a pooled connection")

// ErrPoolClosed is returned by Pool.Pop after the pool has been closed.
var ErrPoolClosed = errors.New("connection pool is closed")

// ConnectionLostError indicates a statement failed with a connection-reset
// condition. It is only surfaced after one silent reconnect attempt.
type ConnectionLostError struct {
	Err error
}

// Error satisfies the builtin error interface.
func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection lost: %s", e.Err)
}

// Unwrap exposes the underlying driver error.
func (e *ConnectionLostError) Unwrap() error { return e.Err }

// IntegrityError is a server-reported constraint violation, surfaced
// unchanged from the driver.
type IntegrityError struct {
	Err *mysql.MySQLError
}

// Error satisfies the builtin error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity constraint violation: %s", e.Err.Message)
}

// Unwrap exposes the underlying driver error.
func (e *IntegrityError) Unwrap() error { return e.Err }

// CapabilityError indicates the caller demanded transactional DDL on a
// server that does not support it.
type CapabilityError struct {
	Capability string
}

// Error satisfies the builtin error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("server does not support %s", e.Capability)
}

// SchemaStateError indicates the live schema could not be trusted: the
// server version is below 8.0.0, or information_schema returned malformed
// rows.
type SchemaStateError struct {
	Message string
}

// Error satisfies the builtin error interface.
func (e *SchemaStateError) Error() string { return e.Message }

// IsIntegrityError returns true if err is a server-reported constraint
// violation: duplicate key, missing referenced row, or referenced row still
// present.
func IsIntegrityError(err error) bool {
	var merr *mysql.MySQLError
	if !errors.As(err, &merr) {
		return false
	}
	switch merr.Number {
	case mysqlerr.ER_DUP_ENTRY, mysqlerr.ER_DUP_KEY,
		mysqlerr.ER_NO_REFERENCED_ROW, mysqlerr.ER_NO_REFERENCED_ROW_2,
		mysqlerr.ER_ROW_IS_REFERENCED, mysqlerr.ER_ROW_IS_REFERENCED_2:
		return true
	}
	return false
}

// IsConnectionLost returns true if err indicates the underlying connection
// is gone and the statement may be retried on a fresh one.
func IsConnectionLost(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn)
}

// classify wraps driver errors into the error kinds callers dispatch on.
// Errors that match no kind pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var merr *mysql.MySQLError
	if errors.As(err, &merr) && IsIntegrityError(err) {
		return &IntegrityError{Err: merr}
	}
	return err
}
