package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	gosqlite "modernc.org/sqlite"

	"github.com/tiermem/tiermem/internal/memerr"
)

// SQLite primary result codes (extended codes carry these in the low byte).
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// SQLite extended codes for unique violations.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// MySQL server error numbers.
const (
	mysqlDupEntry        = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlFKViolation     = 1452
	mysqlCheckViolation  = 3819
)

// Classify maps a driver error onto the shared taxonomy: transient
// failures become ConnectionError (retryable by the caller, never
// retried here), constraint violations become StorageError, and
// everything else is wrapped with its cause attached.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return memerr.Connection(op, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return memerr.Connection(op, err)
	}

	var sqErr *gosqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqliteConstraint:
			return memerr.Storage(op, err)
		case sqliteBusy, sqliteLocked:
			return memerr.Connection(op, err)
		}
		return wrap(op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23": // integrity constraint violation
			return memerr.Storage(op, err)
		case "08", "53", "57": // connection, resources, intervention
			return memerr.Connection(op, err)
		}
		return wrap(op, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDupEntry, mysqlFKViolation, mysqlCheckViolation:
			return memerr.Storage(op, err)
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return memerr.Connection(op, err)
		}
		return wrap(op, err)
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return memerr.Connection(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return memerr.Connection(op, err)
	}

	return wrap(op, err)
}

func wrap(op string, err error) error {
	return &opError{op: op, err: err}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

// IsUniqueViolation reports whether err is a unique-constraint violation
// on any backend. Used for idempotent inserts.
func IsUniqueViolation(err error) bool {
	var sqErr *gosqlite.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey || code == sqliteConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDupEntry
	}
	return false
}
