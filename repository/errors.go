package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// classifyContext maps context cancellation and deadlines to ErrTransactionAborted
func classifyContext(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
	}
	return nil
}

// classifyPostgres maps lib/pq errors onto the store error taxonomy.
// Unrecognised errors are returned unchanged.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}
	if cerr := classifyContext(err); cerr != nil {
		return cerr
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		// 23505 = unique_violation
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		// 23503 = foreign_key_violation, e.g. deleting a parent that still has children
		case pqErr.Code == "23503":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		// 22P02 = invalid_text_representation, e.g. a malformed uuid
		// 22003 = numeric_value_out_of_range, e.g. an order past the INTEGER range
		case pqErr.Code == "22P02", pqErr.Code == "22003":
			return fmt.Errorf("%w: %s", ErrInvalidArgument, pqErr.Message)
		// 40001 = serialization_failure, 40P01 = deadlock_detected, 55P03 = lock_not_available
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "55P03":
			return fmt.Errorf("%w: %s", ErrTransactionAborted, pqErr.Message)
		// 57014 = query_canceled
		case pqErr.Code == "57014":
			return fmt.Errorf("%w: %s", ErrTransactionAborted, pqErr.Message)
		// class 08 = connection_exception
		case pqErr.Code.Class() == "08":
			return fmt.Errorf("%w: %s", ErrStoreUnavailable, pqErr.Message)
		}
		return err
	}
	return classifyConnection(err)
}

// classifySQLite maps mattn/go-sqlite3 errors onto the store error taxonomy.
func classifySQLite(err error) error {
	if err == nil {
		return nil
	}
	if cerr := classifyContext(err); cerr != nil {
		return cerr
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrConflict, sqliteErr)
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrTransactionAborted, sqliteErr)
		case sqliteErr.Code == sqlite3.ErrCantOpen, sqliteErr.Code == sqlite3.ErrIoErr:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, sqliteErr)
		}
		return err
	}
	return classifyConnection(err)
}

// classifyConnection recognises errors raised before the server answered.
func classifyConnection(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
