// Package storage opens the shared database and guards every unit of work
// against storage errors the process cannot recover from.
package storage

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers after which the connection pool can no longer
// be trusted.
const (
	// ErrCodeUnknownCommand is ER_UNKNOWN_COM_ERROR.
	ErrCodeUnknownCommand uint16 = 1047

	// ErrCodeCommitFailed is ER_ERROR_DURING_COMMIT.
	ErrCodeCommitFailed uint16 = 1180
)

var fatalCodes = map[uint16]struct{}{
	ErrCodeUnknownCommand: {},
	ErrCodeCommitFailed:   {},
}

// FatalStorageError is a storage outcome that must end the process.
type FatalStorageError struct {
	// Code is the storage engine error number.
	Code uint16

	// Op is the guarded operation that observed the error.
	Op string

	// Err is the driver error.
	Err error
}

func (e *FatalStorageError) Error() string {
	return fmt.Sprintf("fatal storage error %d during %s: %v", e.Code, e.Op, e.Err)
}

func (e *FatalStorageError) Unwrap() error {
	return e.Err
}

// Classify returns a *FatalStorageError when err carries one of the fatal
// codes, and err unchanged otherwise.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var fatal *FatalStorageError
	if errors.As(err, &fatal) {
		return err
	}

	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	if _, ok := fatalCodes[mysqlErr.Number]; !ok {
		return err
	}

	return &FatalStorageError{Code: mysqlErr.Number, Op: op, Err: err}
}

// IsFatal reports whether err is, or wraps, a fatal storage error.
func IsFatal(err error) bool {
	var fatal *FatalStorageError
	return errors.As(Classify("", err), &fatal)
}
