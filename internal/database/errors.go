package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates a referenced slot, appointment, candidate, job or
	// session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation would break a uniqueness or
	// availability invariant (slot taken, duplicate record, invalid transition).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed input rejected before it reaches storage.
	ErrValidation = errors.New("validation failed")
)

// wrapError maps sqlite constraint failures onto the sentinel errors and
// returns any other error unchanged.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrConflict, sqliteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: referenced record: %s", ErrNotFound, sqliteErr.Error())
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrValidation, sqliteErr.Error())
		}
	}

	return err
}
