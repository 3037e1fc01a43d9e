package sqldb

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/omeid/pgerror"

	"github.com/roach88/restgate/internal/backend"
)

// Codes reported for SQL errors. They reuse the numbering of the other
// connectors so callers see the same code for the same condition.
const (
	codeFieldMissing   = 102
	codeScriptMissing  = 104
	codeTableMissing   = 105
	codeRecordMissing  = 101
	codeRecordInUse    = 301
	codeValueNotUnique = 504
)

// remapError turns a driver error into a *backend.Error. action prefixes
// the message.
func remapError(action string, err error) *backend.Error {
	if err == nil {
		return nil
	}
	var be *backend.Error
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, sql.ErrNoRows) {
		return backend.NewNotFound(codeRecordMissing, action+": record not found")
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return remapSQLite(action, sqliteErr)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return remapPQ(action, pqErr)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return remapPgx(action, pgErr)
	}
	return backend.NewFailure(0, action, err)
}

func remapSQLite(action string, e sqlite3.Error) *backend.Error {
	msg := action + ": " + e.Error()
	switch {
	case e.ExtendedCode == sqlite3.ErrConstraintUnique, e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		return backend.NewConflict(codeValueNotUnique, msg)
	case e.Code == sqlite3.ErrBusy, e.Code == sqlite3.ErrLocked:
		return backend.NewConflict(codeRecordInUse, msg)
	case strings.Contains(e.Error(), "no such table"):
		return backend.NewNotFound(codeTableMissing, msg)
	case strings.Contains(e.Error(), "no such column"), strings.Contains(e.Error(), "has no column named"):
		return backend.NewNotFound(codeFieldMissing, msg)
	}
	return backend.NewFailure(int(e.Code), msg, e)
}

func remapPQ(action string, e *pq.Error) *backend.Error {
	msg := action + ": " + e.Message
	switch {
	case pgerror.UniqueViolation(e) != nil:
		return backend.NewConflict(codeValueNotUnique, msg)
	case pgerror.LockNotAvailable(e) != nil, pgerror.DeadlockDetected(e) != nil:
		return backend.NewConflict(codeRecordInUse, msg)
	case pgerror.UndefinedTable(e) != nil:
		return backend.NewNotFound(codeTableMissing, msg)
	case pgerror.UndefinedColumn(e) != nil:
		return backend.NewNotFound(codeFieldMissing, msg)
	case pgerror.InvalidPassword(e) != nil, pgerror.InvalidAuthorizationSpecification(e) != nil:
		return backend.NewUnauthorized(0, msg)
	}
	return backend.NewFailure(0, msg, e)
}

// SQLSTATE codes checked on pgx errors, the same set pgerror covers for pq.
const (
	stateUniqueViolation  = "23505"
	stateLockNotAvailable = "55P03"
	stateDeadlockDetected = "40P01"
	stateUndefinedTable   = "42P01"
	stateUndefinedColumn  = "42703"
	stateInvalidPassword  = "28P01"
	stateInvalidAuthSpec  = "28000"
)

func remapPgx(action string, e *pgconn.PgError) *backend.Error {
	msg := action + ": " + e.Message
	switch e.Code {
	case stateUniqueViolation:
		return backend.NewConflict(codeValueNotUnique, msg)
	case stateLockNotAvailable, stateDeadlockDetected:
		return backend.NewConflict(codeRecordInUse, msg)
	case stateUndefinedTable:
		return backend.NewNotFound(codeTableMissing, msg)
	case stateUndefinedColumn:
		return backend.NewNotFound(codeFieldMissing, msg)
	case stateInvalidPassword, stateInvalidAuthSpec:
		return backend.NewUnauthorized(0, msg)
	}
	return backend.NewFailure(0, msg, e)
}
