package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the error every connector returns once it has remapped the
// remote system's own codes.
//
// Callers switch on Category; Code and Message carry the backend's raw
// status for the multistatus row or the client response.
type Error struct {
	// Category is the gateway-level classification.
	Category Category

	// Code is the backend's own status code, 0 when there is none.
	Code int

	// Message is a human-readable description.
	Message string

	// Matches is the number of records a unique-key lookup found
	// (conflict errors only).
	Matches int

	// Err is the underlying cause, if any.
	Err error
}

// Category classifies backend errors.
type Category string

const (
	// CategoryNotFound means the addressed record, layout, or database does
	// not exist, or a unique-key lookup matched nothing.
	CategoryNotFound Category = "NOT_FOUND"

	// CategoryUnauthorized means the credentials were rejected.
	CategoryUnauthorized Category = "UNAUTHORIZED"

	// CategoryConflict means a write collided with existing data, or a
	// unique-key lookup matched more than one record.
	CategoryConflict Category = "CONFLICT"

	// CategoryFailure is any other backend failure.
	CategoryFailure Category = "FAILURE"

	// CategoryBadRequest means the client sent something unusable, such as
	// a query string that does not parse.
	CategoryBadRequest Category = "BAD_REQUEST"

	// CategoryConfig means the gateway itself is misconfigured.
	CategoryConfig Category = "CONFIG"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Category, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Category, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status the gateway reports for e.
func (e *Error) Status() int {
	switch e.Category {
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryConflict:
		return http.StatusConflict
	case CategoryBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Backend codes every connector reports for the same condition.
const (
	// CodeRecordMissing is reported when the addressed record does not exist.
	CodeRecordMissing = 101

	// CodeNoRecordsMatch is reported when a unique-key lookup finds nothing.
	CodeNoRecordsMatch = 401
)

// NewNotFound creates a not-found error.
func NewNotFound(code int, message string) *Error {
	return &Error{Category: CategoryNotFound, Code: code, Message: message}
}

// NewUnauthorized creates an unauthorized error.
func NewUnauthorized(code int, message string) *Error {
	return &Error{Category: CategoryUnauthorized, Code: code, Message: message}
}

// NewConflict creates a conflict error for a rejected write.
func NewConflict(code int, message string) *Error {
	return &Error{Category: CategoryConflict, Code: code, Message: message}
}

// NewAmbiguous creates the conflict a unique-key lookup raises when it
// matches more than one record.
func NewAmbiguous(key string, matches int) *Error {
	return &Error{
		Category: CategoryConflict,
		Message:  fmt.Sprintf("%s matches %d records", key, matches),
		Matches:  matches,
	}
}

// NewFailure creates a generic backend failure.
func NewFailure(code int, message string, cause error) *Error {
	return &Error{Category: CategoryFailure, Code: code, Message: message, Err: cause}
}

// NewBadRequest wraps a client-caused error.
func NewBadRequest(cause error) *Error {
	return &Error{Category: CategoryBadRequest, Message: cause.Error(), Err: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *Error {
	return &Error{Category: CategoryConfig, Message: message, Err: cause}
}

// CategoryOf returns the category of err, CategoryFailure for errors that
// are not *Error.
func CategoryOf(err error) Category {
	var be *Error
	if errors.As(err, &be) {
		return be.Category
	}
	return CategoryFailure
}

// AsError returns err as an *Error, wrapping foreign errors as failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return NewFailure(0, err.Error(), err)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return err != nil && CategoryOf(err) == CategoryNotFound
}

// IsRecordMissing reports whether err says the addressed record does not
// exist. Missing fields, layouts or tables do not count.
func IsRecordMissing(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Category == CategoryNotFound && be.Code == CodeRecordMissing
}

// IsNoMatch reports whether err says a unique-key lookup matched nothing.
func IsNoMatch(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Category == CategoryNotFound && be.Code == CodeNoRecordsMatch
}

// IsUnauthorized reports whether err is an unauthorized error.
func IsUnauthorized(err error) bool {
	return err != nil && CategoryOf(err) == CategoryUnauthorized
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	return err != nil && CategoryOf(err) == CategoryConflict
}

// IsBadRequest reports whether err is a client-caused error.
func IsBadRequest(err error) bool {
	return err != nil && CategoryOf(err) == CategoryBadRequest
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return err != nil && CategoryOf(err) == CategoryConfig
}
