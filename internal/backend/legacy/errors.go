package legacy

import (
	"fmt"

	"github.com/roach88/restgate/internal/backend"
)

// Legacy error codes the connector remaps.
const (
	codeOK                 = 0
	codeNoPrivileges       = 9
	codeRecordMissing      = 101
	codeLayoutMissing      = 105
	codeInvalidAccount     = 212
	codeRecordInUse        = 301
	codeNoRecordsMatch     = 401
	codeValueNotUnique     = 504
	codeDatabaseNotOpen    = 802
	codeInsufficientAccess = 953
)

// remapCode turns a non-zero legacy error code into a *backend.Error.
func remapCode(code int, action string) *backend.Error {
	msg := fmt.Sprintf("%s failed with legacy error %d", action, code)
	switch code {
	case codeRecordMissing, codeNoRecordsMatch, codeLayoutMissing, codeDatabaseNotOpen:
		return backend.NewNotFound(code, msg)
	case codeNoPrivileges, codeInvalidAccount, codeInsufficientAccess:
		return backend.NewUnauthorized(code, msg)
	case codeRecordInUse, codeValueNotUnique:
		return backend.NewConflict(code, msg)
	default:
		return backend.NewFailure(code, msg, nil)
	}
}
