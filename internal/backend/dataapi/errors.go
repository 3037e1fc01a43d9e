package dataapi

import (
	"net/http"

	"github.com/roach88/restgate/internal/backend"
)

// Data API message codes the connector remaps.
const (
	codeOK             = 0
	codeNoPrivileges   = 9
	codeRecordMissing  = 101
	codeLayoutMissing  = 105
	codeInvalidAccount = 212
	codeRecordInUse    = 301
	codeNoRecordsMatch = 401
	codeValueNotUnique = 504
	codeFileNotOpen    = 802
	codeInvalidToken   = 952
)

// remapCode turns a non-zero message code into a *backend.Error.
func remapCode(code int, msg string, status int) *backend.Error {
	switch code {
	case codeRecordMissing, codeNoRecordsMatch, codeLayoutMissing, codeFileNotOpen:
		return backend.NewNotFound(code, msg)
	case codeNoPrivileges, codeInvalidAccount, codeInvalidToken:
		return backend.NewUnauthorized(code, msg)
	case codeRecordInUse, codeValueNotUnique:
		return backend.NewConflict(code, msg)
	}
	if status == http.StatusUnauthorized {
		return backend.NewUnauthorized(code, msg)
	}
	return backend.NewFailure(code, msg, nil)
}
