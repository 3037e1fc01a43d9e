package backend

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Status(t *testing.T) {
	testCases := []struct {
		err  *Error
		want int
	}{
		{NewNotFound(401, "no records match"), http.StatusNotFound},
		{NewUnauthorized(212, "bad login"), http.StatusUnauthorized},
		{NewConflict(504, "value not unique"), http.StatusConflict},
		{NewAmbiguous("Email=a@b", 2), http.StatusConflict},
		{NewFailure(802, "unavailable", nil), http.StatusInternalServerError},
		{NewBadRequest(errors.New("parse")), http.StatusBadRequest},
		{NewConfigError("no driver", nil), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(string(tc.err.Category), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Status())
		})
	}
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: no records match (code 401)", NewNotFound(401, "no records match").Error())
	assert.Equal(t, "CONFLICT: Email=a@b matches 2 records", NewAmbiguous("Email=a@b", 2).Error())
	assert.Equal(t, 2, NewAmbiguous("Email=a@b", 2).Matches)
}

func TestError_WrappedPredicates(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("create record: %w", NewFailure(0, "transport", cause))

	assert.Equal(t, CategoryFailure, CategoryOf(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsNotFound(err))

	nf := fmt.Errorf("read: %w", NewNotFound(0, "gone"))
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsConflict(nf))
	assert.True(t, IsConflict(NewAmbiguous("k=v", 3)))
	assert.True(t, IsUnauthorized(NewUnauthorized(0, "")))
	assert.True(t, IsBadRequest(NewBadRequest(cause)))
	assert.True(t, IsConfigError(NewConfigError("x", nil)))
	assert.False(t, IsNotFound(nil))
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	foreign := errors.New("boom")
	be := AsError(foreign)
	require.NotNil(t, be)
	assert.Equal(t, CategoryFailure, be.Category)
	assert.Equal(t, "boom", be.Message)

	orig := NewConflict(1, "dup")
	assert.Same(t, orig, AsError(fmt.Errorf("wrap: %w", orig)))
}

func TestRecordMissingAndNoMatch(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		recordMissing bool
		noMatch       bool
	}{
		{"record missing", NewNotFound(CodeRecordMissing, "gone"), true, false},
		{"no match", NewNotFound(CodeNoRecordsMatch, "none"), false, true},
		{"field missing", NewNotFound(102, "no such column"), false, false},
		{"layout missing", NewNotFound(105, "no layout"), false, false},
		{"wrapped", fmt.Errorf("read: %w", NewNotFound(CodeRecordMissing, "gone")), true, false},
		{"conflict with same code", NewConflict(CodeRecordMissing, "odd"), false, false},
		{"nil", nil, false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.recordMissing, IsRecordMissing(tc.err))
			assert.Equal(t, tc.noMatch, IsNoMatch(tc.err))
		})
	}
}
