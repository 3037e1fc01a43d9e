package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/record"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error(ErrCodeBadRequest, "bad query", map[string]int{"position": 7})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBadRequest, resp.Error.Code)
	assert.Equal(t, "bad query", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("all good"))
	require.NoError(t, formatter.Error(ErrCodeConfig, "no url", nil))
	assert.Contains(t, buf.String(), "all good")
	assert.Contains(t, buf.String(), "Error [E_CONFIG]: no url")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("using %s", "sql")
	assert.Empty(t, out.String())
	assert.Equal(t, "using sql\n", errOut.String())

	quiet := &OutputFormatter{Writer: out}
	quiet.VerboseLog("hidden")
	assert.Empty(t, out.String())
}

func TestOutputFormatter_BackendError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"not found", backend.NewNotFound(401, "no records match"), ErrCodeNotFound, ExitFailure},
		{"unauthorized", backend.NewUnauthorized(212, "bad login"), ErrCodeUnauthorized, ExitFailure},
		{"conflict", backend.NewConflict(504, "duplicate"), ErrCodeConflict, ExitFailure},
		{"bad request", backend.NewBadRequest(errors.New("unexpected token")), ErrCodeBadRequest, ExitCommandError},
		{"config", backend.NewConfigError("no url", nil), ErrCodeConfig, ExitCommandError},
		{"plain error", errors.New("connection reset"), ErrCodeBackend, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.BackendError(tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestOutputFormatter_MessageText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	msg := record.NewMessage()
	msg.AddRecord(record.Record{RecordID: "7", Fields: record.FieldsOf("Title", "a", "Status", "open")})
	msg.Nav = []record.NavLink{{Name: "start", Skip: 0, Max: 10}, {Name: "next", Skip: 10, Max: 10}}

	require.NoError(t, formatter.Message(msg))
	out := buf.String()
	assert.Contains(t, out, "record 7\n  Title: a\n  Status: open\n")
	assert.Contains(t, out, "# pages: start=0 next=10 (max 10)")
}

func TestOutputFormatter_MessagePartialFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	msg := record.NewMessage()
	msg.AddRecord(record.Record{RecordID: "1"})
	msg.AddIndexStatus(1, 409, 504, "duplicate value")
	msg.AddRecordStatus("Title=x", 404, 401, "no record matches Title=x")

	err := formatter.Message(msg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 item(s) failed")
	assert.Contains(t, buf.String(), "✗ 1: 409 duplicate value (code 504)")
	assert.Contains(t, buf.String(), "✗ Title=x: 404 no record matches Title=x (code 401)")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad args")))
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "failed", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	e := WrapExitError(ExitFailure, "failed", errors.New("inner"))
	assert.Equal(t, "failed: inner", e.Error())
	assert.EqualError(t, errors.Unwrap(e), "inner")
}
