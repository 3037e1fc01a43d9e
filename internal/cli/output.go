package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/record"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (backend error, failed items, failed scenarios)
	ExitCommandError = 2 // Command error (bad arguments, invalid configuration)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric      = "E_GENERIC"
	ErrCodeNotFound     = "E_NOT_FOUND"
	ErrCodeUnauthorized = "E_UNAUTHORIZED"
	ErrCodeConflict     = "E_CONFLICT"
	ErrCodeBadRequest   = "E_BAD_REQUEST"
	ErrCodeConfig       = "E_CONFIG"
	ErrCodeBackend      = "E_BACKEND"
	ErrCodePartial      = "E_PARTIAL"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	data, err := gojson.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Writer.Write(data)
	return err
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// BackendError reports err and returns the ExitError the command should
// fail with. Configuration and bad-request errors are command errors;
// everything else is an operation failure.
func (f *OutputFormatter) BackendError(err error) error {
	be := backend.AsError(err)
	code, exit := errorCode(be.Category)
	var details any
	if be.Code != 0 || be.Matches != 0 {
		details = map[string]int{"status": be.Status(), "code": be.Code, "matches": be.Matches}
	}
	if outErr := f.Error(code, be.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, string(be.Category), err)
}

func errorCode(c backend.Category) (string, int) {
	switch c {
	case backend.CategoryNotFound:
		return ErrCodeNotFound, ExitFailure
	case backend.CategoryUnauthorized:
		return ErrCodeUnauthorized, ExitFailure
	case backend.CategoryConflict:
		return ErrCodeConflict, ExitFailure
	case backend.CategoryBadRequest:
		return ErrCodeBadRequest, ExitCommandError
	case backend.CategoryConfig:
		return ErrCodeConfig, ExitCommandError
	}
	return ErrCodeBackend, ExitFailure
}

// Message outputs a record message. A message with multistatus rows is a
// partial failure and returns an ExitError after printing.
func (f *OutputFormatter) Message(msg *record.Message) error {
	var err error
	if f.Format == "json" {
		err = f.encode(CLIResponse{Status: "ok", Data: msg})
	} else {
		f.writeMessageText(msg)
	}
	if err != nil {
		return err
	}
	if n := len(msg.Multistatus); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) failed", n))
	}
	return nil
}

func (f *OutputFormatter) writeMessageText(msg *record.Message) {
	w := f.Writer
	for _, r := range msg.Records {
		fmt.Fprintf(w, "record %s\n", r.RecordID)
		if r.Fields == nil {
			continue
		}
		for k, v := range r.Fields.All() {
			fmt.Fprintf(w, "  %s: %s\n", k, v)
		}
	}
	for _, s := range msg.Multistatus {
		fmt.Fprintf(w, "✗ %s: %d %s", s.Key(), s.Status, s.Reason)
		if s.Code != 0 {
			fmt.Fprintf(w, " (code %d)", s.Code)
		}
		fmt.Fprintln(w)
	}
	if f.Verbose && msg.Info != nil {
		for k, v := range msg.Info.All() {
			fmt.Fprintf(w, "# %s=%s\n", k, v)
		}
	}
	if len(msg.Nav) > 0 {
		links := make([]string, len(msg.Nav))
		for i, n := range msg.Nav {
			links[i] = fmt.Sprintf("%s=%d", n.Name, n.Skip)
		}
		fmt.Fprintf(w, "# pages: %s (max %d)\n", strings.Join(links, " "), msg.Nav[0].Max)
	}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
