package harness

import (
	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/record"
)

// TraceEvent is one executed step: the message it produced or the error it
// raised.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Op      string          `json:"op"`
	Message *record.Message `json:"message,omitempty"`
	Error   *StepError      `json:"error,omitempty"`
}

// StepError is the client-visible form of a raised error.
type StepError struct {
	Category string `json:"category"`
	Status   int    `json:"status"`
	Code     int    `json:"code,omitempty"`
	Message  string `json:"message"`
}

func stepError(err error) *StepError {
	be := backend.AsError(err)
	return &StepError{
		Category: string(be.Category),
		Status:   be.Status(),
		Code:     be.Code,
		Message:  be.Message,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddMessageTrace records a step that returned a message.
func (r *Result) AddMessageTrace(op string, msg *record.Message, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Op: op, Message: msg})
}

// AddErrorTrace records a step that raised.
func (r *Result) AddErrorTrace(op string, err error, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Op: op, Error: stepError(err)})
}
