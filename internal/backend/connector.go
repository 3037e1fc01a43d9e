// Package backend defines the connector contract shared by the legacy RPC,
// data API, and SQL adapters, and the error taxonomy they remap into.
//
// A Connector is request-scoped: the selector builds one per request and
// the caller closes it when the request ends. Connectors are not safe for
// concurrent use.
package backend

import (
	"context"

	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/record"
)

// Connector kinds.
const (
	KindLegacy  = "legacy"
	KindDataAPI = "dataapi"
	KindSQL     = "sql"
)

// Credentials authenticate a connector. Token, when set, is a session token
// already issued by the data API and takes precedence over the password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// ScriptCall names a remote script and its optional parameter.
type ScriptCall struct {
	Name  string
	Param string
}

// CallOptions are attached to a single backend call. The orchestrator sets
// PreScript on the first item of a batch and PostScript on the last.
type CallOptions struct {
	PreScript  *ScriptCall
	PostScript *ScriptCall
}

// FindRequest describes a find against one layout or table.
//
// Criteria nil means find all. When the criteria carry no LIMIT/OFFSET of
// their own, Skip and Limit are applied through the connector's native
// range; Limit < 0 means no limit.
type FindRequest struct {
	Layout   string
	Criteria *queryir.FindCriteria
	Skip     int
	Limit    int
	Options  CallOptions
}

// FindResult is what a find or a single-record read returns.
type FindResult struct {
	// Records hold expanded fields (repetitions as name[n]).
	Records []record.Record

	// Meta describes the layout's fields.
	Meta []record.FieldMeta

	// FoundCount is the size of the found set before the range applied.
	FoundCount int

	// TableCount is the number of records in the table, -1 when unknown.
	TableCount int

	// Info carries script results and other backend metadata.
	Info *record.Fields
}

// WriteResult is what create, update, and delete return.
type WriteResult struct {
	RecordID string

	// Record is the record as stored after the write, when the backend
	// returns it for free. It may be nil.
	Record *record.Record

	Info *record.Fields
}

// Container is the payload of a container field.
type Container struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Connector is the contract every backend adapter implements. Errors are
// *Error values with the backend's codes already remapped.
type Connector interface {
	// Kind returns KindLegacy, KindDataAPI, or KindSQL.
	Kind() string

	// Database returns the database the connector is bound to.
	Database() string

	ListDatabases(ctx context.Context) ([]string, error)
	ListLayouts(ctx context.Context) ([]string, error)
	ListScripts(ctx context.Context) ([]string, error)
	DescribeFields(ctx context.Context, layout string) ([]record.FieldMeta, error)

	// Find runs a find. An empty found set is not an error.
	Find(ctx context.Context, req FindRequest) (*FindResult, error)

	// Count returns the size of the found set for criteria, ignoring any
	// window they carry.
	Count(ctx context.Context, layout string, criteria *queryir.FindCriteria) (int, error)

	// GetRecord reads one record by opaque ID.
	GetRecord(ctx context.Context, layout, recordID string, opts CallOptions) (*FindResult, error)

	CreateRecord(ctx context.Context, layout string, fields []record.RepeatedField, opts CallOptions) (*WriteResult, error)
	UpdateRecord(ctx context.Context, layout, recordID string, fields []record.RepeatedField, opts CallOptions) (*WriteResult, error)
	DeleteRecord(ctx context.Context, layout, recordID string, opts CallOptions) (*WriteResult, error)

	// RunScript runs a named script in the context of layout.
	RunScript(ctx context.Context, layout string, call ScriptCall) (*FindResult, error)

	// FetchContainer downloads the payload a container reference points at.
	FetchContainer(ctx context.Context, ref string) (*Container, error)

	// Close releases the session. It is safe to call more than once.
	Close(ctx context.Context) error
}
