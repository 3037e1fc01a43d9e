// Package orchestrator runs single and bulk record operations against one
// backend connector and assembles the resulting Message.
//
// An Orchestrator is request-scoped. Parameters arrive through setters
// before an operation runs; operations never read ambient state. Bulk items
// run sequentially in submission order, each with an explicit batchPos that
// decides whether the pre-script (first item) or post-script (last item)
// travels with its backend call.
//
// Single-item operations (CreateOne, ReadOne, UpdateOne, DeleteOne) raise
// the first error and never produce multistatus rows. Bulk operations never
// raise for a per-item failure; the item becomes a multistatus row and the
// batch continues.
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/logger"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/queryparse"
	"github.com/roach88/restgate/internal/record"
)

// DefaultMaxRecords is the page size ReadLayout uses when no window limit
// is set.
const DefaultMaxRecords = 100

// SkipEnd asks ReadLayout for the last page of the found set.
const SkipEnd = -1

// ContainerEncoding selects how container field values are returned.
type ContainerEncoding string

const (
	// EncodingReference returns the backend reference unchanged.
	EncodingReference ContainerEncoding = "reference"
	// EncodingBase64 fetches the content and returns it base64 encoded,
	// prefixed with "filename;" when the reference names a file.
	EncodingBase64 ContainerEncoding = "base64"
	// EncodingRaw leaves references in records; the bytes are served by
	// FetchContainer.
	EncodingRaw ContainerEncoding = "raw"
)

// ParseContainerEncoding parses an encoding name. Empty means reference.
func ParseContainerEncoding(s string) (ContainerEncoding, error) {
	switch ContainerEncoding(strings.ToLower(s)) {
	case "", EncodingReference:
		return EncodingReference, nil
	case EncodingBase64:
		return EncodingBase64, nil
	case EncodingRaw:
		return EncodingRaw, nil
	}
	return "", backend.NewBadRequest(fmt.Errorf("unknown container encoding %q", s))
}

// IDGenerator produces request correlation IDs.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string { return uuid.NewString() }

// Options configure an Orchestrator.
type Options struct {
	// MaxRecords is the default ReadLayout page size.
	MaxRecords int

	// RequestIDs generates the correlation ID. Defaults to random UUIDs.
	RequestIDs IDGenerator

	Logger *zap.SugaredLogger
}

// Orchestrator runs operations against one layout of one connector.
type Orchestrator struct {
	conn      backend.Connector
	layout    string
	requestID string
	log       *zap.SugaredLogger

	script     *backend.ScriptCall
	preScript  *backend.ScriptCall
	postScript *backend.ScriptCall

	appendMode       bool
	updateElseCreate bool
	suppressData     bool
	echo             bool
	encoding         ContainerEncoding

	skip  int
	limit int
	query *queryir.FindCriteria

	meta []record.FieldMeta
}

// New creates an orchestrator for layout on conn.
func New(conn backend.Connector, layout string, opts Options) *Orchestrator {
	gen := opts.RequestIDs
	if gen == nil {
		gen = uuidGenerator{}
	}
	limit := opts.MaxRecords
	if limit <= 0 {
		limit = DefaultMaxRecords
	}
	id := gen.Generate()
	return &Orchestrator{
		conn:      conn,
		layout:    layout,
		requestID: id,
		log:       logger.OrNop(opts.Logger).With("request", id, "backend", conn.Kind(), "layout", layout),
		encoding:  EncodingReference,
		limit:     limit,
	}
}

// RequestID returns the correlation ID of this orchestrator.
func (o *Orchestrator) RequestID() string { return o.requestID }

// SetScript sets the script RunScript executes.
func (o *Orchestrator) SetScript(name, param string) {
	o.script = scriptCall(name, param)
}

// SetPreScript sets the script that runs before the first item of a batch.
func (o *Orchestrator) SetPreScript(name, param string) {
	o.preScript = scriptCall(name, param)
}

// SetPostScript sets the script that runs with the last item of a batch.
func (o *Orchestrator) SetPostScript(name, param string) {
	o.postScript = scriptCall(name, param)
}

func scriptCall(name, param string) *backend.ScriptCall {
	if name == "" {
		return nil
	}
	return &backend.ScriptCall{Name: name, Param: param}
}

// SetAppend makes updates concatenate submitted values onto the current
// ones instead of overwriting them.
func (o *Orchestrator) SetAppend(on bool) { o.appendMode = on }

// SetUpdateElseCreate makes an update of a missing record create it.
func (o *Orchestrator) SetUpdateElseCreate(on bool) { o.updateElseCreate = on }

// SetSuppressData strips field data from read, ReadLayout and script
// results, leaving record IDs and info.
func (o *Orchestrator) SetSuppressData(on bool) { o.suppressData = on }

// SetEcho makes create and update return the full record instead of its ID.
func (o *Orchestrator) SetEcho(on bool) { o.echo = on }

// SetContainerEncoding selects the container policy.
func (o *Orchestrator) SetContainerEncoding(enc ContainerEncoding) { o.encoding = enc }

// SetWindow sets the ReadLayout window. skip SkipEnd requests the last
// page; limit <= 0 keeps the configured default.
func (o *Orchestrator) SetWindow(skip, limit int) {
	o.skip = skip
	if limit > 0 {
		o.limit = limit
	}
}

// SetQuery parses q for ReadLayout. An empty q means find all. Parse errors
// are bad requests.
func (o *Orchestrator) SetQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		o.query = nil
		return nil
	}
	crit, err := queryparse.Parse(q)
	if err != nil {
		return backend.NewBadRequest(err)
	}
	o.query = crit
	return nil
}

// batchPos is an item's place in its batch.
type batchPos struct {
	Index   int
	IsFirst bool
	IsLast  bool
}

func positionOf(i, n int) batchPos {
	return batchPos{Index: i, IsFirst: i == 0, IsLast: i == n-1}
}

// single is the position of a single-item operation.
var single = batchPos{Index: 0, IsFirst: true, IsLast: true}

// hooks carries the scripts owed by one item. options hands them to the
// backend call that goes out; whatever is still owed when the item ends is
// run standalone by settle.
type hooks struct {
	pre  *backend.ScriptCall
	post *backend.ScriptCall
	sent bool
}

func (o *Orchestrator) hooksFor(pos batchPos) *hooks {
	h := &hooks{}
	if pos.IsFirst {
		h.pre = o.preScript
	}
	if pos.IsLast {
		h.post = o.postScript
	}
	return h
}

// options returns the call options for the item's main backend call.
func (h *hooks) options() backend.CallOptions {
	h.sent = true
	return backend.CallOptions{PreScript: h.pre, PostScript: h.post}
}
