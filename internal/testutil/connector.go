package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/record"
)

// Methods recorded by FakeConnector.
const (
	MethodFind   = "find"
	MethodCount  = "count"
	MethodGet    = "get"
	MethodCreate = "create"
	MethodUpdate = "update"
	MethodDelete = "delete"
	MethodScript = "script"
	MethodFields = "fields"
	MethodFetch  = "fetch"
	MethodClose  = "close"
)

// Call is one recorded connector call.
type Call struct {
	Seq      int64
	Method   string
	Layout   string
	RecordID string
	Options  backend.CallOptions
	Criteria *queryir.FindCriteria
	Skip     int
	Limit    int
	Fields   []record.RepeatedField
	Script   *backend.ScriptCall
}

// HasPreScript reports whether the call carried a pre-script.
func (c Call) HasPreScript() bool { return c.Options.PreScript != nil }

// HasPostScript reports whether the call carried a post-script.
func (c Call) HasPostScript() bool { return c.Options.PostScript != nil }

// FakeConnector is an in-memory backend.Connector that records every call.
//
// Records live in one table regardless of layout. Finds support the =
// operator only, which is all identity resolution needs. Failures are
// injected per method and call number with FailNth.
type FakeConnector struct {
	KindName string
	DB       string
	Meta     []record.FieldMeta

	// Containers maps a container reference to its content.
	Containers map[string]*backend.Container

	mu       sync.Mutex
	seq      *Sequence
	calls    []Call
	counts   map[string]int
	failures map[string]error
	ids      []string
	records  map[string]*record.Fields
	nextID   int
	closed   bool
}

var _ backend.Connector = (*FakeConnector)(nil)

// NewFakeConnector creates an empty fake of the given kind.
func NewFakeConnector(kind string) *FakeConnector {
	return &FakeConnector{
		KindName:   kind,
		DB:         "Fake",
		Containers: make(map[string]*backend.Container),
		seq:        NewSequence(),
		counts:     make(map[string]int),
		failures:   make(map[string]error),
		records:    make(map[string]*record.Fields),
	}
}

// Seed stores a record and returns its ID. IDs count up from 1.
func (f *FakeConnector) Seed(kv ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(record.FieldsOf(kv...))
}

func (f *FakeConnector) insert(fields *record.Fields) string {
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.ids = append(f.ids, id)
	f.records[id] = fields
	return id
}

// Record returns a copy of the stored record.
func (f *FakeConnector) Record(id string) (*record.Fields, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// FailNth makes the nth call (1-based) of method return err.
func (f *FakeConnector) FailNth(method string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+"#"+strconv.Itoa(n)] = err
}

// Calls returns the recorded calls in order.
func (f *FakeConnector) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of one method.
func (f *FakeConnector) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (f *FakeConnector) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// record appends c and returns the injected failure for it, if any.
func (f *FakeConnector) record(c Call) error {
	c.Seq = f.seq.Next()
	f.calls = append(f.calls, c)
	f.counts[c.Method]++
	return f.failures[c.Method+"#"+strconv.Itoa(f.counts[c.Method])]
}

// Kind implements backend.Connector.
func (f *FakeConnector) Kind() string { return f.KindName }

// Database implements backend.Connector.
func (f *FakeConnector) Database() string { return f.DB }

// ListDatabases implements backend.Connector.
func (f *FakeConnector) ListDatabases(context.Context) ([]string, error) {
	return []string{f.DB}, nil
}

// ListLayouts implements backend.Connector.
func (f *FakeConnector) ListLayouts(context.Context) ([]string, error) {
	return []string{"fake"}, nil
}

// ListScripts implements backend.Connector.
func (f *FakeConnector) ListScripts(context.Context) ([]string, error) {
	return nil, nil
}

// DescribeFields implements backend.Connector.
func (f *FakeConnector) DescribeFields(_ context.Context, layout string) ([]record.FieldMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodFields, Layout: layout}); err != nil {
		return nil, err
	}
	return append([]record.FieldMeta(nil), f.Meta...), nil
}

// Find implements backend.Connector.
func (f *FakeConnector) Find(_ context.Context, req backend.FindRequest) (*backend.FindResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodFind, Layout: req.Layout, Options: req.Options, Criteria: req.Criteria, Skip: req.Skip, Limit: req.Limit}); err != nil {
		return nil, err
	}

	matched, err := f.match(req.Criteria)
	if err != nil {
		return nil, err
	}
	skip, limit := req.Skip, req.Limit
	if c := req.Criteria; c != nil && (c.HasLimit || c.HasOffset) {
		skip, limit = 0, -1
		if c.HasOffset {
			skip = c.Offset
		}
		if c.HasLimit {
			limit = c.Limit
		}
	}
	res := &backend.FindResult{FoundCount: len(matched), TableCount: len(f.ids), Info: record.NewFields()}
	for i, id := range matched {
		if i < skip {
			continue
		}
		if limit >= 0 && len(res.Records) >= limit {
			break
		}
		res.Records = append(res.Records, record.Record{RecordID: id, Fields: f.records[id].Clone()})
	}
	return res, nil
}

// match evaluates criteria against every record in ID order.
func (f *FakeConnector) match(c *queryir.FindCriteria) ([]string, error) {
	var out []string
	for _, id := range f.ids {
		fields := f.records[id]
		if c.IsFindAll() {
			out = append(out, id)
			continue
		}
		hit := false
		for _, g := range c.FindGroups() {
			ok, err := groupMatches(g, fields)
			if err != nil {
				return nil, err
			}
			if ok {
				hit = true
				break
			}
		}
		if omit, ok := c.OmitGroup(); ok && hit {
			omitted, err := groupMatches(omit, fields)
			if err != nil {
				return nil, err
			}
			hit = !omitted
		}
		if hit {
			out = append(out, id)
		}
	}
	return out, nil
}

func groupMatches(g queryir.FindGroup, fields *record.Fields) (bool, error) {
	for _, cr := range g.Criteria {
		if cr.Op != queryir.OpEquals {
			return false, fmt.Errorf("fake connector: operator %s is not supported", cr.Op)
		}
		v, _ := fields.Get(cr.Field)
		if v != cr.Value {
			return false, nil
		}
	}
	return true, nil
}

// Count implements backend.Connector.
func (f *FakeConnector) Count(_ context.Context, layout string, criteria *queryir.FindCriteria) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodCount, Layout: layout, Criteria: criteria}); err != nil {
		return 0, err
	}
	matched, err := f.match(criteria)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// GetRecord implements backend.Connector.
func (f *FakeConnector) GetRecord(_ context.Context, layout, recordID string, opts backend.CallOptions) (*backend.FindResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodGet, Layout: layout, RecordID: recordID, Options: opts}); err != nil {
		return nil, err
	}
	fields, ok := f.records[recordID]
	if !ok {
		return nil, backend.NewNotFound(101, "record "+recordID+" not found")
	}
	return &backend.FindResult{
		Records:    []record.Record{{RecordID: recordID, Fields: fields.Clone()}},
		FoundCount: 1,
		TableCount: -1,
		Info:       record.NewFields(),
	}, nil
}

// CreateRecord implements backend.Connector.
func (f *FakeConnector) CreateRecord(_ context.Context, layout string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodCreate, Layout: layout, Options: opts, Fields: fields}); err != nil {
		return nil, err
	}
	id := f.insert(record.ExpandRepetitions(fields))
	return &backend.WriteResult{RecordID: id, Info: record.NewFields()}, nil
}

// UpdateRecord implements backend.Connector.
func (f *FakeConnector) UpdateRecord(_ context.Context, layout, recordID string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodUpdate, Layout: layout, RecordID: recordID, Options: opts, Fields: fields}); err != nil {
		return nil, err
	}
	current, ok := f.records[recordID]
	if !ok {
		return nil, backend.NewNotFound(101, "record "+recordID+" not found")
	}
	for k, v := range record.ExpandRepetitions(fields).All() {
		current.Set(k, v)
	}
	return &backend.WriteResult{RecordID: recordID, Info: record.NewFields()}, nil
}

// DeleteRecord implements backend.Connector.
func (f *FakeConnector) DeleteRecord(_ context.Context, layout, recordID string, opts backend.CallOptions) (*backend.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodDelete, Layout: layout, RecordID: recordID, Options: opts}); err != nil {
		return nil, err
	}
	if _, ok := f.records[recordID]; !ok {
		return nil, backend.NewNotFound(101, "record "+recordID+" not found")
	}
	delete(f.records, recordID)
	for i, id := range f.ids {
		if id == recordID {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			break
		}
	}
	return &backend.WriteResult{RecordID: recordID, Info: record.NewFields()}, nil
}

// RunScript implements backend.Connector. The script result is the
// parameter echoed back.
func (f *FakeConnector) RunScript(_ context.Context, layout string, call backend.ScriptCall) (*backend.FindResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc := call
	if err := f.record(Call{Method: MethodScript, Layout: layout, Script: &sc}); err != nil {
		return nil, err
	}
	return &backend.FindResult{
		TableCount: -1,
		Info:       record.FieldsOf(record.InfoScriptResult, call.Param, record.InfoScriptError, "0"),
	}, nil
}

// FetchContainer implements backend.Connector.
func (f *FakeConnector) FetchContainer(_ context.Context, ref string) (*backend.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: MethodFetch, RecordID: ref}); err != nil {
		return nil, err
	}
	c, ok := f.Containers[ref]
	if !ok {
		return nil, backend.NewNotFound(0, "container not found")
	}
	return c, nil
}

// Close implements backend.Connector.
func (f *FakeConnector) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record(Call{Method: MethodClose})
	f.closed = true
	return nil
}
