// Package dataapi implements the connector for the JSON data API.
//
// The API is stateless apart from a bearer session: the connector logs in
// lazily on its first call and logs out in Close. Finds are compiled with
// queryjson on every call.
package dataapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/logger"
	"github.com/roach88/restgate/internal/metrics"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/queryjson"
	"github.com/roach88/restgate/internal/record"
)

// DefaultVersion is the API version path segment used when none is set.
const DefaultVersion = "vLatest"

// Options configure a Connector.
type Options struct {
	URL     string
	Version string
	Timeout time.Duration

	// LoginRetries bounds retries of a failed login on transport errors and
	// 5xx responses.
	LoginRetries int

	// RetryInterval replaces the exponential login backoff with a constant
	// interval when set.
	RetryInterval time.Duration

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

// Connector talks to the data API on behalf of one request.
type Connector struct {
	opts     Options
	base     *url.URL
	client   *http.Client
	creds    backend.Credentials
	database string
	log      *zap.SugaredLogger

	token       string
	ownsSession bool
	closed      bool
}

var _ backend.Connector = (*Connector)(nil)

// New creates a connector bound to database. No request is made until the
// first call.
func New(database string, creds backend.Credentials, opts Options) (*Connector, error) {
	if opts.URL == "" {
		return nil, backend.NewConfigError("data api url is not configured", nil)
	}
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, backend.NewConfigError("data api url is invalid", err)
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Connector{
		opts:     opts,
		base:     base,
		client:   client,
		creds:    creds,
		database: database,
		log:      logger.OrNop(opts.Logger),
		token:    creds.Token,
	}, nil
}

// Kind implements backend.Connector.
func (c *Connector) Kind() string { return backend.KindDataAPI }

// Database implements backend.Connector.
func (c *Connector) Database() string { return c.database }

func scriptsFor(opts backend.CallOptions) scriptParams {
	var sp scriptParams
	if s := opts.PreScript; s != nil {
		sp.PreRequest, sp.PreRequestParam = s.Name, s.Param
	}
	if s := opts.PostScript; s != nil {
		sp.Script, sp.ScriptParam = s.Name, s.Param
	}
	return sp
}

// values renders script parameters for GET and DELETE calls.
func (sp scriptParams) values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("script.prerequest", sp.PreRequest)
	set("script.prerequest.param", sp.PreRequestParam)
	set("script", sp.Script)
	set("script.param", sp.ScriptParam)
	return q
}

// ListDatabases implements backend.Connector. It authenticates with basic
// auth rather than a session.
func (c *Connector) ListDatabases(ctx context.Context) ([]string, error) {
	defer metrics.StartTimer(backend.KindDataAPI, "databases").Stop()

	target := c.base.JoinPath("fmi", "data", c.opts.Version, "databases").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backend.NewFailure(0, "build request", err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	var dr databasesResponse
	if err := c.send(req, "databases", &dr); err != nil {
		return nil, err
	}
	return flatten(dr.Databases), nil
}

// ListLayouts implements backend.Connector.
func (c *Connector) ListLayouts(ctx context.Context) ([]string, error) {
	var lr layoutsResponse
	if err := c.call(ctx, "layouts", http.MethodGet, c.databaseURL("layouts"), nil, nil, &lr); err != nil {
		return nil, err
	}
	return flatten(lr.Layouts), nil
}

// ListScripts implements backend.Connector.
func (c *Connector) ListScripts(ctx context.Context) ([]string, error) {
	var sr scriptsResponse
	if err := c.call(ctx, "scripts", http.MethodGet, c.databaseURL("scripts"), nil, nil, &sr); err != nil {
		return nil, err
	}
	return flatten(sr.Scripts), nil
}

// DescribeFields implements backend.Connector.
func (c *Connector) DescribeFields(ctx context.Context, layout string) ([]record.FieldMeta, error) {
	var lr layoutResponse
	if err := c.call(ctx, "layout", http.MethodGet, c.databaseURL("layouts", layout), nil, nil, &lr); err != nil {
		return nil, err
	}
	out := make([]record.FieldMeta, 0, len(lr.FieldMetaData))
	for _, fm := range lr.FieldMetaData {
		maxRepeat := fm.MaxRepeat
		if maxRepeat < 1 {
			maxRepeat = 1
		}
		out = append(out, record.FieldMeta{
			Name:        fm.Name,
			AutoEntered: fm.AutoEnter,
			Global:      fm.Global,
			MaxRepeat:   maxRepeat,
			ResultType:  resultType(fm.Result),
			NativeType:  fm.Type,
		})
	}
	return out, nil
}

func resultType(s string) string {
	switch strings.ToLower(s) {
	case "number":
		return record.ResultNumber
	case "date":
		return record.ResultDate
	case "time":
		return record.ResultTime
	case "timestamp":
		return record.ResultTimestamp
	case "container":
		return record.ResultContainer
	default:
		return record.ResultText
	}
}

// Find implements backend.Connector. Criteria without find groups go to
// the records endpoint; everything else to _find.
func (c *Connector) Find(ctx context.Context, req backend.FindRequest) (*backend.FindResult, error) {
	q, err := queryjson.Compile(req.Criteria)
	if err != nil {
		return nil, backend.NewBadRequest(err)
	}
	if req.Criteria == nil || (!req.Criteria.HasLimit && !req.Criteria.HasOffset) {
		if req.Skip > 0 {
			q.Offset = req.Skip + 1
		}
		if req.Limit >= 0 {
			limit := req.Limit
			q.Limit = &limit
		}
	}
	selected := make(map[string]bool, len(q.Fields))
	for _, f := range q.Fields {
		name, _, _ := record.SplitSuffix(f)
		selected[name] = true
	}

	var rr recordsResponse
	if q.IsFindAll() {
		params, err := q.URLParams()
		if err != nil {
			return nil, backend.NewFailure(0, "encode sort", err)
		}
		values := scriptsFor(req.Options).values()
		for k, v := range params {
			values.Set(k, v)
		}
		err = c.call(ctx, "records", http.MethodGet, c.databaseURL("layouts", req.Layout, "records"), values, nil, &rr)
		if err != nil {
			return nil, err
		}
	} else {
		body := findBody{
			Query:        q.Query,
			Offset:       q.Offset,
			Sort:         q.Sort,
			Limit:        q.Limit,
			scriptParams: scriptsFor(req.Options),
		}
		err := c.call(ctx, "find", http.MethodPost, c.databaseURL("layouts", req.Layout, "_find"), nil, body, &rr)
		if backend.IsNotFound(err) && backend.AsError(err).Code == codeNoRecordsMatch {
			return &backend.FindResult{TableCount: -1, Info: record.NewFields()}, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return c.toResult(rr, selected), nil
}

func (c *Connector) toResult(rr recordsResponse, selected map[string]bool) *backend.FindResult {
	res := &backend.FindResult{TableCount: -1, Info: rr.scriptInfo.info()}
	if rr.DataInfo != nil {
		res.FoundCount = rr.DataInfo.FoundCount
		res.TableCount = rr.DataInfo.TotalRecordCount
	}
	for _, d := range rr.Data {
		r := record.Record{RecordID: d.RecordID, Fields: record.NewFields()}
		if d.FieldData != nil {
			r.Fields = decodeFieldData(d.FieldData, selected)
		}
		res.Records = append(res.Records, r)
	}
	if rr.DataInfo == nil {
		res.FoundCount = len(res.Records)
	}
	return res
}

// Count implements backend.Connector.
func (c *Connector) Count(ctx context.Context, layout string, criteria *queryir.FindCriteria) (int, error) {
	var sample *queryir.FindCriteria
	if criteria != nil {
		cp := *criteria
		cp.HasLimit, cp.HasOffset = false, false
		cp.Limit, cp.Offset = 0, 0
		sample = &cp
	}
	res, err := c.Find(ctx, backend.FindRequest{Layout: layout, Criteria: sample, Limit: 1})
	if err != nil {
		return 0, err
	}
	return res.FoundCount, nil
}

// GetRecord implements backend.Connector.
func (c *Connector) GetRecord(ctx context.Context, layout, recordID string, opts backend.CallOptions) (*backend.FindResult, error) {
	var rr recordsResponse
	err := c.call(ctx, "get", http.MethodGet, c.databaseURL("layouts", layout, "records", recordID),
		scriptsFor(opts).values(), nil, &rr)
	if err != nil {
		return nil, err
	}
	res := c.toResult(rr, nil)
	if len(res.Records) == 0 {
		return nil, backend.NewNotFound(codeRecordMissing, fmt.Sprintf("record %s not found", recordID))
	}
	return res, nil
}

// CreateRecord implements backend.Connector.
func (c *Connector) CreateRecord(ctx context.Context, layout string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	body := writeBody{FieldData: encodeFieldData(fields), scriptParams: scriptsFor(opts)}
	var wr writeResponse
	if err := c.call(ctx, "create", http.MethodPost, c.databaseURL("layouts", layout, "records"), nil, body, &wr); err != nil {
		return nil, err
	}
	return &backend.WriteResult{RecordID: wr.RecordID, Info: wr.scriptInfo.info()}, nil
}

// UpdateRecord implements backend.Connector.
func (c *Connector) UpdateRecord(ctx context.Context, layout, recordID string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	body := writeBody{FieldData: encodeFieldData(fields), scriptParams: scriptsFor(opts)}
	var wr writeResponse
	err := c.call(ctx, "update", http.MethodPatch, c.databaseURL("layouts", layout, "records", recordID), nil, body, &wr)
	if err != nil {
		return nil, err
	}
	return &backend.WriteResult{RecordID: recordID, Info: wr.scriptInfo.info()}, nil
}

// DeleteRecord implements backend.Connector.
func (c *Connector) DeleteRecord(ctx context.Context, layout, recordID string, opts backend.CallOptions) (*backend.WriteResult, error) {
	var wr writeResponse
	err := c.call(ctx, "delete", http.MethodDelete, c.databaseURL("layouts", layout, "records", recordID),
		scriptsFor(opts).values(), nil, &wr)
	if err != nil {
		return nil, err
	}
	return &backend.WriteResult{RecordID: recordID, Info: wr.scriptInfo.info()}, nil
}

// RunScript implements backend.Connector. The script endpoint returns no
// records, only the script result and error.
func (c *Connector) RunScript(ctx context.Context, layout string, call backend.ScriptCall) (*backend.FindResult, error) {
	q := url.Values{}
	if call.Param != "" {
		q.Set("script.param", call.Param)
	}
	var si scriptInfo
	err := c.call(ctx, "script", http.MethodGet, c.databaseURL("layouts", layout, "script", call.Name), q, nil, &si)
	if err != nil {
		return nil, err
	}
	return &backend.FindResult{TableCount: -1, Info: si.info()}, nil
}

// FetchContainer implements backend.Connector. ref is the streaming URL
// found in the container field.
func (c *Connector) FetchContainer(ctx context.Context, ref string) (*backend.Container, error) {
	defer metrics.StartTimer(backend.KindDataAPI, "container").Stop()

	target, err := url.Parse(ref)
	if err != nil {
		return nil, backend.NewFailure(0, "invalid container reference", err)
	}
	u := c.base.ResolveReference(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backend.NewFailure(0, "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, backend.NewFailure(0, "container request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backend.NewNotFound(resp.StatusCode, "container not found")
	case resp.StatusCode != http.StatusOK:
		return nil, backend.NewFailure(resp.StatusCode, "container: http status "+strconv.Itoa(resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.NewFailure(0, "read container", err)
	}
	name := path.Base(u.Path)
	if !strings.Contains(name, ".") {
		name = ""
	}
	return &backend.Container{Data: data, ContentType: resp.Header.Get("Content-Type"), Filename: name}, nil
}
