// Package legacy implements the connector for the legacy XML publishing
// endpoint.
//
// Every call is one GET against fmresultset.xml carrying a command
// parameter (-findquery, -new, -edit, ...) plus -db and -lay. Finds are
// built as querycmd.CompoundFind command objects and serialized with
// Params. Authentication is HTTP basic on every request.
package legacy

import (
	"context"
	"encoding/xml"
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
	"github.com/roach88/restgate/internal/querycmd"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/record"
)

// ResultSetPath is the XML grammar endpoint.
const ResultSetPath = "/fmi/xml/fmresultset.xml"

// Listing columns of -dbnames, -layoutnames and -scriptnames.
const (
	columnDatabase = "DATABASE_NAME"
	columnLayout   = "LAYOUT_NAME"
	columnScript   = "SCRIPT_NAME"
)

// Options configure a Connector.
type Options struct {
	// URL is the server base URL, e.g. http://fms.example.com.
	URL string

	// Timeout bounds each request. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client

	Logger *zap.SugaredLogger
}

// Connector talks to the legacy endpoint on behalf of one request.
type Connector struct {
	base     *url.URL
	client   *http.Client
	creds    backend.Credentials
	database string
	log      *zap.SugaredLogger
}

var _ backend.Connector = (*Connector)(nil)

// New creates a connector bound to database.
func New(database string, creds backend.Credentials, opts Options) (*Connector, error) {
	if opts.URL == "" {
		return nil, backend.NewConfigError("legacy url is not configured", nil)
	}
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, backend.NewConfigError("legacy url is invalid", err)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Connector{
		base:     base,
		client:   client,
		creds:    creds,
		database: database,
		log:      logger.OrNop(opts.Logger),
	}, nil
}

// Kind implements backend.Connector.
func (c *Connector) Kind() string { return backend.KindLegacy }

// Database implements backend.Connector.
func (c *Connector) Database() string { return c.database }

// Close implements backend.Connector. The endpoint keeps no session.
func (c *Connector) Close(context.Context) error { return nil }

// command starts a parameter list for layout, with -db set.
func (c *Connector) command(layout string) querycmd.Params {
	var p querycmd.Params
	if c.database != "" {
		p.Add("-db", c.database)
	}
	if layout != "" {
		p.Add("-lay", layout)
	}
	return p
}

// addScripts attaches hook scripts. The pre-script runs before the command
// (-script.prefind), the post-script after it (-script).
func addScripts(p *querycmd.Params, opts backend.CallOptions) {
	if s := opts.PreScript; s != nil {
		p.Add("-script.prefind", s.Name)
		if s.Param != "" {
			p.Add("-script.prefind.param", s.Param)
		}
	}
	if s := opts.PostScript; s != nil {
		p.Add("-script", s.Name)
		if s.Param != "" {
			p.Add("-script.param", s.Param)
		}
	}
}

// do runs one command and decodes the result set. A non-zero error code
// is returned as-is in the result set for the caller to interpret.
func (c *Connector) do(ctx context.Context, action string, p querycmd.Params) (*resultSet, error) {
	defer metrics.StartTimer(backend.KindLegacy, action).Stop()

	u := c.base.ResolveReference(&url.URL{Path: ResultSetPath})
	u.RawQuery = p.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backend.NewFailure(0, "build request", err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	c.log.Debugw("legacy request", "action", action, "db", c.database)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, backend.NewFailure(0, fmt.Sprintf("%s: request failed", action), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, backend.NewUnauthorized(resp.StatusCode, "legacy endpoint rejected the credentials")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backend.NewFailure(resp.StatusCode, fmt.Sprintf("%s: http status %d", action, resp.StatusCode), nil)
	}

	var rs resultSet
	if err := xml.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return nil, backend.NewFailure(0, fmt.Sprintf("%s: decode response", action), err)
	}
	if rs.Error.Code != codeOK {
		c.log.Debugw("legacy error", "action", action, "code", rs.Error.Code)
	}
	return &rs, nil
}

// mustSucceed runs a command and remaps any error code.
func (c *Connector) mustSucceed(ctx context.Context, action string, p querycmd.Params) (*resultSet, error) {
	rs, err := c.do(ctx, action, p)
	if err != nil {
		return nil, err
	}
	if rs.Error.Code != codeOK {
		return nil, remapCode(rs.Error.Code, action)
	}
	return rs, nil
}

// ListDatabases implements backend.Connector.
func (c *Connector) ListDatabases(ctx context.Context) ([]string, error) {
	var p querycmd.Params
	p.Add("-dbnames", "")
	rs, err := c.mustSucceed(ctx, "dbnames", p)
	if err != nil {
		return nil, err
	}
	return rs.names(columnDatabase), nil
}

// ListLayouts implements backend.Connector.
func (c *Connector) ListLayouts(ctx context.Context) ([]string, error) {
	p := c.command("")
	p.Add("-layoutnames", "")
	rs, err := c.mustSucceed(ctx, "layoutnames", p)
	if err != nil {
		return nil, err
	}
	return rs.names(columnLayout), nil
}

// ListScripts implements backend.Connector.
func (c *Connector) ListScripts(ctx context.Context) ([]string, error) {
	p := c.command("")
	p.Add("-scriptnames", "")
	rs, err := c.mustSucceed(ctx, "scriptnames", p)
	if err != nil {
		return nil, err
	}
	return rs.names(columnScript), nil
}

// DescribeFields implements backend.Connector.
func (c *Connector) DescribeFields(ctx context.Context, layout string) ([]record.FieldMeta, error) {
	p := c.command(layout)
	p.Add("-view", "")
	rs, err := c.mustSucceed(ctx, "view", p)
	if err != nil {
		return nil, err
	}
	return rs.meta(), nil
}

// Find implements backend.Connector.
func (c *Connector) Find(ctx context.Context, req backend.FindRequest) (*backend.FindResult, error) {
	cmd, err := querycmd.Compile(req.Criteria)
	if err != nil {
		return nil, backend.NewBadRequest(err)
	}
	if _, _, ok := cmd.Range(); !ok {
		cmd.SetRange(req.Skip, req.Limit)
	}

	p := c.command(req.Layout)
	p = append(p, cmd.Params()...)
	addScripts(&p, req.Options)

	rs, err := c.do(ctx, "find", p)
	if err != nil {
		return nil, err
	}
	res := &backend.FindResult{TableCount: rs.Datasource.TotalCount, Info: record.NewFields()}
	switch rs.Error.Code {
	case codeOK:
	case codeNoRecordsMatch:
		res.Meta = rs.meta()
		return res, nil
	default:
		return nil, remapCode(rs.Error.Code, "find")
	}

	res.Records = rs.records(cmd.Fields())
	res.Meta = rs.meta()
	res.FoundCount = rs.Records.Count
	return res, nil
}

// Count implements backend.Connector.
func (c *Connector) Count(ctx context.Context, layout string, criteria *queryir.FindCriteria) (int, error) {
	var unwindowed *queryir.FindCriteria
	if criteria != nil {
		cp := *criteria
		cp.HasLimit, cp.HasOffset = false, false
		cp.Limit, cp.Offset = 0, 0
		unwindowed = &cp
	}
	res, err := c.Find(ctx, backend.FindRequest{Layout: layout, Criteria: unwindowed, Limit: 0})
	if err != nil {
		return 0, err
	}
	return res.FoundCount, nil
}

// GetRecord implements backend.Connector.
func (c *Connector) GetRecord(ctx context.Context, layout, recordID string, opts backend.CallOptions) (*backend.FindResult, error) {
	p := c.command(layout)
	p.Add("-recid", recordID)
	p.Add("-find", "")
	addScripts(&p, opts)

	rs, err := c.mustSucceed(ctx, "get", p)
	if err != nil {
		return nil, err
	}
	if len(rs.Records.Records) == 0 {
		return nil, backend.NewNotFound(codeRecordMissing, fmt.Sprintf("record %s not found", recordID))
	}
	return &backend.FindResult{
		Records:    rs.records(nil),
		Meta:       rs.meta(),
		FoundCount: rs.Records.Count,
		TableCount: rs.Datasource.TotalCount,
		Info:       record.NewFields(),
	}, nil
}

// fieldParams writes repeated fields using name(n) with a one-based
// repetition number.
func fieldParams(p *querycmd.Params, fields []record.RepeatedField) {
	for _, rf := range fields {
		if !rf.Indexed {
			v := ""
			if len(rf.Reps) > 0 {
				v = rf.Reps[0].Value
			}
			p.Add(rf.Name, v)
			continue
		}
		for _, rep := range rf.Reps {
			p.Add(rf.Name+"("+strconv.Itoa(rep.Index+1)+")", rep.Value)
		}
	}
}

func (c *Connector) write(ctx context.Context, action string, p querycmd.Params) (*backend.WriteResult, error) {
	rs, err := c.mustSucceed(ctx, action, p)
	if err != nil {
		return nil, err
	}
	res := &backend.WriteResult{Info: record.NewFields()}
	if recs := rs.records(nil); len(recs) > 0 {
		res.RecordID = recs[0].RecordID
		res.Record = &recs[0]
	}
	return res, nil
}

// CreateRecord implements backend.Connector.
func (c *Connector) CreateRecord(ctx context.Context, layout string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	p := c.command(layout)
	fieldParams(&p, fields)
	addScripts(&p, opts)
	p.Add("-new", "")
	return c.write(ctx, "new", p)
}

// UpdateRecord implements backend.Connector.
func (c *Connector) UpdateRecord(ctx context.Context, layout, recordID string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	p := c.command(layout)
	p.Add("-recid", recordID)
	fieldParams(&p, fields)
	addScripts(&p, opts)
	p.Add("-edit", "")
	res, err := c.write(ctx, "edit", p)
	if err != nil {
		return nil, err
	}
	res.RecordID = recordID
	return res, nil
}

// DeleteRecord implements backend.Connector.
func (c *Connector) DeleteRecord(ctx context.Context, layout, recordID string, opts backend.CallOptions) (*backend.WriteResult, error) {
	p := c.command(layout)
	p.Add("-recid", recordID)
	addScripts(&p, opts)
	p.Add("-delete", "")
	res, err := c.write(ctx, "delete", p)
	if err != nil {
		return nil, err
	}
	res.RecordID = recordID
	res.Record = nil
	return res, nil
}

// RunScript implements backend.Connector. The script runs after a find-all
// on layout; the records it leaves in the found set are returned.
func (c *Connector) RunScript(ctx context.Context, layout string, call backend.ScriptCall) (*backend.FindResult, error) {
	p := c.command(layout)
	p.Add("-findall", "")
	addScripts(&p, backend.CallOptions{PostScript: &call})

	rs, err := c.do(ctx, "script", p)
	if err != nil {
		return nil, err
	}
	res := &backend.FindResult{TableCount: rs.Datasource.TotalCount, Info: record.NewFields()}
	switch rs.Error.Code {
	case codeOK:
		res.Records = rs.records(nil)
		res.Meta = rs.meta()
		res.FoundCount = rs.Records.Count
	case codeNoRecordsMatch:
	default:
		return nil, remapCode(rs.Error.Code, "script "+call.Name)
	}
	res.Info.Set(record.InfoScriptError, "0")
	return res, nil
}

// FetchContainer implements backend.Connector. ref is the container URL
// as returned in field data, absolute or relative to the server. Absolute
// references must point at the configured server, since the request
// carries the account's credentials.
func (c *Connector) FetchContainer(ctx context.Context, ref string) (*backend.Container, error) {
	defer metrics.StartTimer(backend.KindLegacy, "container").Stop()

	target, err := url.Parse(ref)
	if err != nil {
		return nil, backend.NewFailure(0, "invalid container reference", err)
	}
	u := c.base.ResolveReference(target)
	if !strings.EqualFold(u.Scheme, c.base.Scheme) || !strings.EqualFold(u.Host, c.base.Host) {
		return nil, backend.NewBadRequest(fmt.Errorf("container reference %s is not on %s", ref, c.base.Host))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backend.NewFailure(0, "build request", err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, backend.NewFailure(0, "container request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backend.NewNotFound(resp.StatusCode, "container not found")
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, backend.NewUnauthorized(resp.StatusCode, "container access denied")
	case resp.StatusCode != http.StatusOK:
		return nil, backend.NewFailure(resp.StatusCode, fmt.Sprintf("container: http status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.NewFailure(0, "read container", err)
	}
	return &backend.Container{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    containerFilename(u.Path),
	}, nil
}

func containerFilename(p string) string {
	base := path.Base(p)
	if base == "." || base == "/" || !strings.Contains(base, ".") {
		return ""
	}
	return base
}
