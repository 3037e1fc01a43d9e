// Package sqldb implements the connector for plain SQL databases.
//
// A database name maps to one configured DSN; layouts are tables. Finds
// compile through querysql, so the window always travels inside the
// statement. Scripts are named statements from configuration: a statement
// that reads rows returns them as records, anything else reports the number
// of rows affected as the script result.
//
// SQL tables have no repeating fields and no containers.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/logger"
	"github.com/roach88/restgate/internal/metrics"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/querysql"
	"github.com/roach88/restgate/internal/record"
)

// Options configure a Connector.
type Options struct {
	// Driver is the database/sql driver name: sqlite3, postgres, or pgx.
	Driver string
	DSN    string

	// IDColumn names the record ID column. Empty means rowid on SQLite and
	// id elsewhere.
	IDColumn string

	// Scripts maps script names to statements. Names are matched
	// case-insensitively.
	Scripts map[string]string

	// Databases lists every SQL database name served, for ListDatabases.
	Databases []string

	// DB replaces opening Driver/DSN. The connector does not close it.
	DB *sql.DB

	Logger *zap.SugaredLogger
}

// Connector runs statements against one SQL database on behalf of one
// request.
type Connector struct {
	db       *sql.DB
	ownsDB   bool
	dialect  querysql.Dialect
	database string
	opts     Options
	log      *zap.SugaredLogger
}

var _ backend.Connector = (*Connector)(nil)

// New opens a connector for database.
func New(database string, opts Options) (*Connector, error) {
	dialect, err := querysql.ParseDialect(opts.Driver)
	if err != nil {
		return nil, backend.NewConfigError(fmt.Sprintf("database %s", database), err)
	}
	c := &Connector{
		db:       opts.DB,
		dialect:  dialect,
		database: database,
		opts:     opts,
		log:      logger.OrNop(opts.Logger),
	}
	if c.db == nil {
		if opts.DSN == "" {
			return nil, backend.NewConfigError(fmt.Sprintf("database %s: no dsn configured", database), nil)
		}
		db, err := sql.Open(opts.Driver, opts.DSN)
		if err != nil {
			return nil, backend.NewConfigError(fmt.Sprintf("database %s: open", database), err)
		}
		if dialect == querysql.SQLite {
			// One writer at a time avoids SQLITE_BUSY.
			db.SetMaxOpenConns(1)
		}
		c.db = db
		c.ownsDB = true
	}
	return c, nil
}

// Kind implements backend.Connector.
func (c *Connector) Kind() string { return backend.KindSQL }

// Database implements backend.Connector.
func (c *Connector) Database() string { return c.database }

// Close implements backend.Connector.
func (c *Connector) Close(context.Context) error {
	if !c.ownsDB || c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	return db.Close()
}

func (c *Connector) compiler(table string) *querysql.Compiler {
	return querysql.NewCompiler(c.dialect, table, c.opts.IDColumn)
}

// ListDatabases implements backend.Connector.
func (c *Connector) ListDatabases(context.Context) ([]string, error) {
	if len(c.opts.Databases) == 0 {
		return []string{c.database}, nil
	}
	out := append([]string(nil), c.opts.Databases...)
	sort.Strings(out)
	return out, nil
}

// ListScripts implements backend.Connector.
func (c *Connector) ListScripts(context.Context) ([]string, error) {
	out := make([]string, 0, len(c.opts.Scripts))
	for name := range c.opts.Scripts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Find implements backend.Connector. The native range is folded into the
// criteria when they carry no LIMIT or OFFSET of their own.
func (c *Connector) Find(ctx context.Context, req backend.FindRequest) (*backend.FindResult, error) {
	defer metrics.StartTimer(backend.KindSQL, "find").Stop()

	crit := windowed(req)
	info := record.NewFields()
	if err := c.hook(ctx, req.Options.PreScript, record.InfoScriptResult+".prerequest", record.InfoScriptError+".prerequest", info); err != nil {
		return nil, err
	}

	comp := c.compiler(req.Layout)
	sel, err := comp.Select(crit)
	if err != nil {
		return nil, backend.NewBadRequest(err)
	}
	records, err := c.query(ctx, sel, true)
	if err != nil {
		return nil, remapError("find "+req.Layout, err)
	}

	found, err := c.count(ctx, comp, crit)
	if err != nil {
		return nil, err
	}
	total, err := c.count(ctx, comp, nil)
	if err != nil {
		return nil, err
	}

	if err := c.hook(ctx, req.Options.PostScript, record.InfoScriptResult, record.InfoScriptError, info); err != nil {
		return nil, err
	}
	c.log.Debugw("sql find", "table", req.Layout, "found", found, "returned", len(records))
	return &backend.FindResult{Records: records, FoundCount: found, TableCount: total, Info: info}, nil
}

// windowed returns a copy of the request criteria with the native range
// applied.
func windowed(req backend.FindRequest) *queryir.FindCriteria {
	crit := &queryir.FindCriteria{}
	if req.Criteria != nil {
		cp := *req.Criteria
		crit = &cp
	}
	if crit.HasLimit || crit.HasOffset {
		return crit
	}
	if req.Skip > 0 {
		crit.SetOffset(req.Skip)
	}
	if req.Limit >= 0 {
		crit.SetLimit(req.Limit)
	}
	return crit
}

// Count implements backend.Connector.
func (c *Connector) Count(ctx context.Context, layout string, criteria *queryir.FindCriteria) (int, error) {
	return c.count(ctx, c.compiler(layout), criteria)
}

func (c *Connector) count(ctx context.Context, comp *querysql.Compiler, crit *queryir.FindCriteria) (int, error) {
	stmt, err := comp.Count(crit)
	if err != nil {
		return 0, backend.NewBadRequest(err)
	}
	var n int
	if err := c.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, remapError("count "+comp.Table, err)
	}
	return n, nil
}

// GetRecord implements backend.Connector.
func (c *Connector) GetRecord(ctx context.Context, layout, recordID string, opts backend.CallOptions) (*backend.FindResult, error) {
	defer metrics.StartTimer(backend.KindSQL, "get").Stop()

	info := record.NewFields()
	if err := c.hook(ctx, opts.PreScript, record.InfoScriptResult+".prerequest", record.InfoScriptError+".prerequest", info); err != nil {
		return nil, err
	}
	records, err := c.query(ctx, c.compiler(layout).SelectByID(recordID, nil), true)
	if err != nil {
		return nil, remapError("get "+layout, err)
	}
	if len(records) == 0 {
		return nil, backend.NewNotFound(codeRecordMissing, fmt.Sprintf("record %s not found", recordID))
	}
	if err := c.hook(ctx, opts.PostScript, record.InfoScriptResult, record.InfoScriptError, info); err != nil {
		return nil, err
	}
	return &backend.FindResult{Records: records, FoundCount: 1, TableCount: -1, Info: info}, nil
}

// columns flattens collapsed fields into column assignments. A repetition
// other than the first has no column to land in.
func columns(fields []record.RepeatedField) ([]querysql.Column, error) {
	out := make([]querysql.Column, 0, len(fields))
	for _, rf := range fields {
		value := ""
		for _, rep := range rf.Reps {
			if rep.Index != 0 {
				return nil, backend.NewBadRequest(fmt.Errorf("field %s: sql columns do not repeat", rf.Name))
			}
			value = rep.Value
		}
		out = append(out, querysql.Column{Name: rf.Name, Value: value})
	}
	return out, nil
}

// CreateRecord implements backend.Connector.
func (c *Connector) CreateRecord(ctx context.Context, layout string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	defer metrics.StartTimer(backend.KindSQL, "create").Stop()

	cols, err := columns(fields)
	if err != nil {
		return nil, err
	}
	info := record.NewFields()
	if err := c.hook(ctx, opts.PreScript, record.InfoScriptResult+".prerequest", record.InfoScriptError+".prerequest", info); err != nil {
		return nil, err
	}
	stmt := c.compiler(layout).Insert(cols)
	var id any
	if err := c.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&id); err != nil {
		return nil, remapError("create "+layout, err)
	}
	if err := c.hook(ctx, opts.PostScript, record.InfoScriptResult, record.InfoScriptError, info); err != nil {
		return nil, err
	}
	return &backend.WriteResult{RecordID: scalar(id), Info: info}, nil
}

// UpdateRecord implements backend.Connector.
func (c *Connector) UpdateRecord(ctx context.Context, layout, recordID string, fields []record.RepeatedField, opts backend.CallOptions) (*backend.WriteResult, error) {
	defer metrics.StartTimer(backend.KindSQL, "update").Stop()

	cols, err := columns(fields)
	if err != nil {
		return nil, err
	}
	stmt, err := c.compiler(layout).Update(recordID, cols)
	if err != nil {
		return nil, backend.NewBadRequest(err)
	}
	return c.exec(ctx, "update "+layout, recordID, stmt, opts)
}

// DeleteRecord implements backend.Connector.
func (c *Connector) DeleteRecord(ctx context.Context, layout, recordID string, opts backend.CallOptions) (*backend.WriteResult, error) {
	defer metrics.StartTimer(backend.KindSQL, "delete").Stop()
	return c.exec(ctx, "delete "+layout, recordID, c.compiler(layout).Delete(recordID), opts)
}

// exec runs a single-row write between the hooks. Zero affected rows is a
// missing record.
func (c *Connector) exec(ctx context.Context, action, recordID string, stmt querysql.Statement, opts backend.CallOptions) (*backend.WriteResult, error) {
	info := record.NewFields()
	if err := c.hook(ctx, opts.PreScript, record.InfoScriptResult+".prerequest", record.InfoScriptError+".prerequest", info); err != nil {
		return nil, err
	}
	res, err := c.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, remapError(action, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, remapError(action, err)
	}
	if n == 0 {
		return nil, backend.NewNotFound(codeRecordMissing, fmt.Sprintf("%s: record %s not found", action, recordID))
	}
	if err := c.hook(ctx, opts.PostScript, record.InfoScriptResult, record.InfoScriptError, info); err != nil {
		return nil, err
	}
	return &backend.WriteResult{RecordID: recordID, Info: info}, nil
}

// RunScript implements backend.Connector. layout is ignored: statements
// name their own tables.
func (c *Connector) RunScript(ctx context.Context, layout string, call backend.ScriptCall) (*backend.FindResult, error) {
	defer metrics.StartTimer(backend.KindSQL, "script").Stop()

	res := &backend.FindResult{TableCount: -1, Info: record.NewFields()}
	stmt, err := c.script(call.Name)
	if err != nil {
		return nil, err
	}
	args := scriptArgs(stmt, call.Param)

	if returnsRows(stmt) {
		records, err := c.query(ctx, querysql.Statement{SQL: stmt, Args: args}, false)
		if err != nil {
			return nil, remapError("script "+call.Name, err)
		}
		res.Records = records
		res.FoundCount = len(records)
		res.Info.Set(record.InfoScriptResult, strconv.Itoa(len(records)))
		res.Info.Set(record.InfoScriptError, "0")
		return res, nil
	}

	result, err := c.runStatement(ctx, call.Name, stmt, args)
	if err != nil {
		return nil, err
	}
	res.Info.Set(record.InfoScriptResult, result)
	res.Info.Set(record.InfoScriptError, "0")
	return res, nil
}

// FetchContainer implements backend.Connector.
func (c *Connector) FetchContainer(context.Context, string) (*backend.Container, error) {
	return nil, backend.NewNotFound(0, "sql databases have no container fields")
}

func (c *Connector) script(name string) (string, error) {
	for k, stmt := range c.opts.Scripts {
		if strings.EqualFold(k, name) {
			return stmt, nil
		}
	}
	return "", backend.NewNotFound(codeScriptMissing, fmt.Sprintf("script %s not found", name))
}

// hook runs a pre or post script and stores its outcome under the given
// info keys. A nil call is a no-op.
func (c *Connector) hook(ctx context.Context, call *backend.ScriptCall, resultKey, errorKey string, info *record.Fields) error {
	if call == nil {
		return nil
	}
	stmt, err := c.script(call.Name)
	if err != nil {
		return err
	}
	result, err := c.runStatement(ctx, call.Name, stmt, scriptArgs(stmt, call.Param))
	if err != nil {
		return err
	}
	info.Set(resultKey, result)
	info.Set(errorKey, "0")
	return nil
}

func (c *Connector) runStatement(ctx context.Context, name, stmt string, args []any) (string, error) {
	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return "", remapError("script "+name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", remapError("script "+name, err)
	}
	c.log.Debugw("sql script", "script", name, "rows", n)
	return strconv.FormatInt(n, 10), nil
}

// scriptArgs binds the script parameter when the statement has a
// placeholder for it.
func scriptArgs(stmt, param string) []any {
	if strings.Contains(stmt, "?") || strings.Contains(stmt, "$1") {
		return []any{param}
	}
	return nil
}

func returnsRows(stmt string) bool {
	head := strings.ToUpper(strings.TrimSpace(stmt))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}

// query runs stmt and scans every row into a record. With withID set the
// first column is the record ID.
func (c *Connector) query(ctx context.Context, stmt querysql.Statement, withID bool) ([]record.Record, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := record.Record{Fields: record.NewFields()}
		first := 0
		if withID {
			r.RecordID = scalar(values[0])
			first = 1
		}
		for i := first; i < len(cols); i++ {
			r.Fields.Set(cols[i], scalar(values[i]))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	c.log.Debugw("sql query", "rows", len(out), "elapsed", time.Since(start))
	return out, nil
}

// scalar renders a scanned value as a field string.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
