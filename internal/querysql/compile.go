// Package querysql compiles a FindCriteria into parameterized SQL.
//
// All values are bound as parameters, never interpolated. Identifiers are
// double-quoted. Every SELECT orders by the ID column last so that paging
// through a found set is deterministic even when the requested sort has
// ties.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/restgate/internal/queryir"
)

// Dialect selects placeholder style and a few syntax differences.
type Dialect int

const (
	SQLite   Dialect = iota // ? placeholders
	Postgres                // $n placeholders
)

// ParseDialect maps a database/sql driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported sql driver %q", driver)
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Statement is a SQL string with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Compiler builds statements against one table.
type Compiler struct {
	Dialect  Dialect
	Table    string
	IDColumn string
}

// NewCompiler creates a compiler. An empty idColumn defaults to rowid on
// SQLite and id elsewhere.
func NewCompiler(d Dialect, table, idColumn string) *Compiler {
	if idColumn == "" {
		idColumn = "id"
		if d == SQLite {
			idColumn = "rowid"
		}
	}
	return &Compiler{Dialect: d, Table: table, IDColumn: idColumn}
}

// builder accumulates SQL text and arguments, numbering placeholders for
// the dialect.
type builder struct {
	dialect Dialect
	sql     strings.Builder
	args    []any
}

func (b *builder) write(s string) {
	b.sql.WriteString(s)
}

func (b *builder) bind(v any) {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		b.sql.WriteString("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.sql.WriteByte('?')
}

func (b *builder) statement() Statement {
	return Statement{SQL: b.sql.String(), Args: b.args}
}

// QuoteIdent double-quotes an identifier. The SQLite rowid pseudo-column
// stays bare.
func QuoteIdent(name string) string {
	if strings.EqualFold(name, "rowid") {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Select compiles the criteria into a SELECT whose first column is the
// record ID.
func (c *Compiler) Select(crit *queryir.FindCriteria) (Statement, error) {
	if err := queryir.Validate(crit); err != nil {
		return Statement{}, fmt.Errorf("compile select: %w", err)
	}
	b := &builder{dialect: c.Dialect}

	b.write("SELECT " + QuoteIdent(c.IDColumn) + ", ")
	if crit.SelectsAll() {
		b.write("*")
	} else {
		cols := make([]string, len(crit.Select))
		for i, f := range crit.Select {
			cols[i] = QuoteIdent(f)
		}
		b.write(strings.Join(cols, ", "))
	}
	b.write(" FROM " + QuoteIdent(c.Table))

	if err := c.where(b, crit); err != nil {
		return Statement{}, err
	}

	b.write(" ORDER BY ")
	if crit != nil {
		for _, s := range crit.Sort {
			b.write(QuoteIdent(s.Field) + " " + string(s.Direction) + ", ")
		}
	}
	b.write(QuoteIdent(c.IDColumn) + " ASC")

	if crit != nil {
		c.window(b, crit)
	}
	return b.statement(), nil
}

// Count compiles a COUNT(*) over the same WHERE clause as Select, ignoring
// sort and window.
func (c *Compiler) Count(crit *queryir.FindCriteria) (Statement, error) {
	if err := queryir.Validate(crit); err != nil {
		return Statement{}, fmt.Errorf("compile count: %w", err)
	}
	b := &builder{dialect: c.Dialect}
	b.write("SELECT COUNT(*) FROM " + QuoteIdent(c.Table))
	if err := c.where(b, crit); err != nil {
		return Statement{}, err
	}
	return b.statement(), nil
}

// where renders WHERE ((g1) OR (g2)) AND NOT (omit).
func (c *Compiler) where(b *builder, crit *queryir.FindCriteria) error {
	if crit.IsFindAll() {
		return nil
	}
	b.write(" WHERE (")
	for i, g := range crit.FindGroups() {
		if i > 0 {
			b.write(" OR ")
		}
		if err := c.group(b, g); err != nil {
			return err
		}
	}
	b.write(")")
	if omit, ok := crit.OmitGroup(); ok {
		b.write(" AND NOT ")
		if err := c.group(b, omit); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) group(b *builder, g queryir.FindGroup) error {
	b.write("(")
	for i, cr := range g.Criteria {
		if i > 0 {
			b.write(" AND ")
		}
		if !cr.Op.Valid() {
			return fmt.Errorf("unsupported operator %q", cr.Op)
		}
		b.write(QuoteIdent(cr.Field) + " " + string(cr.Op) + " ")
		b.bind(cr.Value)
	}
	b.write(")")
	return nil
}

// window renders LIMIT/OFFSET. SQLite needs a LIMIT before OFFSET; -1
// means unbounded there.
func (c *Compiler) window(b *builder, crit *queryir.FindCriteria) {
	switch {
	case crit.HasLimit:
		b.write(" LIMIT ")
		b.bind(crit.Limit)
	case crit.HasOffset && c.Dialect == SQLite:
		b.write(" LIMIT -1")
	}
	if crit.HasOffset {
		b.write(" OFFSET ")
		b.bind(crit.Offset)
	}
}
