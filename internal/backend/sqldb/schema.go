package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/querysql"
	"github.com/roach88/restgate/internal/record"
)

const (
	sqliteTables = `SELECT name FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`

	postgresTables = `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema()
ORDER BY table_name`

	sqliteColumns = `SELECT name, type, dflt_value IS NOT NULL, pk FROM pragma_table_info(?) ORDER BY cid`

	postgresColumns = `SELECT column_name, data_type, column_default IS NOT NULL,
  CASE WHEN is_identity = 'YES' THEN 1 ELSE 0 END
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`
)

// ListLayouts implements backend.Connector. Tables and views are layouts.
func (c *Connector) ListLayouts(ctx context.Context) ([]string, error) {
	q := sqliteTables
	if c.dialect == querysql.Postgres {
		q = postgresTables
	}
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, remapError("list tables", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, remapError("list tables", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, remapError("list tables", err)
	}
	return out, nil
}

// DescribeFields implements backend.Connector. Columns never repeat and are
// never containers. A default value or a generated key counts as
// auto-entered.
func (c *Connector) DescribeFields(ctx context.Context, layout string) ([]record.FieldMeta, error) {
	q := sqliteColumns
	if c.dialect == querysql.Postgres {
		q = postgresColumns
	}
	rows, err := c.db.QueryContext(ctx, q, layout)
	if err != nil {
		return nil, remapError("describe "+layout, err)
	}
	defer rows.Close()

	var out []record.FieldMeta
	for rows.Next() {
		var (
			name, declared string
			hasDefault     bool
			key            int
		)
		var typ sql.NullString
		if err := rows.Scan(&name, &typ, &hasDefault, &key); err != nil {
			return nil, remapError("describe "+layout, err)
		}
		declared = typ.String
		autoEntered := hasDefault || (key > 0 && c.dialect == querysql.SQLite && strings.EqualFold(declared, "INTEGER"))
		if c.dialect == querysql.Postgres && key > 0 {
			autoEntered = true
		}
		out = append(out, record.FieldMeta{
			Name:        name,
			AutoEntered: autoEntered,
			MaxRepeat:   1,
			ResultType:  resultType(declared),
			NativeType:  strings.ToLower(declared),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, remapError("describe "+layout, err)
	}
	if len(out) == 0 {
		return nil, backend.NewNotFound(codeTableMissing, fmt.Sprintf("table %s not found", layout))
	}
	return out, nil
}

// resultType maps a declared column type onto a result type, following
// SQLite's affinity rules loosely so both dialects read the same.
func resultType(declared string) string {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "TIMESTAMP"), strings.Contains(t, "DATETIME"):
		return record.ResultTimestamp
	case strings.Contains(t, "DATE"):
		return record.ResultDate
	case strings.Contains(t, "TIME"):
		return record.ResultTime
	case strings.Contains(t, "INT"), strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"),
		strings.Contains(t, "DOUB"), strings.Contains(t, "NUM"), strings.Contains(t, "DEC"):
		return record.ResultNumber
	}
	return record.ResultText
}
