package querysql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/queryparse"
)

func parse(t *testing.T, query string) *queryir.FindCriteria {
	t.Helper()
	c, err := queryparse.Parse(query)
	require.NoError(t, err)
	return c
}

func render(st Statement) []byte {
	var b strings.Builder
	b.WriteString(st.SQL)
	b.WriteString("\n-- args\n")
	for _, a := range st.Args {
		fmt.Fprintf(&b, "%T %v\n", a, a)
	}
	return []byte(b.String())
}

func TestCompile_Golden(t *testing.T) {
	sqlite := NewCompiler(SQLite, "tasks", "")
	pg := NewCompiler(Postgres, "people", "")

	testCases := []struct {
		name  string
		build func() (Statement, error)
	}{
		{"select_example_sqlite", func() (Statement, error) {
			return sqlite.Select(parse(t, `WHERE Status = "open" AND Priority > "3" ORDER BY Priority DESC LIMIT 10 OFFSET 0`))
		}},
		{"count_example_sqlite", func() (Statement, error) {
			return sqlite.Count(parse(t, `WHERE Status = "open" AND Priority > "3" ORDER BY Priority DESC LIMIT 10 OFFSET 0`))
		}},
		{"select_omit_postgres", func() (Statement, error) {
			return pg.Select(parse(t, `SELECT Name, Phone WHERE a = 1 OR b LIKE "x%" OMIT c < 5 OFFSET 3`))
		}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st, err := tc.build()
			require.NoError(t, err)
			g.Assert(t, tc.name, render(st))
		})
	}
}

func TestCompile_FindAll(t *testing.T) {
	c := NewCompiler(SQLite, "tasks", "id")

	st, err := c.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", * FROM "tasks" ORDER BY "id" ASC`, st.SQL)
	assert.Empty(t, st.Args)

	st, err = c.Count(nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "tasks"`, st.SQL)
}

func TestCompile_OffsetWithoutLimit(t *testing.T) {
	st, err := NewCompiler(SQLite, "t", "").Select(parse(t, "OFFSET 5"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT rowid, * FROM "t" ORDER BY rowid ASC LIMIT -1 OFFSET ?`, st.SQL)
	assert.Equal(t, []any{5}, st.Args)

	st, err = NewCompiler(Postgres, "t", "").Select(parse(t, "OFFSET 5"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", * FROM "t" ORDER BY "id" ASC OFFSET $1`, st.SQL)
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	dangerous := `'; DROP TABLE tasks; --`
	c := &queryir.FindCriteria{Groups: []queryir.FindGroup{
		{Criteria: []queryir.Criterion{{Field: "Status", Op: queryir.OpEquals, Value: dangerous}}},
	}}

	st, err := NewCompiler(SQLite, "tasks", "").Select(c)
	require.NoError(t, err)
	assert.NotContains(t, st.SQL, dangerous)
	assert.Contains(t, st.Args, dangerous)
}

func TestCompile_QuotesIdentifiers(t *testing.T) {
	c := &queryir.FindCriteria{Groups: []queryir.FindGroup{
		{Criteria: []queryir.Criterion{{Field: `we"ird`, Op: queryir.OpEquals, Value: "x"}}},
	}}
	st, err := NewCompiler(SQLite, "my table", "").Count(c)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "my table" WHERE (("we""ird" = ?))`, st.SQL)
}

func TestCompile_RejectsInvalidCriteria(t *testing.T) {
	c := &queryir.FindCriteria{Groups: []queryir.FindGroup{{}}}
	_, err := NewCompiler(SQLite, "t", "").Select(c)
	require.Error(t, err)
	var ve *queryir.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestParseDialect(t *testing.T) {
	for driver, want := range map[string]Dialect{
		"sqlite3":  SQLite,
		"postgres": Postgres,
		"pgx":      Postgres,
	} {
		got, err := ParseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got, driver)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestWriteStatements(t *testing.T) {
	pg := NewCompiler(Postgres, "people", "")

	st := pg.Insert([]Column{{"Name", "Ada"}, {"Phone", "555"}})
	assert.Equal(t, `INSERT INTO "people" ("Name", "Phone") VALUES ($1, $2) RETURNING "id"`, st.SQL)
	assert.Equal(t, []any{"Ada", "555"}, st.Args)

	st = pg.Insert(nil)
	assert.Equal(t, `INSERT INTO "people" DEFAULT VALUES RETURNING "id"`, st.SQL)

	st, err := pg.Update("7", []Column{{"Name", "Bea"}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "people" SET "Name" = $1 WHERE "id" = $2`, st.SQL)
	assert.Equal(t, []any{"Bea", "7"}, st.Args)

	_, err = pg.Update("7", nil)
	assert.Error(t, err)

	st = pg.Delete("7")
	assert.Equal(t, `DELETE FROM "people" WHERE "id" = $1`, st.SQL)

	st = NewCompiler(SQLite, "people", "").SelectByID("3", []string{"Name"})
	assert.Equal(t, `SELECT rowid, "Name" FROM "people" WHERE rowid = ?`, st.SQL)
	assert.Equal(t, []any{"3"}, st.Args)
}
