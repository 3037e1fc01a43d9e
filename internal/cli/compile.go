package cli

import (
	"errors"
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roach88/restgate/internal/querycmd"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/queryjson"
	"github.com/roach88/restgate/internal/queryparse"
	"github.com/roach88/restgate/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Table   string // table name for the SQL target
	Dialect string // sqlite | postgres
}

// CompilationResult holds a query in every compiled form.
type CompilationResult struct {
	Criteria *queryir.FindCriteria `json:"criteria"`
	Legacy   string                `json:"legacy"`
	DataAPI  gojson.RawMessage     `json:"dataapi"`
	SQL      SQLForm               `json:"sql"`
}

// SQLForm is the SQL target with its bound arguments.
type SQLForm struct {
	Dialect   string `json:"dialect"`
	Select    string `json:"select"`
	Count     string `json:"count"`
	Arguments []any  `json:"args"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Show how a query compiles for each backend",
		Long: `Parse a SQL-subset query and print the legacy command parameters, the
data API find body, and the parameterized SQL it compiles to.

Examples:
  restgate compile 'WHERE Status = "open" ORDER BY Due DESC LIMIT 10'
  restgate compile 'WHERE Name LIKE "Jo*" OMIT Archived = 1' --dialect postgres`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "records", "table name for the SQL target")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "sqlite", "SQL dialect (sqlite|postgres)")

	return cmd
}

func runCompile(opts *CompileOptions, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dialect, err := querysql.ParseDialect(sqlDriverFor(opts.Dialect))
	if err != nil {
		_ = formatter.Error(ErrCodeBadRequest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	result, err := compileAll(query, opts.Table, dialect)
	if err != nil {
		var details any
		var pe *queryparse.ParseError
		if errors.As(err, &pe) {
			details = map[string]int{"position": pe.Pos}
		}
		_ = formatter.Error(ErrCodeBadRequest, err.Error(), details)
		return WrapExitError(ExitCommandError, "compile failed", err)
	}
	formatter.VerboseLog("Compiled %d find group(s)", len(result.Criteria.Groups))

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputCompileText(formatter, result)
}

// sqlDriverFor maps a dialect flag onto a driver name ParseDialect knows.
func sqlDriverFor(dialect string) string {
	if strings.EqualFold(dialect, "postgres") {
		return "postgres"
	}
	if strings.EqualFold(dialect, "sqlite") {
		return "sqlite3"
	}
	return dialect
}

// compileAll parses query and compiles it for every target.
func compileAll(query, table string, dialect querysql.Dialect) (*CompilationResult, error) {
	crit, err := queryparse.Parse(query)
	if err != nil {
		return nil, err
	}

	cmdForm, err := querycmd.Compile(crit)
	if err != nil {
		return nil, fmt.Errorf("legacy target: %w", err)
	}

	jsonForm, err := queryjson.Compile(crit)
	if err != nil {
		return nil, fmt.Errorf("data api target: %w", err)
	}
	body, err := jsonForm.Marshal()
	if err != nil {
		return nil, fmt.Errorf("data api target: %w", err)
	}

	comp := querysql.NewCompiler(dialect, table, "")
	sel, err := comp.Select(crit)
	if err != nil {
		return nil, fmt.Errorf("sql target: %w", err)
	}
	count, err := comp.Count(crit)
	if err != nil {
		return nil, fmt.Errorf("sql target: %w", err)
	}

	args := sel.Args
	if args == nil {
		args = []any{}
	}
	return &CompilationResult{
		Criteria: crit,
		Legacy:   cmdForm.Params().Encode(),
		DataAPI:  body,
		SQL: SQLForm{
			Dialect:   dialect.String(),
			Select:    sel.SQL,
			Count:     count.SQL,
			Arguments: args,
		},
	}, nil
}

func outputCompileText(f *OutputFormatter, r *CompilationResult) error {
	w := f.Writer
	fmt.Fprintln(w, "legacy:")
	fmt.Fprintf(w, "  %s\n", r.Legacy)
	fmt.Fprintln(w, "dataapi:")
	fmt.Fprintf(w, "  %s\n", r.DataAPI)
	fmt.Fprintf(w, "sql (%s):\n", r.SQL.Dialect)
	fmt.Fprintf(w, "  %s\n", r.SQL.Select)
	fmt.Fprintf(w, "  %s\n", r.SQL.Count)
	for i, a := range r.SQL.Arguments {
		fmt.Fprintf(w, "  $%d = %v\n", i+1, a)
	}
	return nil
}
