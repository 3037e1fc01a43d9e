package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/querysql"
)

func TestCompileAll(t *testing.T) {
	result, err := compileAll(`WHERE Status = "open"`, "tasks", querysql.SQLite)
	require.NoError(t, err)

	require.Len(t, result.Criteria.Groups, 1)
	assert.Contains(t, result.Legacy, "Status")
	assert.Contains(t, string(result.DataAPI), `"Status"`)
	assert.Contains(t, result.SQL.Select, `FROM "tasks"`)
	assert.Contains(t, result.SQL.Select, `"Status" = ?`)
	assert.Equal(t, `SELECT COUNT(*) FROM "tasks" WHERE (("Status" = ?))`, result.SQL.Count)
	assert.Equal(t, []any{"open"}, result.SQL.Arguments)
}

func TestCompileAll_FindAll(t *testing.T) {
	result, err := compileAll("", "tasks", querysql.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "-findall", result.Legacy)
	assert.Equal(t, `SELECT COUNT(*) FROM "tasks"`, result.SQL.Count)
	assert.NotNil(t, result.SQL.Arguments)
}

func TestCompileCommand_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`WHERE Priority > 3`, "--dialect", "postgres", "--table", "jobs"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Data.SQL.Select, `FROM "jobs"`)
	assert.Contains(t, resp.Data.SQL.Select, "$1")
}

func TestCompileCommand_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`WHERE Status = "open"`})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "legacy:")
	assert.Contains(t, out, "dataapi:")
	assert.Contains(t, out, "sql (")
	assert.Contains(t, out, "$1 = open")
}

func TestCompileCommand_ParseError(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`WHERE Status =`})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBadRequest, resp.Error.Code)
}

func TestCompileCommand_BadDialect(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{`WHERE a = 1`, "--dialect", "mysql"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
