package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func runScenario(t *testing.T, content string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	result, err := Run(context.Background(), s, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	return result
}

func TestRun_GoldenScenarios(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_HooksAndFallback(t *testing.T) {
	result := runScenario(t, `
name: hooks
description: "pre and post scripts ride on the first and last item"
layout: tasks
scripts:
  mark: INSERT INTO log (Entry) VALUES (?)
setup:
  - CREATE TABLE tasks (Title TEXT UNIQUE, Status TEXT)
  - CREATE TABLE log (Entry TEXT)
steps:
  - op: create
    pre_script: { name: mark, param: before }
    post_script: { name: mark, param: after }
    records:
      - fields: { Title: a }
      - fields: { Title: b }
      - fields: { Title: c }
    expect:
      records: 3
      info:
        scriptResult.prerequest: "1"
        scriptResult: "1"
  - op: update
    update_else_create: true
    records:
      - id: Title=d
        fields: { Title: d, Status: new }
      - id: Title=a
        fields: { Status: seen }
    expect:
      records: 2
      failures: 0
assertions:
  - type: row_count
    table: log
    count: 2
  - type: final_state
    table: log
    where: { Entry: before }
    expect: { Entry: before }
  - type: final_state
    table: tasks
    where: { Title: d }
    expect: { Status: new }
  - type: final_state
    table: tasks
    where: { Title: a }
    expect: { Status: seen }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
}

func TestRun_AppendEchoAndSingle(t *testing.T) {
	result := runScenario(t, `
name: append
description: "append concatenates and echo returns the record"
layout: notes
request_id: req-7
setup:
  - CREATE TABLE notes (Body TEXT)
  - INSERT INTO notes (Body) VALUES ('one')
steps:
  - op: update
    single: true
    append: true
    echo: true
    records:
      - id: "1"
        fields: { Body: "+two" }
    expect:
      records: 1
      info: { requestID: req-7 }
  - op: read
    single: true
    records:
      - id: "9"
    expect:
      error: NOT_FOUND
assertions:
  - type: final_state
    table: notes
    where: { Body: one+two }
    expect: { Body: one+two }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	echoed := result.Trace[0].Message.Records[0]
	body, _ := echoed.Fields.Get("Body")
	assert.Equal(t, "one+two", body)
	assert.Equal(t, "NOT_FOUND", result.Trace[1].Error.Category)
	assert.Equal(t, 404, result.Trace[1].Error.Status)
}

func TestRun_ExpectationFailuresAreReported(t *testing.T) {
	result := runScenario(t, `
name: failing
description: "expect clauses that do not hold"
layout: tasks
setup:
  - CREATE TABLE tasks (Title TEXT UNIQUE)
  - INSERT INTO tasks (Title) VALUES ('a')
steps:
  - op: create
    records:
      - fields: { Title: a }
    expect:
      failures: 0
  - op: delete
    single: true
    records:
      - id: "1"
    expect:
      error: NOT_FOUND
  - op: layout
    query: WHERE Title = "
assertions:
  - type: row_count
    table: tasks
    count: 1
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "steps[0] (create): expected 0 failures, got 1")
	assert.Contains(t, result.Errors[1], "steps[1] (delete): expected NOT_FOUND error, step succeeded")
	assert.Contains(t, result.Errors[2], "steps[2] (layout): unexpected error")
	assert.Contains(t, result.Errors[3], "Assertion failed: row_count")

	require.NotNil(t, result.Trace[2].Error)
	assert.Equal(t, "BAD_REQUEST", result.Trace[2].Error.Category)
}

func TestRun_SetupFailure(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: broken
description: "bad setup SQL"
layout: tasks
setup: ["CREATE TABLE"]
steps: [{op: layout}]
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}
