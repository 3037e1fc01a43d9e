package sqldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/queryparse"
	"github.com/roach88/restgate/internal/record"
	"github.com/roach88/restgate/internal/testutil"
)

const tasksSchema = `CREATE TABLE tasks (
	Title TEXT NOT NULL,
	Status TEXT DEFAULT 'open',
	Priority INTEGER,
	Due DATE
)`

func newTestConnector(t *testing.T, scripts map[string]string, seed ...string) *Connector {
	t.Helper()
	db := testutil.OpenSQLite(t, append([]string{tasksSchema}, seed...)...)
	c, err := New("Tasks", Options{Driver: "sqlite3", DB: db, Scripts: scripts})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

var seedTasks = []string{
	`INSERT INTO tasks (Title, Status, Priority) VALUES ('a', 'open', 5)`,
	`INSERT INTO tasks (Title, Status, Priority) VALUES ('b', 'open', 2)`,
	`INSERT INTO tasks (Title, Status, Priority) VALUES ('c', 'done', 9)`,
	`INSERT INTO tasks (Title, Status, Priority) VALUES ('d', 'open', 4)`,
}

func TestNew_ConfigErrors(t *testing.T) {
	_, err := New("X", Options{Driver: "mysql", DSN: "x"})
	assert.True(t, backend.IsConfigError(err))

	_, err = New("X", Options{Driver: "sqlite3"})
	assert.True(t, backend.IsConfigError(err))
}

func TestFind_Criteria(t *testing.T) {
	c := newTestConnector(t, nil, seedTasks...)
	crit, err := queryparse.Parse(`WHERE Status = "open" AND Priority > "3" ORDER BY Priority DESC LIMIT 10 OFFSET 0`)
	require.NoError(t, err)

	res, err := c.Find(context.Background(), backend.FindRequest{Layout: "tasks", Criteria: crit, Limit: -1})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "1", res.Records[0].RecordID)
	assert.Equal(t, "4", res.Records[1].RecordID)
	title, _ := res.Records[1].Fields.Get("Title")
	assert.Equal(t, "d", title)
	assert.Equal(t, 2, res.FoundCount)
	assert.Equal(t, 4, res.TableCount)
}

func TestFind_OmitAndSelect(t *testing.T) {
	c := newTestConnector(t, nil, seedTasks...)
	crit, err := queryparse.Parse(`SELECT Title WHERE Priority > "1" OMIT Status = "done" ORDER BY Title`)
	require.NoError(t, err)

	res, err := c.Find(context.Background(), backend.FindRequest{Layout: "tasks", Criteria: crit, Limit: -1})
	require.NoError(t, err)
	var titles []string
	for _, r := range res.Records {
		assert.Equal(t, []string{"Title"}, r.Fields.Keys())
		v, _ := r.Fields.Get("Title")
		titles = append(titles, v)
	}
	assert.Equal(t, []string{"a", "b", "d"}, titles)
}

func TestFind_NativeWindow(t *testing.T) {
	c := newTestConnector(t, nil, seedTasks...)
	res, err := c.Find(context.Background(), backend.FindRequest{Layout: "tasks", Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "2", res.Records[0].RecordID)
	assert.Equal(t, 4, res.FoundCount)
}

func TestCount(t *testing.T) {
	c := newTestConnector(t, nil, seedTasks...)
	crit, err := queryparse.Parse(`WHERE Status = "open"`)
	require.NoError(t, err)
	n, err := c.Count(context.Background(), "tasks", crit)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWrites(t *testing.T) {
	c := newTestConnector(t, nil)
	ctx := context.Background()

	wr, err := c.CreateRecord(ctx, "tasks", record.CollapseRepetitions(record.FieldsOf("Title", "x", "Priority", "7")), backend.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1", wr.RecordID)

	_, err = c.UpdateRecord(ctx, "tasks", wr.RecordID, record.CollapseRepetitions(record.FieldsOf("Status", "done")), backend.CallOptions{})
	require.NoError(t, err)

	got, err := c.GetRecord(ctx, "tasks", wr.RecordID, backend.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Title": "x", "Status": "done", "Priority": "7", "Due": ""}, got.Records[0].Fields.Map())

	_, err = c.DeleteRecord(ctx, "tasks", wr.RecordID, backend.CallOptions{})
	require.NoError(t, err)

	_, err = c.GetRecord(ctx, "tasks", wr.RecordID, backend.CallOptions{})
	assert.True(t, backend.IsNotFound(err))
	_, err = c.DeleteRecord(ctx, "tasks", wr.RecordID, backend.CallOptions{})
	assert.True(t, backend.IsNotFound(err))
}

func TestWrites_Rejected(t *testing.T) {
	c := newTestConnector(t, nil, `CREATE UNIQUE INDEX tasks_title ON tasks (Title)`, seedTasks[0])
	ctx := context.Background()

	_, err := c.CreateRecord(ctx, "tasks", record.CollapseRepetitions(record.FieldsOf("Title", "a")), backend.CallOptions{})
	assert.True(t, backend.IsConflict(err), "got %v", err)

	_, err = c.CreateRecord(ctx, "tasks", record.CollapseRepetitions(record.FieldsOf("Title[1]", "a")), backend.CallOptions{})
	assert.True(t, backend.IsBadRequest(err))

	_, err = c.CreateRecord(ctx, "missing", record.CollapseRepetitions(record.FieldsOf("Title", "a")), backend.CallOptions{})
	assert.True(t, backend.IsNotFound(err), "got %v", err)
}

func TestHooksAndScripts(t *testing.T) {
	scripts := map[string]string{
		"close_done": `UPDATE tasks SET Status = 'closed' WHERE Status = 'done'`,
		"bump":       `UPDATE tasks SET Priority = Priority + 1 WHERE Title = ?`,
		"open_tasks": `SELECT Title FROM tasks WHERE Status = ? ORDER BY Title`,
	}
	c := newTestConnector(t, scripts, seedTasks...)
	ctx := context.Background()

	wr, err := c.UpdateRecord(ctx, "tasks", "2", record.CollapseRepetitions(record.FieldsOf("Status", "open")), backend.CallOptions{
		PreScript:  &backend.ScriptCall{Name: "close_done"},
		PostScript: &backend.ScriptCall{Name: "BUMP", Param: "b"},
	})
	require.NoError(t, err)
	pre, _ := wr.Info.Get("scriptResult.prerequest")
	post, _ := wr.Info.Get(record.InfoScriptResult)
	assert.Equal(t, "1", pre)
	assert.Equal(t, "1", post)

	got, err := c.GetRecord(ctx, "tasks", "2", backend.CallOptions{})
	require.NoError(t, err)
	priority, _ := got.Records[0].Fields.Get("Priority")
	assert.Equal(t, "3", priority)

	res, err := c.RunScript(ctx, "tasks", backend.ScriptCall{Name: "open_tasks", Param: "open"})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.Empty(t, res.Records[0].RecordID)
	n, _ := res.Info.Get(record.InfoScriptResult)
	assert.Equal(t, "3", n)

	_, err = c.RunScript(ctx, "tasks", backend.ScriptCall{Name: "nope"})
	assert.True(t, backend.IsNotFound(err))

	names, err := c.ListScripts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bump", "close_done", "open_tasks"}, names)
}

func TestSchema(t *testing.T) {
	c := newTestConnector(t, nil, `CREATE TABLE notes (id INTEGER PRIMARY KEY, Body TEXT, Created TIMESTAMP)`)
	ctx := context.Background()

	layouts, err := c.ListLayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "tasks"}, layouts)

	meta, err := c.DescribeFields(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, meta, 3)
	assert.Equal(t, record.FieldMeta{Name: "id", AutoEntered: true, MaxRepeat: 1, ResultType: record.ResultNumber, NativeType: "integer"}, meta[0])
	assert.Equal(t, record.ResultTimestamp, meta[2].ResultType)

	tasks, err := c.DescribeFields(ctx, "tasks")
	require.NoError(t, err)
	assert.True(t, tasks[1].AutoEntered)
	assert.Equal(t, record.ResultDate, tasks[3].ResultType)

	_, err = c.DescribeFields(ctx, "missing")
	assert.True(t, backend.IsNotFound(err))

	_, err = c.FetchContainer(ctx, "x")
	assert.True(t, backend.IsNotFound(err))
}
