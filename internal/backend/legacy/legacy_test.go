package legacy

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/queryparse"
	"github.com/roach88/restgate/internal/record"
)

const testURL = "http://fms.example.com"

func errorDoc(code string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<fmresultset xmlns="http://www.filemaker.com/xml/fmresultset" version="1.0">
  <error code="` + code + `"/>
  <datasource database="Tasks" layout="tasks" table="tasks" total-count="12"/>
  <metadata/>
  <resultset count="0" fetch-size="0"/>
</fmresultset>`
}

func singleRecordDoc(id, status string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<fmresultset xmlns="http://www.filemaker.com/xml/fmresultset" version="1.0">
  <error code="0"/>
  <datasource database="Tasks" layout="tasks" table="tasks" total-count="13"/>
  <metadata>
    <field-definition auto-enter="no" global="no" max-repeat="1" name="Status" result="text" type="normal"/>
  </metadata>
  <resultset count="1" fetch-size="1">
    <record mod-id="0" record-id="` + id + `">
      <field name="Status"><data>` + status + `</data></field>
    </record>
  </resultset>
</fmresultset>`
}

func newTestConnector(t *testing.T) *Connector {
	t.Helper()
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})

	c, err := New("Tasks", backend.Credentials{Username: "admin", Password: "secret"}, Options{
		URL:        testURL,
		HTTPClient: client,
	})
	require.NoError(t, err)
	return c
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New("Tasks", backend.Credentials{}, Options{})
	require.Error(t, err)
	assert.True(t, backend.IsConfigError(err))
}

func TestFind_CompoundQuery(t *testing.T) {
	c := newTestConnector(t)

	gock.New(testURL).
		Get(ResultSetPath).
		MatchHeader("Authorization", "^Basic ").
		MatchParam("-db", "^Tasks$").
		MatchParam("-lay", "^tasks$").
		MatchParam("-q1", "^Status$").
		MatchParam("-q1.value", "^==open$").
		MatchParam("-q2", "^Priority$").
		MatchParam("-q2.value", "^>3$").
		MatchParam("-query", `^\(q1,q2\)$`).
		MatchParam("-sortfield.1", "^Priority$").
		MatchParam("-sortorder.1", "^descend$").
		MatchParam("-skip", "^0$").
		MatchParam("-max", "^10$").
		Reply(200).
		BodyString(fixture(t, "find_tasks.xml"))

	crit, err := queryparse.Parse(`WHERE Status = "open" AND Priority > "3" ORDER BY Priority DESC LIMIT 10 OFFSET 0`)
	require.NoError(t, err)

	res, err := c.Find(context.Background(), backend.FindRequest{Layout: "tasks", Criteria: crit, Limit: -1})
	require.NoError(t, err)
	assert.True(t, gock.IsDone())

	assert.Equal(t, 2, res.FoundCount)
	assert.Equal(t, 12, res.TableCount)
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, "7", first.RecordID)
	assert.Equal(t, []string{"Status", "Priority", "Phone[0]", "Phone[1]", "Created", "Photo"}, first.Fields.Keys())
	phone, _ := first.Fields.Get("Phone[1]")
	assert.Equal(t, "555-2", phone)

	require.Len(t, res.Meta, 5)
	assert.Equal(t, record.FieldMeta{Name: "Phone", MaxRepeat: 2, ResultType: record.ResultText, NativeType: "normal"}, res.Meta[2])
	assert.True(t, res.Meta[3].AutoEntered)
	assert.Equal(t, record.ResultContainer, res.Meta[4].ResultType)
}

func TestFind_NativeRangeAndSelection(t *testing.T) {
	c := newTestConnector(t)

	gock.New(testURL).
		Get(ResultSetPath).
		MatchParam("-findall", "").
		MatchParam("-skip", "^20$").
		MatchParam("-max", "^5$").
		Reply(200).
		BodyString(fixture(t, "find_tasks.xml"))

	crit, err := queryparse.Parse(`SELECT Status, Phone`)
	require.NoError(t, err)

	res, err := c.Find(context.Background(), backend.FindRequest{Layout: "tasks", Criteria: crit, Skip: 20, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"Status", "Phone[0]", "Phone[1]"}, res.Records[0].Fields.Keys())
}

func TestFind_NoRecordsMatchIsEmpty(t *testing.T) {
	c := newTestConnector(t)
	gock.New(testURL).Get(ResultSetPath).Reply(200).BodyString(errorDoc("401"))

	res, err := c.Find(context.Background(), backend.FindRequest{Layout: "tasks", Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.FoundCount)
	assert.Equal(t, 12, res.TableCount)
}

func TestFind_HookScripts(t *testing.T) {
	c := newTestConnector(t)
	gock.New(testURL).
		Get(ResultSetPath).
		MatchParam("-script.prefind", "^Before$").
		MatchParam("-script.prefind.param", "^p1$").
		MatchParam("-script", "^After$").
		Reply(200).
		BodyString(fixture(t, "find_tasks.xml"))

	_, err := c.Find(context.Background(), backend.FindRequest{
		Layout: "tasks",
		Limit:  -1,
		Options: backend.CallOptions{
			PreScript:  &backend.ScriptCall{Name: "Before", Param: "p1"},
			PostScript: &backend.ScriptCall{Name: "After"},
		},
	})
	require.NoError(t, err)
	assert.True(t, gock.IsDone())
}

func TestErrorRemap(t *testing.T) {
	testCases := []struct {
		code     string
		category backend.Category
	}{
		{"101", backend.CategoryNotFound},
		{"105", backend.CategoryNotFound},
		{"212", backend.CategoryUnauthorized},
		{"504", backend.CategoryConflict},
		{"301", backend.CategoryConflict},
		{"500", backend.CategoryFailure},
	}
	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			c := newTestConnector(t)
			gock.New(testURL).Get(ResultSetPath).Reply(200).BodyString(errorDoc(tc.code))

			_, err := c.GetRecord(context.Background(), "tasks", "7", backend.CallOptions{})
			require.Error(t, err)
			assert.Equal(t, tc.category, backend.CategoryOf(err))
			assert.Equal(t, tc.code, strconv.Itoa(backend.AsError(err).Code))
		})
	}
}

func TestHTTPUnauthorized(t *testing.T) {
	c := newTestConnector(t)
	gock.New(testURL).Get(ResultSetPath).Reply(401)

	_, err := c.ListLayouts(context.Background())
	assert.True(t, backend.IsUnauthorized(err))
}

func TestCreateUpdateDelete(t *testing.T) {
	c := newTestConnector(t)
	ctx := context.Background()

	gock.New(testURL).
		Get(ResultSetPath).
		MatchParam("-new", "").
		MatchParam("Status", "^open$").
		MatchParam("Phone(2)", "^555$").
		Reply(200).
		BodyString(singleRecordDoc("13", "open"))

	fields := record.CollapseRepetitions(record.FieldsOf("Status", "open", "Phone[1]", "555"))
	created, err := c.CreateRecord(ctx, "tasks", fields, backend.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "13", created.RecordID)
	require.NotNil(t, created.Record)

	gock.New(testURL).
		Get(ResultSetPath).
		MatchParam("-edit", "").
		MatchParam("-recid", "^13$").
		MatchParam("Status", "^done$").
		Reply(200).
		BodyString(singleRecordDoc("13", "done"))

	updated, err := c.UpdateRecord(ctx, "tasks", "13",
		record.CollapseRepetitions(record.FieldsOf("Status", "done")), backend.CallOptions{})
	require.NoError(t, err)
	status, _ := updated.Record.Fields.Get("Status")
	assert.Equal(t, "done", status)

	gock.New(testURL).
		Get(ResultSetPath).
		MatchParam("-delete", "").
		MatchParam("-recid", "^13$").
		Reply(200).
		BodyString(errorDoc("0"))

	deleted, err := c.DeleteRecord(ctx, "tasks", "13", backend.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "13", deleted.RecordID)
	assert.True(t, gock.IsDone())
}

func TestListings(t *testing.T) {
	c := newTestConnector(t)
	listing := func(column string, names ...string) string {
		doc := `<fmresultset xmlns="http://www.filemaker.com/xml/fmresultset" version="1.0"><error code="0"/><resultset count="0" fetch-size="0">`
		for _, n := range names {
			doc += `<record record-id=""><field name="` + column + `"><data>` + n + `</data></field></record>`
		}
		return doc + `</resultset></fmresultset>`
	}

	gock.New(testURL).Get(ResultSetPath).MatchParam("-dbnames", "").Reply(200).BodyString(listing(columnDatabase, "Tasks", "Contacts"))
	gock.New(testURL).Get(ResultSetPath).MatchParam("-scriptnames", "").Reply(200).BodyString(listing(columnScript, "Archive"))

	dbs, err := c.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Tasks", "Contacts"}, dbs)

	scripts, err := c.ListScripts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Archive"}, scripts)
}

func TestFetchContainer(t *testing.T) {
	c := newTestConnector(t)
	gock.New(testURL).
		Get("/fmi/xml/cnt/photo.jpg").
		MatchParam("-recid", "^7$").
		Reply(200).
		SetHeader("Content-Type", "image/jpeg").
		BodyString("JPEGDATA")

	ct, err := c.FetchContainer(context.Background(), "/fmi/xml/cnt/photo.jpg?-db=Tasks&-lay=tasks&-recid=7&-field=Photo(1)")
	require.NoError(t, err)
	assert.Equal(t, []byte("JPEGDATA"), ct.Data)
	assert.Equal(t, "image/jpeg", ct.ContentType)
	assert.Equal(t, "photo.jpg", ct.Filename)
}

func TestFetchContainer_AbsoluteReferenceOnServer(t *testing.T) {
	c := newTestConnector(t)
	gock.New(testURL).
		Get("/fmi/xml/cnt/doc.pdf").
		MatchHeader("Authorization", "^Basic ").
		Reply(200).
		BodyString("PDF")

	ct, err := c.FetchContainer(context.Background(), testURL+"/fmi/xml/cnt/doc.pdf?-recid=7")
	require.NoError(t, err)
	assert.Equal(t, []byte("PDF"), ct.Data)
	assert.True(t, gock.IsDone())
}

func TestFetchContainer_RejectsOtherHosts(t *testing.T) {
	testCases := []struct {
		name string
		ref  string
	}{
		{"other host", "http://evil.example.net/fmi/xml/cnt/photo.jpg"},
		{"other port", "http://fms.example.com:8080/fmi/xml/cnt/photo.jpg"},
		{"other scheme", "https://fms.example.com/fmi/xml/cnt/photo.jpg"},
		{"protocol relative", "//evil.example.net/photo.jpg"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestConnector(t)
			gock.New("http://evil.example.net").Get("/").Reply(200).BodyString("stolen")

			_, err := c.FetchContainer(context.Background(), tc.ref)
			require.Error(t, err)
			assert.True(t, backend.IsBadRequest(err))
			assert.True(t, gock.IsPending())
		})
	}
}
