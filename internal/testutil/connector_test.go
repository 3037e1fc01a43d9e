package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/queryir"
	"github.com/roach88/restgate/internal/record"
)

func TestFakeConnector_FindExact(t *testing.T) {
	f := NewFakeConnector(backend.KindSQL)
	f.Seed("Email", "a@example.com")
	id := f.Seed("Email", "b@example.com")

	res, err := f.Find(context.Background(), backend.FindRequest{Criteria: queryir.Exact("Email", "b@example.com"), Limit: -1})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, id, res.Records[0].RecordID)
	assert.Equal(t, 2, res.TableCount)
}

func TestFakeConnector_FailNth(t *testing.T) {
	f := NewFakeConnector(backend.KindSQL)
	boom := errors.New("boom")
	f.FailNth(MethodCreate, 2, boom)

	ctx := context.Background()
	fields := record.CollapseRepetitions(record.FieldsOf("Name", "x"))
	_, err := f.CreateRecord(ctx, "t", fields, backend.CallOptions{})
	require.NoError(t, err)
	_, err = f.CreateRecord(ctx, "t", fields, backend.CallOptions{})
	assert.ErrorIs(t, err, boom)
	_, err = f.CreateRecord(ctx, "t", fields, backend.CallOptions{})
	require.NoError(t, err)

	calls := f.CallsTo(MethodCreate)
	require.Len(t, calls, 3)
	assert.Less(t, calls[0].Seq, calls[1].Seq)
}

func TestFakeConnector_UpdateAndDelete(t *testing.T) {
	f := NewFakeConnector(backend.KindSQL)
	id := f.Seed("Name", "a", "Note", "x")
	ctx := context.Background()

	_, err := f.UpdateRecord(ctx, "t", id, record.CollapseRepetitions(record.FieldsOf("Note", "y")), backend.CallOptions{})
	require.NoError(t, err)
	got, ok := f.Record(id)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"Name": "a", "Note": "y"}, got.Map())

	_, err = f.DeleteRecord(ctx, "t", id, backend.CallOptions{})
	require.NoError(t, err)
	_, err = f.GetRecord(ctx, "t", id, backend.CallOptions{})
	assert.True(t, backend.IsNotFound(err))
}
