package record

import (
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_PreservesInsertionOrder(t *testing.T) {
	f := NewFields()
	f.Set("Zeta", "1")
	f.Set("Alpha", "2")
	f.Set("Mid", "3")

	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, f.Keys())
}

func TestFields_SetExistingReplacesInPlace(t *testing.T) {
	f := FieldsOf("a", "1", "b", "2")
	f.Set("a", "changed")

	assert.Equal(t, []string{"a", "b"}, f.Keys())
	v, ok := f.Get("a")
	require.True(t, ok)
	assert.Equal(t, "changed", v)
}

func TestFields_Delete(t *testing.T) {
	f := FieldsOf("a", "1", "b", "2", "c", "3")
	f.Delete("b")
	f.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, f.Keys())
	assert.False(t, f.Has("b"))
}

func TestFields_NFCNormalizesNames(t *testing.T) {
	f := NewFields()
	// "é" as e + combining acute accent
	f.Set("Cafe\u0301", "decomposed")

	v, ok := f.Get("Caf\u00e9")
	require.True(t, ok)
	assert.Equal(t, "decomposed", v)
	assert.Equal(t, 1, f.Len())
}

func TestFields_NilIsEmpty(t *testing.T) {
	var f *Fields
	assert.Equal(t, 0, f.Len())
	assert.Nil(t, f.Keys())
	_, ok := f.Get("x")
	assert.False(t, ok)
}

func TestFields_Clone(t *testing.T) {
	f := FieldsOf("a", "1")
	c := f.Clone()
	c.Set("a", "2")

	v, _ := f.Get("a")
	assert.Equal(t, "1", v)
}

func TestFields_JSONKeepsOrder(t *testing.T) {
	f := FieldsOf("z", "1", "a", "<b>")

	data, err := gojson.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"1","a":"<b>"}`, string(data))
}

func TestFields_UnmarshalJSON(t *testing.T) {
	f := NewFields()
	err := f.UnmarshalJSON([]byte(`{"Name":"Ann","Age":42,"Active":true,"Note":null}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Age", "Active", "Note"}, f.Keys())
	assert.Equal(t, map[string]string{
		"Name":   "Ann",
		"Age":    "42",
		"Active": "true",
		"Note":   "",
	}, f.Map())
}

func TestFields_UnmarshalJSONRejectsNested(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"nested object", `{"a":{"b":"c"}}`},
		{"array value", `{"a":["b"]}`},
		{"not an object", `["a"]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFields()
			assert.Error(t, f.UnmarshalJSON([]byte(tc.input)))
		})
	}
}
