package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crit(field string) Criterion {
	return Criterion{Field: field, Op: OpEquals, Value: "x"}
}

func TestValidate_Accepts(t *testing.T) {
	testCases := []struct {
		name string
		c    *FindCriteria
	}{
		{"nil", nil},
		{"empty", &FindCriteria{}},
		{"single group", &FindCriteria{Groups: []FindGroup{{Criteria: []Criterion{crit("a")}}}}},
		{"trailing omit", &FindCriteria{Groups: []FindGroup{
			{Criteria: []Criterion{crit("a")}},
			{Criteria: []Criterion{crit("b")}},
			{Omit: true, Criteria: []Criterion{crit("c")}},
		}}},
		{"sort", &FindCriteria{Sort: []SortRule{{Field: "a", Direction: Ascending}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, Validate(tc.c))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		c    *FindCriteria
		msg  string
	}{
		{"omit not last", &FindCriteria{Groups: []FindGroup{
			{Criteria: []Criterion{crit("a")}},
			{Omit: true, Criteria: []Criterion{crit("b")}},
			{Criteria: []Criterion{crit("c")}},
		}}, "omit group must be last"},
		{"two omits", &FindCriteria{Groups: []FindGroup{
			{Criteria: []Criterion{crit("a")}},
			{Omit: true, Criteria: []Criterion{crit("b")}},
			{Omit: true, Criteria: []Criterion{crit("c")}},
		}}, "omit"},
		{"lone omit", &FindCriteria{Groups: []FindGroup{
			{Omit: true, Criteria: []Criterion{crit("a")}},
		}}, "preceding find group"},
		{"empty group", &FindCriteria{Groups: []FindGroup{{}}}, "empty find group"},
		{"bad operator", &FindCriteria{Groups: []FindGroup{
			{Criteria: []Criterion{{Field: "a", Op: "!=", Value: "x"}}},
		}}, "unknown operator"},
		{"missing field", &FindCriteria{Groups: []FindGroup{
			{Criteria: []Criterion{{Op: OpEquals, Value: "x"}}},
		}}, "without field"},
		{"bad direction", &FindCriteria{Sort: []SortRule{{Field: "a", Direction: "UP"}}}, "sort direction"},
		{"negative limit", &FindCriteria{Limit: -1, HasLimit: true}, "negative limit"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.c)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
