package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCriteria_String(t *testing.T) {
	c := &FindCriteria{
		Select: []string{"Name", "First Name"},
		Groups: []FindGroup{
			{Criteria: []Criterion{
				{Field: "Status", Op: OpEquals, Value: "open"},
				{Field: "Priority", Op: OpGreater, Value: "3"},
			}},
			{Criteria: []Criterion{{Field: "Owner", Op: OpLike, Value: "An*"}}},
			{Omit: true, Criteria: []Criterion{{Field: "Archived", Op: OpEquals, Value: "1"}}},
		},
		Sort: []SortRule{{Field: "Priority", Direction: Descending}},
	}
	c.SetLimit(10)
	c.SetOffset(0)

	assert.Equal(t,
		"SELECT Name, `First Name` WHERE Status = \"open\" AND Priority > \"3\" OR Owner LIKE \"An*\" "+
			"OMIT Archived = \"1\" ORDER BY Priority DESC LIMIT 10 OFFSET 0",
		c.String())
}

func TestFindCriteria_StringEmpty(t *testing.T) {
	assert.Equal(t, "", (&FindCriteria{}).String())
	var c *FindCriteria
	assert.Equal(t, "", c.String())
}

func TestQuoteField(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"Name", "Name"},
		{"Phone[2]", "Phone[2]"},
		{"Table::Field", "Table::Field"},
		{"First Name", "`First Name`"},
		{"order", "`order`"},
		{"9lives", "`9lives`"},
		{"we`ird", "`we``ird`"},
		{"Phone[x]", "`Phone[x]`"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, QuoteField(tc.in))
		})
	}
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteValue("plain"))
	assert.Equal(t, `"say \"hi\""`, QuoteValue(`say "hi"`))
	assert.Equal(t, `"back\\slash"`, QuoteValue(`back\slash`))
}

func TestFindCriteria_Helpers(t *testing.T) {
	c := Exact("Email", "a@b.com")
	assert.False(t, c.IsFindAll())
	assert.True(t, c.SelectsAll())
	_, hasOmit := c.OmitGroup()
	assert.False(t, hasOmit)
	assert.Len(t, c.FindGroups(), 1)

	var none *FindCriteria
	assert.True(t, none.IsFindAll())

	star := &FindCriteria{Select: []string{"*"}}
	assert.True(t, star.SelectsAll())
}

func TestFoldOperator(t *testing.T) {
	assert.Equal(t, "==open", FoldOperator(OpEquals, "open"))
	assert.Equal(t, "<3", FoldOperator(OpLess, "3"))
	assert.Equal(t, "<=3", FoldOperator(OpLessEq, "3"))
	assert.Equal(t, ">3", FoldOperator(OpGreater, "3"))
	assert.Equal(t, ">=3", FoldOperator(OpGreaterEq, "3"))
	assert.Equal(t, "J*", FoldOperator(OpLike, "J*"))
}
