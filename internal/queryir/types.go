package queryir

import (
	"strconv"
	"strings"
	"unicode"
)

// Operator is a comparison operator in a Criterion.
type Operator string

const (
	OpEquals    Operator = "="
	OpLess      Operator = "<"
	OpLessEq    Operator = "<="
	OpGreater   Operator = ">"
	OpGreaterEq Operator = ">="
	OpLike      Operator = "LIKE"
)

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpLess, OpLessEq, OpGreater, OpGreaterEq, OpLike:
		return true
	}
	return false
}

// Criterion is a single (field, operator, value) triple.
type Criterion struct {
	Field string
	Op    Operator
	Value string
}

// FindGroup is a set of AND'd criteria. An omit group subtracts its matches.
type FindGroup struct {
	Criteria []Criterion
	Omit     bool
}

// SortDirection is the direction of a SortRule.
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// SortRule orders results by one field.
type SortRule struct {
	Field     string
	Direction SortDirection
}

// FindCriteria is the compiled form of a query string.
//
// Select lists the requested fields; empty means all. Groups are OR'd, except
// that a trailing group with Omit set is subtracted. Limit and Offset apply
// only when HasLimit / HasOffset are set.
type FindCriteria struct {
	Select    []string
	Groups    []FindGroup
	Sort      []SortRule
	Limit     int
	HasLimit  bool
	Offset    int
	HasOffset bool
}

// Exact builds criteria matching records whose field equals value.
// Used for unique-key lookups.
func Exact(field, value string) *FindCriteria {
	return &FindCriteria{
		Groups: []FindGroup{{Criteria: []Criterion{{Field: field, Op: OpEquals, Value: value}}}},
	}
}

// IsFindAll reports whether the criteria select every record.
func (c *FindCriteria) IsFindAll() bool {
	return c == nil || len(c.Groups) == 0
}

// SelectsAll reports whether every field is requested.
func (c *FindCriteria) SelectsAll() bool {
	if c == nil || len(c.Select) == 0 {
		return true
	}
	return len(c.Select) == 1 && c.Select[0] == "*"
}

// FindGroups returns the non-omit groups.
func (c *FindCriteria) FindGroups() []FindGroup {
	var out []FindGroup
	for _, g := range c.Groups {
		if !g.Omit {
			out = append(out, g)
		}
	}
	return out
}

// OmitGroup returns the omit group, if any.
func (c *FindCriteria) OmitGroup() (FindGroup, bool) {
	if c == nil || len(c.Groups) == 0 {
		return FindGroup{}, false
	}
	last := c.Groups[len(c.Groups)-1]
	return last, last.Omit
}

// SetLimit sets the LIMIT clause.
func (c *FindCriteria) SetLimit(n int) {
	c.Limit = n
	c.HasLimit = true
}

// SetOffset sets the OFFSET clause.
func (c *FindCriteria) SetOffset(n int) {
	c.Offset = n
	c.HasOffset = true
}

// String renders the criteria in the query language.
func (c *FindCriteria) String() string {
	if c == nil {
		return ""
	}
	var parts []string

	if len(c.Select) > 0 {
		fields := make([]string, len(c.Select))
		for i, f := range c.Select {
			if f == "*" {
				fields[i] = f
				continue
			}
			fields[i] = QuoteField(f)
		}
		parts = append(parts, "SELECT "+strings.Join(fields, ", "))
	}

	if len(c.Groups) > 0 {
		var where strings.Builder
		where.WriteString("WHERE ")
		for i, g := range c.Groups {
			if i > 0 {
				if g.Omit {
					where.WriteString(" OMIT ")
				} else {
					where.WriteString(" OR ")
				}
			}
			for j, cr := range g.Criteria {
				if j > 0 {
					where.WriteString(" AND ")
				}
				where.WriteString(QuoteField(cr.Field))
				where.WriteByte(' ')
				where.WriteString(string(cr.Op))
				where.WriteByte(' ')
				where.WriteString(QuoteValue(cr.Value))
			}
		}
		parts = append(parts, where.String())
	}

	if len(c.Sort) > 0 {
		rules := make([]string, len(c.Sort))
		for i, s := range c.Sort {
			rules[i] = QuoteField(s.Field) + " " + string(s.Direction)
		}
		parts = append(parts, "ORDER BY "+strings.Join(rules, ", "))
	}

	if c.HasLimit {
		parts = append(parts, "LIMIT "+strconv.Itoa(c.Limit))
	}
	if c.HasOffset {
		parts = append(parts, "OFFSET "+strconv.Itoa(c.Offset))
	}

	return strings.Join(parts, " ")
}

// FoldOperator writes op into value using find-request syntax, where the
// comparison is a prefix of the search value ("==x", "<x", ">=x"). LIKE
// passes the operand through unchanged so any wildcards in it keep the
// backend's meaning.
func FoldOperator(op Operator, value string) string {
	switch op {
	case OpEquals:
		return "==" + value
	case OpLike:
		return value
	default:
		return string(op) + value
	}
}

// QuoteField renders a field name, backquoting it unless it is a plain
// identifier that is not a keyword.
func QuoteField(name string) string {
	if IsPlainIdent(name) && !IsKeyword(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteValue renders a value as a double-quoted string literal.
func QuoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// IsPlainIdent reports whether s can be written without quoting:
// a letter or underscore followed by letters, digits, '_', '.', ':' or '$',
// optionally ending in a repetition suffix.
func IsPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	base := s
	if open := strings.LastIndexByte(s, '['); open > 0 && strings.HasSuffix(s, "]") {
		digits := s[open+1 : len(s)-1]
		if digits == "" {
			return false
		}
		for _, r := range digits {
			if r < '0' || r > '9' {
				return false
			}
		}
		base = s[:open]
	}
	for i, r := range base {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '.' || r == ':' || r == '$'):
		default:
			return false
		}
	}
	return true
}

var keywords = map[string]bool{
	"SELECT": true, "WHERE": true, "AND": true, "OR": true, "OMIT": true,
	"ORDER": true, "BY": true, "ASC": true, "DESC": true, "LIMIT": true,
	"OFFSET": true, "LIKE": true,
}

// IsKeyword reports whether s is a reserved word of the query language.
func IsKeyword(s string) bool {
	return keywords[strings.ToUpper(s)]
}
