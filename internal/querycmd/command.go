// Package querycmd compiles a FindCriteria into the legacy compound-find
// command object.
//
// The legacy protocol models "OR of AND-groups" as a set of find requests,
// each added to the command with an explicit precedence counter. Requests
// with the same precedence are evaluated together; an omit request
// subtracts its matches. Params serializes the command into the
// -findquery request parameters the legacy endpoint expects.
package querycmd

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// SortOrder is a legacy sort order keyword.
type SortOrder string

const (
	Ascend  SortOrder = "ascend"
	Descend SortOrder = "descend"
)

// Criterion is one field test. The comparison operator is already folded
// into Value ("==x", "<x", ">=x"), the way the legacy find syntax expects.
type Criterion struct {
	Field string
	Value string
}

// FindRequest is a set of AND'd criteria. Omit turns it into an omit
// request.
type FindRequest struct {
	Criteria []Criterion
	Omit     bool
}

// AddCriterion appends a field test.
func (r *FindRequest) AddCriterion(field, value string) {
	r.Criteria = append(r.Criteria, Criterion{Field: field, Value: value})
}

// SortRule orders the found set by one field.
type SortRule struct {
	Precedence int
	Field      string
	Order      SortOrder
}

type entry struct {
	precedence int
	seq        int
	request    *FindRequest
}

// CompoundFind is the stateful command object a legacy find is built on.
// Callers add requests and sort rules, set a range, then execute it through
// the legacy connector.
type CompoundFind struct {
	entries []entry
	sorts   []SortRule
	fields  []string

	skip     int
	limit    int
	hasRange bool
}

// NewCompoundFind creates an empty command. An empty command finds all
// records.
func NewCompoundFind() *CompoundFind {
	return &CompoundFind{}
}

// Add adds a find request with the given precedence. Requests are executed
// in ascending precedence; ties keep insertion order.
func (c *CompoundFind) Add(precedence int, r *FindRequest) {
	c.entries = append(c.entries, entry{precedence: precedence, seq: len(c.entries), request: r})
}

// AddSortRule adds a sort rule. Precedence 1 is the primary key.
func (c *CompoundFind) AddSortRule(field string, precedence int, order SortOrder) {
	c.sorts = append(c.sorts, SortRule{Precedence: precedence, Field: field, Order: order})
}

// SetRange limits the found set window. limit < 0 means no maximum.
func (c *CompoundFind) SetRange(skip, limit int) {
	c.skip = skip
	c.limit = limit
	c.hasRange = true
}

// Range returns the window set by SetRange.
func (c *CompoundFind) Range() (skip, limit int, ok bool) {
	return c.skip, c.limit, c.hasRange
}

// SetFields restricts the fields returned. Empty means all.
func (c *CompoundFind) SetFields(fields []string) {
	c.fields = append([]string(nil), fields...)
}

// Fields returns the requested fields.
func (c *CompoundFind) Fields() []string {
	return c.fields
}

// Requests returns the find requests in execution order.
func (c *CompoundFind) Requests() []*FindRequest {
	sorted := make([]entry, len(c.entries))
	copy(sorted, c.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].precedence != sorted[j].precedence {
			return sorted[i].precedence < sorted[j].precedence
		}
		return sorted[i].seq < sorted[j].seq
	})
	out := make([]*FindRequest, len(sorted))
	for i, e := range sorted {
		out[i] = e.request
	}
	return out
}

// SortRules returns the sort rules ordered by precedence.
func (c *CompoundFind) SortRules() []SortRule {
	out := make([]SortRule, len(c.sorts))
	copy(out, c.sorts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Precedence < out[j].Precedence })
	return out
}

// IsFindAll reports whether the command has no find requests.
func (c *CompoundFind) IsFindAll() bool {
	return len(c.entries) == 0
}

// Param is one request parameter. Order is significant for the legacy
// endpoint, so parameters are kept as a list rather than url.Values.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered parameter list.
type Params []Param

// Add appends a parameter.
func (p *Params) Add(name, value string) {
	*p = append(*p, Param{Name: name, Value: value})
}

// Get returns the first value for name.
func (p Params) Get(name string) (string, bool) {
	for _, kv := range p {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// Encode renders the parameters as a query string in list order. A command
// parameter ("-" prefix) with an empty value is rendered as a bare name,
// like -findall.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Name))
		if kv.Value == "" && strings.HasPrefix(kv.Name, "-") {
			continue
		}
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// Params serializes the command. A command without requests becomes
// -findall; otherwise each criterion gets a q<n> name and -query lists the
// requests as (q1,q2);(q3);!(q4).
func (c *CompoundFind) Params() Params {
	var p Params
	reqs := c.Requests()

	if len(reqs) == 0 {
		p.Add("-findall", "")
	} else {
		p.Add("-findquery", "")
		var query []string
		n := 0
		for _, r := range reqs {
			names := make([]string, 0, len(r.Criteria))
			for _, cr := range r.Criteria {
				n++
				q := "q" + strconv.Itoa(n)
				p.Add("-"+q, cr.Field)
				p.Add("-"+q+".value", cr.Value)
				names = append(names, q)
			}
			group := "(" + strings.Join(names, ",") + ")"
			if r.Omit {
				group = "!" + group
			}
			query = append(query, group)
		}
		p.Add("-query", strings.Join(query, ";"))
	}

	for i, s := range c.SortRules() {
		p.Add(fmt.Sprintf("-sortfield.%d", i+1), s.Field)
		p.Add(fmt.Sprintf("-sortorder.%d", i+1), string(s.Order))
	}

	if c.hasRange {
		p.Add("-skip", strconv.Itoa(c.skip))
		if c.limit >= 0 {
			p.Add("-max", strconv.Itoa(c.limit))
		} else {
			p.Add("-max", "all")
		}
	}
	return p
}
