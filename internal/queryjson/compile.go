// Package queryjson compiles a FindCriteria into the JSON find body of the
// data API: an ordered list of find-request maps plus a separate sort list.
//
// The data API is stateless, so unlike the legacy command object the body is
// rebuilt from the criteria on every call.
package queryjson

import (
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/roach88/restgate/internal/queryir"
)

// FindRequest maps field name to search value, operator folded into the
// value. The "omit" key set to "true" marks an omit request.
type FindRequest map[string]string

// SortRule is one entry of the sort list.
type SortRule struct {
	FieldName string `json:"fieldName"`
	SortOrder string `json:"sortOrder"`
}

const (
	SortAscend  = "ascend"
	SortDescend = "descend"
)

// Query is the body of a _find call. Offset is 1-based as the data API
// expects; zero means unset.
type Query struct {
	Query  []FindRequest `json:"query"`
	Sort   []SortRule    `json:"sort,omitempty"`
	Offset int           `json:"offset,omitempty"`
	Limit  *int          `json:"limit,omitempty"`

	// Fields restricts the returned fields; it is applied by the connector.
	Fields []string `json:"-"`
}

// Compile builds the _find body for c. Criteria without find groups yield
// a Query with an empty request list; callers use the records endpoint for
// those.
func Compile(c *queryir.FindCriteria) (*Query, error) {
	if err := queryir.Validate(c); err != nil {
		return nil, fmt.Errorf("compile find body: %w", err)
	}
	q := &Query{}
	if c == nil {
		return q, nil
	}

	for gi, g := range c.Groups {
		req := make(FindRequest, len(g.Criteria)+1)
		for _, cr := range g.Criteria {
			if _, dup := req[cr.Field]; dup {
				return nil, &queryir.ValidationError{
					Group:   gi,
					Message: fmt.Sprintf("field %q is tested more than once", cr.Field),
				}
			}
			req[cr.Field] = queryir.FoldOperator(cr.Op, cr.Value)
		}
		if g.Omit {
			req["omit"] = "true"
		}
		q.Query = append(q.Query, req)
	}

	for _, s := range c.Sort {
		order := SortAscend
		if s.Direction == queryir.Descending {
			order = SortDescend
		}
		q.Sort = append(q.Sort, SortRule{FieldName: s.Field, SortOrder: order})
	}

	if c.HasOffset {
		q.Offset = c.Offset + 1
	}
	if c.HasLimit {
		limit := c.Limit
		q.Limit = &limit
	}
	if !c.SelectsAll() {
		q.Fields = append([]string(nil), c.Select...)
	}
	return q, nil
}

// IsFindAll reports whether q has no find requests.
func (q *Query) IsFindAll() bool {
	return len(q.Query) == 0
}

// Marshal renders the _find body. Keys of each find request are emitted in
// sorted order.
func (q *Query) Marshal() ([]byte, error) {
	return gojson.Marshal(q)
}

// URLParams returns the _sort, _offset and _limit parameters used when the
// query has no find requests and the records endpoint serves it instead.
func (q *Query) URLParams() (map[string]string, error) {
	params := make(map[string]string)
	if len(q.Sort) > 0 {
		sortJSON, err := gojson.Marshal(q.Sort)
		if err != nil {
			return nil, fmt.Errorf("encode sort: %w", err)
		}
		params["_sort"] = string(sortJSON)
	}
	if q.Offset > 0 {
		params["_offset"] = strconv.Itoa(q.Offset)
	}
	if q.Limit != nil {
		params["_limit"] = strconv.Itoa(*q.Limit)
	}
	return params, nil
}
