package querycmd

import (
	"fmt"

	"github.com/roach88/restgate/internal/queryir"
)

// Compile builds a CompoundFind from criteria. Each find group becomes one
// request with its own precedence; the omit group comes last. Sort rules
// keep their order as precedence. LIMIT and OFFSET become the range.
func Compile(c *queryir.FindCriteria) (*CompoundFind, error) {
	if err := queryir.Validate(c); err != nil {
		return nil, fmt.Errorf("compile find command: %w", err)
	}
	cmd := NewCompoundFind()
	if c == nil {
		return cmd, nil
	}

	precedence := 0
	for _, g := range c.Groups {
		precedence++
		req := &FindRequest{Omit: g.Omit}
		for _, cr := range g.Criteria {
			req.AddCriterion(cr.Field, queryir.FoldOperator(cr.Op, cr.Value))
		}
		cmd.Add(precedence, req)
	}

	for i, s := range c.Sort {
		order := Ascend
		if s.Direction == queryir.Descending {
			order = Descend
		}
		cmd.AddSortRule(s.Field, i+1, order)
	}

	if c.HasLimit || c.HasOffset {
		limit := -1
		if c.HasLimit {
			limit = c.Limit
		}
		cmd.SetRange(c.Offset, limit)
	}

	if !c.SelectsAll() {
		cmd.SetFields(c.Select)
	}
	return cmd, nil
}
