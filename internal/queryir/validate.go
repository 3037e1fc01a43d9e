package queryir

import (
	"fmt"
)

// ValidationError reports a FindCriteria that no backend can represent.
type ValidationError struct {
	Group   int // index of the offending group, -1 when not group-specific
	Message string
}

func (e *ValidationError) Error() string {
	if e.Group >= 0 {
		return fmt.Sprintf("invalid criteria: group %d: %s", e.Group, e.Message)
	}
	return fmt.Sprintf("invalid criteria: %s", e.Message)
}

// Validate checks the structural invariants every compiler relies on:
//
//  1. At most one omit group, and it is the last group
//  2. An omit group never stands alone (there is something to subtract from)
//  3. Every group has at least one criterion
//  4. Every criterion names a field and uses a known operator
//  5. Sort rules name a field and use ASC or DESC
//  6. Limit and offset are not negative
//
// Validate is a pure function with no side effects.
func Validate(c *FindCriteria) error {
	if c == nil {
		return nil
	}

	omits := 0
	for i, g := range c.Groups {
		if len(g.Criteria) == 0 {
			return &ValidationError{Group: i, Message: "empty find group"}
		}
		if g.Omit {
			omits++
			if omits > 1 {
				return &ValidationError{Group: i, Message: "more than one omit group"}
			}
			if i != len(c.Groups)-1 {
				return &ValidationError{Group: i, Message: "omit group must be last"}
			}
			if i == 0 {
				return &ValidationError{Group: i, Message: "omit group needs a preceding find group"}
			}
		}
		for _, cr := range g.Criteria {
			if cr.Field == "" {
				return &ValidationError{Group: i, Message: "criterion without field"}
			}
			if !cr.Op.Valid() {
				return &ValidationError{Group: i, Message: fmt.Sprintf("unknown operator %q", cr.Op)}
			}
		}
	}

	for _, s := range c.Sort {
		if s.Field == "" {
			return &ValidationError{Group: -1, Message: "sort rule without field"}
		}
		if s.Direction != Ascending && s.Direction != Descending {
			return &ValidationError{Group: -1, Message: fmt.Sprintf("unknown sort direction %q", s.Direction)}
		}
	}

	if c.HasLimit && c.Limit < 0 {
		return &ValidationError{Group: -1, Message: "negative limit"}
	}
	if c.HasOffset && c.Offset < 0 {
		return &ValidationError{Group: -1, Message: "negative offset"}
	}
	return nil
}
