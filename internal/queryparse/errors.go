package queryparse

import (
	"errors"
	"fmt"
)

// ParseError reports a grammar violation in a query string.
// Pos is the byte offset of the offending token.
type ParseError struct {
	Pos     int
	Token   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("query parse error at position %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("query parse error at position %d near %q: %s", e.Pos, e.Token, e.Message)
}

// IsParseError reports whether err is, or wraps, a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
