package queryparse

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/restgate/internal/queryir"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokKeyword
	tokOperator
	tokLParen
	tokRParen
	tokComma
	tokStar
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent, tokQuotedIdent:
		return "field name"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokKeyword:
		return "keyword"
	case tokOperator:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokStar:
		return "'*'"
	}
	return "token"
}

// token is one lexeme. Text holds the decoded value for strings and quoted
// identifiers, and the upper-cased word for keywords.
type token struct {
	kind tokenKind
	text string
	raw  string
	pos  int
}

// tokenize splits input into tokens.
func tokenize(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", raw: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", raw: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", raw: ",", pos: i})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, text: "*", raw: "*", pos: i})
			i++
		case c == '=':
			toks = append(toks, token{kind: tokOperator, text: "=", raw: "=", pos: i})
			i++
		case c == '<' || c == '>':
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
			}
			toks = append(toks, token{kind: tokOperator, text: op, raw: op, pos: i})
			i += len(op)
		case c == '"' || c == '\'':
			text, n, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: text, raw: input[i : i+n], pos: i})
			i += n
		case c == '`':
			text, n, err := scanQuotedIdent(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: text, raw: input[i : i+n], pos: i})
			i += n
		case c == '-' || (c >= '0' && c <= '9'):
			n := scanNumber(input, i)
			if n == 0 {
				return nil, &ParseError{Pos: i, Token: string(c), Message: "unexpected character"}
			}
			toks = append(toks, token{kind: tokNumber, text: input[i : i+n], raw: input[i : i+n], pos: i})
			i += n
		default:
			n := scanWord(input, i)
			if n == 0 {
				r, _ := utf8.DecodeRuneInString(input[i:])
				return nil, &ParseError{Pos: i, Token: string(r), Message: "unexpected character"}
			}
			word := input[i : i+n]
			if queryir.IsKeyword(word) {
				toks = append(toks, token{kind: tokKeyword, text: strings.ToUpper(word), raw: word, pos: i})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word, raw: word, pos: i})
			}
			i += n
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}

// scanString reads a quoted string starting at input[start]. A backslash
// escapes the following character. Returns the decoded text and the number
// of bytes consumed.
func scanString(input string, start int) (string, int, error) {
	quote := input[start]
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		switch {
		case c == '\\' && i+1 < len(input):
			b.WriteByte(input[i+1])
			i += 2
		case c == quote:
			return b.String(), i + 1 - start, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, &ParseError{Pos: start, Token: input[start:], Message: "unterminated string"}
}

// scanQuotedIdent reads a backquoted identifier. A doubled backquote is a
// literal backquote.
func scanQuotedIdent(input string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		if c == '`' {
			if i+1 < len(input) && input[i+1] == '`' {
				b.WriteByte('`')
				i += 2
				continue
			}
			if b.Len() == 0 {
				return "", 0, &ParseError{Pos: start, Token: "``", Message: "empty field name"}
			}
			return b.String(), i + 1 - start, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, &ParseError{Pos: start, Token: input[start:], Message: "unterminated field name"}
}

// scanNumber returns the length of an optionally signed decimal number.
func scanNumber(input string, start int) int {
	i := start
	if input[i] == '-' {
		i++
	}
	digits := 0
	for i < len(input) && input[i] >= '0' && input[i] <= '9' {
		i++
		digits++
	}
	if i < len(input) && input[i] == '.' {
		i++
		for i < len(input) && input[i] >= '0' && input[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	return i - start
}

// scanWord returns the length of a bare word: identifier characters plus an
// optional trailing repetition suffix such as [3].
func scanWord(input string, start int) int {
	i := start
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == '_' || r == '.' || r == ':' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			i += size
			continue
		}
		break
	}
	if i == start {
		return 0
	}
	if i < len(input) && input[i] == '[' {
		j := i + 1
		for j < len(input) && input[j] >= '0' && input[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(input) && input[j] == ']' {
			i = j + 1
		}
	}
	return i - start
}
