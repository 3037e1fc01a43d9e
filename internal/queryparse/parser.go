// Package queryparse compiles the SQL-subset query language into a
// queryir.FindCriteria.
//
// Grammar (keywords are case-insensitive, every clause is optional):
//
//	query     := [SELECT selectList] [WHERE whereExpr] [ORDER BY sortList]
//	             [LIMIT n] [OFFSET n]
//	selectList:= '*' | field (',' field)*
//	whereExpr := andGroup (('OR' | 'OMIT') andGroup)*
//	andGroup  := term ('AND' term)*
//	term      := field op value | '(' andGroup ')'
//	sortList  := field [ASC | DESC] (',' field [ASC | DESC])*
//	op        := '=' | '<' | '<=' | '>' | '>=' | 'LIKE'
//
// Fields are bare words (letters, digits, '_', '.', ':', '$', optional [n]
// suffix) or backquoted. Values are single- or double-quoted strings,
// numbers, or bare words.
//
// Parentheses only group AND terms: OR and OMIT inside parentheses are
// rejected because FindCriteria has no nested OR. OMIT may appear once, as
// the last group.
package queryparse

import (
	"fmt"
	"strconv"

	"github.com/roach88/restgate/internal/queryir"
)

// Parse compiles a query string. An empty or blank string yields empty
// criteria (find all).
func Parse(input string) (*queryir.FindCriteria, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	return p.parse()
}

// parser is a recursive-descent parser with one token of lookahead.
type parser struct {
	tokens []token
	pos    int
	depth  int // open parentheses
}

// current returns the lookahead token without consuming it.
func (p *parser) current() token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the lookahead token.
func (p *parser) advance() token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) isKeyword(word string) bool {
	tok := p.current()
	return tok.kind == tokKeyword && tok.text == word
}

func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return p.errorf("expected %s", word)
	}
	p.advance()
	return nil
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	tok := p.current()
	return &ParseError{Pos: tok.pos, Token: tok.raw, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parse() (*queryir.FindCriteria, error) {
	c := &queryir.FindCriteria{}

	if p.isKeyword("SELECT") {
		p.advance()
		sel, err := p.parseSelectList()
		if err != nil {
			return nil, err
		}
		c.Select = sel
	}

	if p.isKeyword("WHERE") {
		p.advance()
		groups, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		c.Groups = groups
	}

	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		rules, err := p.parseSortList()
		if err != nil {
			return nil, err
		}
		c.Sort = rules
	}

	if p.isKeyword("LIMIT") {
		p.advance()
		n, err := p.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		c.SetLimit(n)
	}

	if p.isKeyword("OFFSET") {
		p.advance()
		n, err := p.parseCount("OFFSET")
		if err != nil {
			return nil, err
		}
		c.SetOffset(n)
	}

	if tok := p.current(); tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s", tok.kind)
	}
	if err := queryir.Validate(c); err != nil {
		return nil, &ParseError{Pos: p.current().pos, Message: err.Error()}
	}
	return c, nil
}

func (p *parser) parseSelectList() ([]string, error) {
	if p.current().kind == tokStar {
		p.advance()
		return []string{"*"}, nil
	}
	var fields []string
	for {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.current().kind != tokComma {
			return fields, nil
		}
		p.advance()
	}
}

// parseWhere parses whereExpr. The first group is always a find group;
// each following group is introduced by OR or OMIT.
func (p *parser) parseWhere() ([]queryir.FindGroup, error) {
	first, err := p.parseAndGroup()
	if err != nil {
		return nil, err
	}
	groups := []queryir.FindGroup{{Criteria: first}}

	for p.isKeyword("OR") || p.isKeyword("OMIT") {
		if groups[len(groups)-1].Omit {
			return nil, p.errorf("OMIT group must be the last group")
		}
		omit := p.current().text == "OMIT"
		p.advance()
		criteria, err := p.parseAndGroup()
		if err != nil {
			return nil, err
		}
		groups = append(groups, queryir.FindGroup{Criteria: criteria, Omit: omit})
	}
	return groups, nil
}

// parseAndGroup parses term ('AND' term)*.
func (p *parser) parseAndGroup() ([]queryir.Criterion, error) {
	criteria, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		more, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, more...)
	}
	if p.depth > 0 && (p.isKeyword("OR") || p.isKeyword("OMIT")) {
		return nil, p.errorf("%s is not allowed inside parentheses", p.current().text)
	}
	return criteria, nil
}

// parseTerm parses field op value, or a parenthesized AND group which is
// flattened into the enclosing group.
func (p *parser) parseTerm() ([]queryir.Criterion, error) {
	if p.current().kind == tokLParen {
		p.advance()
		p.depth++
		inner, err := p.parseAndGroup()
		if err != nil {
			return nil, err
		}
		if p.current().kind != tokRParen {
			return nil, p.errorf("expected ')'")
		}
		p.advance()
		p.depth--
		return inner, nil
	}

	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return []queryir.Criterion{{Field: field, Op: op, Value: value}}, nil
}

func (p *parser) parseField() (string, error) {
	tok := p.current()
	switch tok.kind {
	case tokIdent, tokQuotedIdent:
		p.advance()
		return tok.text, nil
	}
	return "", p.errorf("expected field name, got %s", tok.kind)
}

func (p *parser) parseOperator() (queryir.Operator, error) {
	tok := p.current()
	if tok.kind == tokOperator {
		p.advance()
		return queryir.Operator(tok.text), nil
	}
	if tok.kind == tokKeyword && tok.text == "LIKE" {
		p.advance()
		return queryir.OpLike, nil
	}
	return "", p.errorf("expected operator, got %s", tok.kind)
}

func (p *parser) parseValue() (string, error) {
	tok := p.current()
	switch tok.kind {
	case tokString, tokNumber, tokIdent:
		p.advance()
		return tok.text, nil
	}
	return "", p.errorf("expected value, got %s", tok.kind)
}

func (p *parser) parseSortList() ([]queryir.SortRule, error) {
	var rules []queryir.SortRule
	for {
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		dir := queryir.Ascending
		if p.isKeyword("ASC") {
			p.advance()
		} else if p.isKeyword("DESC") {
			p.advance()
			dir = queryir.Descending
		}
		rules = append(rules, queryir.SortRule{Field: field, Direction: dir})
		if p.current().kind != tokComma {
			return rules, nil
		}
		p.advance()
	}
}

func (p *parser) parseCount(clause string) (int, error) {
	tok := p.current()
	if tok.kind != tokNumber {
		return 0, p.errorf("%s expects a non-negative integer", clause)
	}
	n, err := strconv.Atoi(tok.text)
	if err != nil || n < 0 {
		return 0, p.errorf("%s expects a non-negative integer", clause)
	}
	p.advance()
	return n, nil
}
