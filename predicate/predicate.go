// Package predicate compiles the SQL-flavoured boolean expressions used
// to define training outcomes, e.g. `CLICK IS NOT NULL` or
// `status = '200' AND region != 'qc'`. A column absent from a row is
// treated as NULL.
package predicate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pivolan/stats_tables/domain/models"
)

// Predicate evaluates one compiled boolean expression against a row.
type Predicate interface {
	Eval(row models.Row) (bool, error)
}

// Compile parses the expression text. Malformed text is a configuration
// error and is reported here, before any row is read.
func Compile(text string) (Predicate, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q in predicate %q", p.peek(), text)
	}
	return node, nil
}

type token struct {
	kind string // word, literal, op
	text string
}

func tokenize(text string) ([]token, error) {
	var tokens []token
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, token{kind: "op", text: string(c)})
			i++
		case c == '=':
			tokens = append(tokens, token{kind: "op", text: "="})
			i++
		case c == '!' && i+1 < len(runes) && runes[i+1] == '=':
			tokens = append(tokens, token{kind: "op", text: "!="})
			i += 2
		case c == '\'':
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string literal in predicate %q", text)
			}
			tokens = append(tokens, token{kind: "literal", text: string(runes[i+1 : j])})
			i = j + 1
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !strings.ContainsRune("()='!", runes[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("unexpected character %q in predicate %q", string(c), text)
			}
			tokens = append(tokens, token{kind: "word", text: string(runes[i:j])})
			i = j
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty predicate")
	}
	return tokens, nil
}

// Grammar, lowest precedence first:
//
//	or     := and (OR and)*
//	and    := unary (AND unary)*
//	unary  := NOT unary | '(' or ')' | comparison
//	comparison := column IS [NOT] NULL | column ('='|'!=') literal
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos].text
}

func (p *parser) nextIsKeyword(word string) bool {
	return !p.done() && p.tokens[p.pos].kind == "word" && strings.EqualFold(p.tokens[p.pos].text, word)
}

func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.nextIsKeyword("OR") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.nextIsKeyword("AND") {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.nextIsKeyword("NOT") {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	if p.peek() == "(" {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis in predicate")
		}
		p.pos++
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Predicate, error) {
	if p.done() || p.tokens[p.pos].kind != "word" {
		return nil, fmt.Errorf("expected column name, got %q", p.peek())
	}
	column := p.tokens[p.pos].text
	p.pos++

	if p.nextIsKeyword("IS") {
		p.pos++
		negate := false
		if p.nextIsKeyword("NOT") {
			p.pos++
			negate = true
		}
		if !p.nextIsKeyword("NULL") {
			return nil, fmt.Errorf("expected NULL after %s IS", column)
		}
		p.pos++
		return isNullNode{column: column, negate: negate}, nil
	}

	op := p.peek()
	if op != "=" && op != "!=" {
		return nil, fmt.Errorf("expected comparison operator after column %s, got %q", column, op)
	}
	p.pos++
	if p.done() {
		return nil, fmt.Errorf("missing right-hand side after %s %s", column, op)
	}
	lit := p.tokens[p.pos]
	if lit.kind == "op" {
		return nil, fmt.Errorf("expected literal after %s %s, got %q", column, op, lit.text)
	}
	p.pos++
	return compareNode{column: column, value: lit.text, negate: op == "!="}, nil
}

type isNullNode struct {
	column string
	negate bool
}

func (n isNullNode) Eval(row models.Row) (bool, error) {
	present := row.Has(n.column)
	if n.negate {
		return present, nil
	}
	return !present, nil
}

type compareNode struct {
	column string
	value  string
	negate bool
}

func (n compareNode) Eval(row models.Row) (bool, error) {
	value, ok := row.Get(n.column)
	if !ok {
		// NULL compares false under both = and !=.
		return false, nil
	}
	if n.negate {
		return value != n.value, nil
	}
	return value == n.value, nil
}

type andNode struct{ left, right Predicate }

func (n andNode) Eval(row models.Row) (bool, error) {
	left, err := n.left.Eval(row)
	if err != nil || !left {
		return false, err
	}
	return n.right.Eval(row)
}

type orNode struct{ left, right Predicate }

func (n orNode) Eval(row models.Row) (bool, error) {
	left, err := n.left.Eval(row)
	if err != nil || left {
		return left, err
	}
	return n.right.Eval(row)
}

type notNode struct{ inner Predicate }

func (n notNode) Eval(row models.Row) (bool, error) {
	inner, err := n.inner.Eval(row)
	return !inner, err
}
