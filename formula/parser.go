package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Placeholder is the distinguished token specialized per discovered
// suffix, in output names and in counter resolution.
const Placeholder = "$tbl"

// countsNamespace prefixes every counter reference in a formula.
const countsNamespace = "counts"

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent            // identifiers, may embed '.' and '$'
	tokOp               // + - * / ( ) ,
	tokEOF
)

type token struct {
	kind tokenKind
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
		case strings.ContainsRune("+-*/(),", c):
			tokens = append(tokens, token{kind: tokOp, text: string(c)})
			i++
		case unicode.IsDigit(c):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_' || c == '$':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || strings.ContainsRune("_.$", runes[j])) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in expression", string(c))
		}
	}
	tokens = append(tokens, token{kind: tokEOF})
	return tokens, nil
}

// Expression AST. counterRef is resolved per suffix at evaluation time;
// nothing in a compiled tree is ever mutated.
type node interface {
	// eval computes the node under the given per-suffix bindings.
	// missing is sticky: any missing operand makes the result missing,
	// and only counter references introduce missing.
	eval(b *binding) (value float64, missing bool, err error)
}

type numberNode float64

func (n numberNode) eval(*binding) (float64, bool, error) { return float64(n), false, nil }

type counterRef struct {
	alias string
}

func (n counterRef) eval(b *binding) (float64, bool, error) {
	value, ok := b.resolve(n.alias)
	return value, !ok, nil
}

type negNode struct{ inner node }

func (n negNode) eval(b *binding) (float64, bool, error) {
	v, missing, err := n.inner.eval(b)
	return -v, missing, err
}

type binaryNode struct {
	op          rune
	left, right node
}

func (n binaryNode) eval(b *binding) (float64, bool, error) {
	left, lm, err := n.left.eval(b)
	if err != nil {
		return 0, false, err
	}
	right, rm, err := n.right.eval(b)
	if err != nil {
		return 0, false, err
	}
	missing := lm || rm
	switch n.op {
	case '+':
		return left + right, missing, nil
	case '-':
		return left - right, missing, nil
	case '*':
		return left * right, missing, nil
	case '/':
		// IEEE 754 semantics: x/0 is ±Inf, 0/0 is NaN.
		return left / right, missing, nil
	}
	return 0, false, fmt.Errorf("unknown operator %q", string(n.op))
}

type callNode struct {
	name  string
	fn    func(float64) float64
	inner node
}

func (n callNode) eval(b *binding) (float64, bool, error) {
	v, missing, err := n.inner.eval(b)
	if err != nil {
		return 0, false, err
	}
	return n.fn(v), missing, nil
}

// nameTemplate is an output name parsed into literal and placeholder
// parts. Specialization is structural: only real placeholder parts are
// substituted, never text that happens to look like one elsewhere.
type nameTemplate struct {
	parts        []string // literal parts, len(parts) == placeholders+1
	placeholders int
}

func parseNameTemplate(text string) (nameTemplate, error) {
	parts := strings.Split(text, Placeholder)
	if len(parts) < 2 {
		return nameTemplate{}, fmt.Errorf("output name %q does not contain the %s placeholder", text, Placeholder)
	}
	return nameTemplate{parts: parts, placeholders: len(parts) - 1}, nil
}

func (n nameTemplate) instantiate(suffix string) string {
	return strings.Join(n.parts, suffix)
}

type parser struct {
	tokens  []token
	pos     int
	aliases map[string]bool
}

func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) next() token { t := p.tokens[p.pos]; p.pos++; return t }
func (p *parser) isOp(s string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == s
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := rune(p.next().text[0])
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := rune(p.next().text[0])
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("-") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{inner: inner}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (node, error) {
	t := p.peek()
	switch {
	case t.kind == tokNumber:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", t.text, err)
		}
		return numberNode(v), nil

	case t.kind == tokOp && t.text == "(":
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(")") {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return inner, nil

	case t.kind == tokIdent:
		p.next()
		if fn, ok := functions[t.text]; ok && p.isOp("(") {
			p.next()
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.isOp(")") {
				return nil, fmt.Errorf("missing closing parenthesis after %s(", t.text)
			}
			p.next()
			return callNode{name: t.text, fn: fn, inner: inner}, nil
		}
		return p.counterRef(t.text)
	}
	return nil, fmt.Errorf("unexpected %q in formula", t.text)
}

func (p *parser) counterRef(ident string) (node, error) {
	namespace, alias, ok := strings.Cut(ident, ".")
	if !ok || namespace != countsNamespace {
		return nil, fmt.Errorf("unknown identifier %q, counters are referenced as %s.<name>", ident, countsNamespace)
	}
	if !p.aliases[alias] {
		return nil, fmt.Errorf("unknown counter %q in formula", alias)
	}
	return counterRef{alias: alias}, nil
}
