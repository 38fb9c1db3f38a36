package l10n

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// PluralRule selects a plural form index for a count. It is parsed from a
// gettext Plural-Forms header such as "nplurals=2; plural=(n != 1);".
type PluralRule struct {
	NPlurals int
	expr     node
	source   string
}

// English is the rule of the source language.
var English = PluralRule{NPlurals: 2, expr: binary{op: "!=", left: variable{}, right: literal(1)}, source: "nplurals=2; plural=(n != 1);"}

// Index returns the form for n, clamped to [0, NPlurals).
func (r PluralRule) Index(n int) int {
	if r.expr == nil {
		return English.Index(n)
	}
	idx := int(r.expr.eval(int64(n)))
	if idx < 0 || idx >= r.NPlurals {
		return 0
	}
	return idx
}

func (r PluralRule) String() string {
	return r.source
}

// ParsePluralForms parses a Plural-Forms header.
func ParsePluralForms(header string) (PluralRule, error) {
	rule := PluralRule{source: header}

	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return PluralRule{}, fmt.Errorf("plural forms: malformed %q", part)
		}
		switch strings.TrimSpace(key) {
		case "nplurals":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 1 {
				return PluralRule{}, fmt.Errorf("plural forms: invalid nplurals %q", value)
			}
			rule.NPlurals = n
		case "plural":
			expr, err := parseExpr(value)
			if err != nil {
				return PluralRule{}, fmt.Errorf("plural forms: %w", err)
			}
			rule.expr = expr
		}
	}

	if rule.NPlurals == 0 || rule.expr == nil {
		return PluralRule{}, fmt.Errorf("plural forms: nplurals and plural are required in %q", header)
	}
	return rule, nil
}

type node interface {
	eval(n int64) int64
}

type literal int64

func (l literal) eval(int64) int64 { return int64(l) }

type variable struct{}

func (variable) eval(n int64) int64 { return n }

type unary struct {
	op      string
	operand node
}

func (u unary) eval(n int64) int64 {
	v := u.operand.eval(n)
	switch u.op {
	case "!":
		return boolInt(v == 0)
	case "-":
		return -v
	}
	return v
}

type binary struct {
	op          string
	left, right node
}

func (b binary) eval(n int64) int64 {
	switch b.op {
	case "&&":
		return boolInt(b.left.eval(n) != 0 && b.right.eval(n) != 0)
	case "||":
		return boolInt(b.left.eval(n) != 0 || b.right.eval(n) != 0)
	}

	l, r := b.left.eval(n), b.right.eval(n)
	switch b.op {
	case "==":
		return boolInt(l == r)
	case "!=":
		return boolInt(l != r)
	case "<":
		return boolInt(l < r)
	case "<=":
		return boolInt(l <= r)
	case ">":
		return boolInt(l > r)
	case ">=":
		return boolInt(l >= r)
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		if r == 0 {
			return 0
		}
		return l / r
	case "%":
		if r == 0 {
			return 0
		}
		return l % r
	}
	return 0
}

type ternary struct {
	cond, then, otherwise node
}

func (t ternary) eval(n int64) int64 {
	if t.cond.eval(n) != 0 {
		return t.then.eval(n)
	}
	return t.otherwise.eval(n)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// parser is a recursive descent parser over the C subset used by
// Plural-Forms expressions.
type parser struct {
	tokens []string
	pos    int
}

func parseExpr(src string) (node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected %q", p.tokens[p.pos])
	}
	return expr, nil
}

func tokenize(src string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(src); {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c):
			j := i
			for j < len(src) && unicode.IsDigit(rune(src[j])) {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		case c == 'n':
			tokens = append(tokens, "n")
			i++
		default:
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case "==", "!=", "<=", ">=", "&&", "||":
					tokens = append(tokens, two)
					i += 2
					continue
				}
			}
			if strings.ContainsRune("()?:<>!+-*/%", c) {
				tokens = append(tokens, string(c))
				i++
				continue
			}
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return tokens, nil
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(t string) error {
	if got := p.next(); got != t {
		return fmt.Errorf("expected %q, got %q", t, got)
	}
	return nil
}

func (p *parser) ternary() (node, error) {
	cond, err := p.binaryLevel(0)
	if err != nil {
		return nil, err
	}
	if p.peek() != "?" {
		return cond, nil
	}
	p.next()

	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	otherwise, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return ternary{cond: cond, then: then, otherwise: otherwise}, nil
}

// precedence lists binary operators from loosest to tightest binding.
var precedence = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *parser) binaryLevel(level int) (node, error) {
	if level == len(precedence) {
		return p.unary()
	}

	left, err := p.binaryLevel(level + 1)
	if err != nil {
		return nil, err
	}
	for contains(precedence[level], p.peek()) {
		op := p.next()
		right, err := p.binaryLevel(level + 1)
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	switch p.peek() {
	case "!", "-":
		op := p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unary{op: op, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch {
	case t == "n":
		return variable{}, nil
	case t == "(":
		expr, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return expr, nil
	case t != "" && unicode.IsDigit(rune(t[0])):
		v, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, err
		}
		return literal(v), nil
	}
	if t == "" {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q", t)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
