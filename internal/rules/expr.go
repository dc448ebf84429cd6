package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The condition grammar is deliberately closed: comparisons and boolean
// connectives over named context variables, nothing else.
//
//	expr    := or
//	or      := and { ("||" | "or") and }
//	and     := not { ("&&" | "and") not }
//	not     := ("!" | "not") not | cmp
//	cmp     := primary [ ("==" | "!=" | "<" | "<=" | ">" | ">=") primary ]
//	primary := number | string | "true" | "false" | ident | "(" expr ")"

// Value is a context variable value: float64, string or bool.
type Value interface{}

// Context supplies named variables to condition evaluation.
type Context map[string]Value

type exprKind int

const (
	exprLiteral exprKind = iota
	exprIdent
	exprUnary
	exprBinary
)

// Expr is a parsed condition node.
type Expr struct {
	kind  exprKind
	value Value  // exprLiteral
	name  string // exprIdent
	op    string // exprUnary, exprBinary
	left  *Expr
	right *Expr
}

// Eval evaluates the expression against ctx. A reference to a variable the
// context does not define is an error, not a panic.
func (e *Expr) Eval(ctx Context) (Value, error) {
	switch e.kind {
	case exprLiteral:
		return e.value, nil

	case exprIdent:
		v, ok := ctx[e.name]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", e.name)
		}
		return v, nil

	case exprUnary:
		v, err := e.left.Eval(ctx)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s requires a boolean operand", e.op)
		}
		return !b, nil

	case exprBinary:
		return e.evalBinary(ctx)
	}
	return nil, fmt.Errorf("invalid expression")
}

// EvalBool evaluates and requires a boolean result.
func (e *Expr) EvalBool(ctx Context) (bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition does not evaluate to a boolean")
	}
	return b, nil
}

func (e *Expr) evalBinary(ctx Context) (Value, error) {
	// Logical operators short-circuit; comparisons evaluate both sides.
	if e.op == "||" || e.op == "&&" {
		lv, err := e.left.Eval(ctx)
		if err != nil {
			return nil, err
		}
		lb, ok := lv.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s requires boolean operands", e.op)
		}
		if e.op == "||" && lb {
			return true, nil
		}
		if e.op == "&&" && !lb {
			return false, nil
		}
		rv, err := e.right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		rb, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s requires boolean operands", e.op)
		}
		return rb, nil
	}

	lv, err := e.left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	rv, err := e.right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return compare(e.op, lv, rv)
}

func compare(op string, lv, rv Value) (Value, error) {
	if lf, lok := toFloat(lv); lok {
		rf, rok := toFloat(rv)
		if !rok {
			return nil, fmt.Errorf("operator %s: mismatched operand types", op)
		}
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}

	// Equality only for strings and booleans.
	switch l := lv.(type) {
	case string:
		r, ok := rv.(string)
		if !ok {
			return nil, fmt.Errorf("operator %s: mismatched operand types", op)
		}
		switch op {
		case "==":
			return l == r, nil
		case "!=":
			return l != r, nil
		}
		return nil, fmt.Errorf("operator %s not defined for strings", op)
	case bool:
		r, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s: mismatched operand types", op)
		}
		switch op {
		case "==":
			return l == r, nil
		case "!=":
			return l != r, nil
		}
		return nil, fmt.Errorf("operator %s not defined for booleans", op)
	}
	return nil, fmt.Errorf("operator %s: unsupported operand type", op)
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// --- Lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil

	case c == '\'' || c == '"':
		quote := c
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			sb.WriteByte(l.src[l.pos])
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("unterminated string at %d", start)
		}
		l.pos++
		return token{kind: tokString, text: sb.String(), pos: start}, nil

	case c >= '0' && c <= '9' || c == '.' || (c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9'):
		l.pos++
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil

	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil

	default:
		for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!"} {
			if strings.HasPrefix(l.src[l.pos:], op) {
				l.pos += len(op)
				return token{kind: tokOp, text: op, pos: start}, nil
			}
		}
		return token{}, fmt.Errorf("unexpected character %q at %d", c, start)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// --- Parser ---

type parser struct {
	lex  lexer
	cur  token
	peek bool
}

// ParseCondition parses a condition string into an Expr. Parse failures mark
// the owning rule as permanently failing; they never crash evaluation.
func ParseCondition(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty condition")
	}
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", p.cur.text, p.cur.pos)
	}
	return expr, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && p.cur.text == "||" || p.cur.kind == tokIdent && p.cur.text == "or" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Expr{kind: exprBinary, op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp && p.cur.text == "&&" || p.cur.kind == tokIdent && p.cur.text == "and" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Expr{kind: exprBinary, op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (*Expr, error) {
	if p.cur.kind == tokOp && p.cur.text == "!" || p.cur.kind == tokIdent && p.cur.text == "not" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Expr{kind: exprUnary, op: "!", left: operand}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (*Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.kind == tokOp {
		switch p.cur.text {
		case "==", "!=", "<", "<=", ">", ">=":
			op := p.cur.text
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return &Expr{kind: exprBinary, op: op, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parsePrimary() (*Expr, error) {
	switch p.cur.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at %d", p.cur.text, p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{kind: exprLiteral, value: f}, nil

	case tokString:
		s := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{kind: exprLiteral, value: s}, nil

	case tokIdent:
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch name {
		case "true":
			return &Expr{kind: exprLiteral, value: true}, nil
		case "false":
			return &Expr{kind: exprLiteral, value: false}, nil
		}
		return &Expr{kind: exprIdent, name: name}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at %d", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, fmt.Errorf("unexpected %q at %d", p.cur.text, p.cur.pos)
}
