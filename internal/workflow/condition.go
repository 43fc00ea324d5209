package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a parsed edge condition, evaluated against run state via the
// supplied lookup. Conditions are a constrained interpreter, not a
// scripting language: comparisons over state values plus boolean
// combinators. A comparison whose key is missing evaluates false.
type Expr interface {
	Eval(get func(key string) (string, bool)) bool
}

// ParseCondition parses a condition expression into a reusable AST.
// Grammar:
//
//	expr   := or
//	or     := and { "||" and }
//	and    := unary { "&&" unary }
//	unary  := "!" unary | "(" expr ")" | cmp | key
//	cmp    := key ("==" | "!=" | "<" | "<=" | ">" | ">=") value
//
// A bare key is shorthand for `key == "true"`. Values may be quoted
// strings, numbers, or bare words. Ordered comparisons require both
// sides to parse as numbers; otherwise they evaluate false. Equality
// compares numerically when both sides are numeric, else as strings.
func ParseCondition(input string) (Expr, error) {
	p := &condParser{tokens: tokenize(input)}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse condition %q: %w", input, err)
	}
	if !p.done() {
		return nil, fmt.Errorf("parse condition %q: unexpected %q", input, p.peek().text)
	}
	return expr, nil
}

// EvalCondition parses and evaluates in one step. Engine traversal uses
// the cached per-edge AST instead; this is for one-off callers.
func EvalCondition(input string, get func(string) (string, bool)) (bool, error) {
	expr, err := ParseCondition(input)
	if err != nil {
		return false, err
	}
	return expr.Eval(get), nil
}

type orExpr struct{ left, right Expr }

func (e orExpr) Eval(get func(string) (string, bool)) bool {
	return e.left.Eval(get) || e.right.Eval(get)
}

type andExpr struct{ left, right Expr }

func (e andExpr) Eval(get func(string) (string, bool)) bool {
	return e.left.Eval(get) && e.right.Eval(get)
}

type notExpr struct{ inner Expr }

func (e notExpr) Eval(get func(string) (string, bool)) bool {
	return !e.inner.Eval(get)
}

type cmpExpr struct {
	key string
	op  string
	val string
}

func (e cmpExpr) Eval(get func(string) (string, bool)) bool {
	actual, ok := get(e.key)
	if !ok {
		// Missing key: the comparison is false, not an error.
		return false
	}

	lnum, lerr := strconv.ParseFloat(actual, 64)
	rnum, rerr := strconv.ParseFloat(e.val, 64)
	numeric := lerr == nil && rerr == nil

	switch e.op {
	case "==":
		if numeric {
			return lnum == rnum
		}
		return actual == e.val
	case "!=":
		if numeric {
			return lnum != rnum
		}
		return actual != e.val
	case "<":
		return numeric && lnum < rnum
	case "<=":
		return numeric && lnum <= rnum
	case ">":
		return numeric && lnum > rnum
	case ">=":
		return numeric && lnum >= rnum
	default:
		return false
	}
}

// Lexer

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenWord
	tokenOp
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) []token {
	var tokens []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")"})
			i++
		case strings.HasPrefix(input[i:], "&&") || strings.HasPrefix(input[i:], "||") ||
			strings.HasPrefix(input[i:], "==") || strings.HasPrefix(input[i:], "!=") ||
			strings.HasPrefix(input[i:], "<=") || strings.HasPrefix(input[i:], ">="):
			tokens = append(tokens, token{tokenOp, input[i : i+2]})
			i += 2
		case c == '<' || c == '>' || c == '!':
			tokens = append(tokens, token{tokenOp, string(c)})
			i++
		case c == '"' || c == '\'':
			quote := byte(c)
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			tokens = append(tokens, token{tokenWord, input[i+1 : min(j, len(input))]})
			i = j + 1
		default:
			j := i
			for j < len(input) && !strings.ContainsRune(" \t()<>=!&|\"'", rune(input[j])) {
				j++
			}
			if j == i {
				// Stray operator character; surfaces as a parse error.
				tokens = append(tokens, token{tokenOp, string(input[i])})
				i++
				continue
			}
			tokens = append(tokens, token{tokenWord, input[i:j]})
			i = j
		}
	}
	return append(tokens, token{kind: tokenEOF})
}

// Parser

type condParser struct {
	tokens []token
	pos    int
}

func (p *condParser) peek() token { return p.tokens[p.pos] }

func (p *condParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *condParser) done() bool { return p.peek().kind == tokenEOF }

func (p *condParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && p.peek().text == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && p.peek().text == "&&" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andExpr{left, right}
	}
	return left, nil
}

func (p *condParser) parseUnary() (Expr, error) {
	t := p.peek()
	if t.kind == tokenOp && t.text == "!" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	}
	if t.kind == tokenLParen {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, fmt.Errorf("expected ')'")
		}
		p.next()
		return expr, nil
	}
	return p.parseComparison()
}

func (p *condParser) parseComparison() (Expr, error) {
	t := p.next()
	if t.kind != tokenWord {
		return nil, fmt.Errorf("expected state key, got %q", t.text)
	}
	key := t.text

	op := p.peek()
	if op.kind != tokenOp || !isComparisonOp(op.text) {
		// Bare key: shorthand for key == "true".
		return cmpExpr{key: key, op: "==", val: "true"}, nil
	}
	p.next()

	val := p.next()
	if val.kind != tokenWord {
		return nil, fmt.Errorf("expected value after %q", op.text)
	}
	return cmpExpr{key: key, op: op.text, val: val.text}, nil
}

func isComparisonOp(s string) bool {
	switch s {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	default:
		return false
	}
}
