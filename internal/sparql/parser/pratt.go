package parser

import (
	"strings"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// parseExpr parses a full expression, following spec §4.J's operator
// precedence (lowest to highest): OR, AND, comparison, additive,
// multiplicative, unary, then IN/NOT IN and function calls bind
// tightest as part of the primary/postfix grammar.
func (p *Parser) parseExpr() (*Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if p.peek() == '|' && p.peekAt(1) == '|' {
			p.pos += 2
			right, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			left = binary(OpOr, left, right)
			continue
		}
		if p.matchKeyword("OR") {
			right, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			left = binary(OpOr, left, right)
			continue
		}
		return left, nil
	}
}

func (p *Parser) parseAnd() (*Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if p.peek() == '&' && p.peekAt(1) == '&' {
			p.pos += 2
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = binary(OpAnd, left, right)
			continue
		}
		if p.matchKeyword("AND") {
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = binary(OpAnd, left, right)
			continue
		}
		return left, nil
	}
}

// parseComparison handles a single (non-chaining) relational operator.
// IN/NOT IN are not handled here: parseUnary attaches them to the
// primary operand they follow.
func (p *Parser) parseComparison() (*Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	op, ok := p.matchCompareOp()
	if ok {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *Parser) matchCompareOp() (Op, bool) {
	c := p.peek()
	switch c {
	case '=':
		p.pos++
		return OpEq, true
	case '!':
		if p.peekAt(1) == '=' {
			p.pos += 2
			return OpNeq, true
		}
		return 0, false
	case '<':
		if p.peekAt(1) == '=' {
			p.pos += 2
			return OpLe, true
		}
		p.pos++
		return OpLt, true
	case '>':
		if p.peekAt(1) == '=' {
			p.pos += 2
			return OpGe, true
		}
		p.pos++
		return OpGt, true
	}
	return 0, false
}

// parseInSuffix recognizes `expr IN (...)` / `expr NOT IN (...)`
// attached to an already-parsed operand.
func (p *Parser) parseInSuffix(left *Expr) (*Expr, error) {
	p.skipWhitespace()
	save := p.pos
	not := false
	if p.matchKeyword("NOT") {
		p.skipWhitespace()
		if !p.peekKeyword("IN") {
			p.pos = save
			return left, nil
		}
		not = true
	}
	if !p.matchKeyword("IN") {
		p.pos = save
		return left, nil
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	args, err := p.parseExprList(')')
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	op := OpIn
	if not {
		op = OpNotIn
	}
	return &Expr{Kind: ExprBinary, Op: op, Left: left, Args: args}, nil
}

func (p *Parser) parseAdditive() (*Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		c := p.peek()
		if c != '+' && c != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if c == '+' {
			left = binary(OpAdd, left, right)
		} else {
			left = binary(OpSub, left, right)
		}
	}
}

func (p *Parser) parseMultiplicative() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		c := p.peek()
		if c != '*' && c != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if c == '*' {
			left = binary(OpMul, left, right)
		} else {
			left = binary(OpDiv, left, right)
		}
	}
}

func (p *Parser) parseUnary() (*Expr, error) {
	p.skipWhitespace()
	switch p.peek() {
	case '!':
		p.pos++
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary(OpNot, e), nil
	case '-', '+':
		if next := p.peekAt(1); next < '0' || next > '9' {
			op := OpUnaryMinus
			if p.peek() == '+' {
				op = OpUnaryPlus
			}
			p.pos++
			e, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return unary(op, e), nil
		}
	}
	if p.matchKeyword("NOT") {
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary(OpNot, e), nil
	}
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseInSuffix(e)
}

func (p *Parser) parsePrimary() (*Expr, error) {
	p.skipWhitespace()
	if p.eof() {
		return nil, p.errorf("unexpected end of input in expression")
	}
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return e, nil
	case c == '?' || c == '$':
		t, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	case c == '<':
		t, err := p.parseIRIref()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	case c == '"' || c == '\'':
		t, err := p.parseQuotedLiteral()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	case c == '_':
		t, err := p.parseBlankNode()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.':
		t, err := p.parseNumericLiteral()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	case p.matchAhead("true") || p.matchAhead("false"):
		t, err := p.parseBooleanLiteral()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	case isPNPrefixStart(c):
		return p.parseIdentOrPrefixedName()
	default:
		return nil, p.errorf("unexpected character %q in expression", c)
	}
}

// parseIdentOrPrefixedName disambiguates a bare built-in function call
// (`STR(...)`, `COUNT(...)`) from a prefixed-name IRI constant
// (`foaf:knows`) sharing the same lookahead character, by scanning the
// word and checking what immediately follows it.
func (p *Parser) parseIdentOrPrefixedName() (*Expr, error) {
	start := p.pos
	for !p.eof() && isWordChar(p.peek()) {
		p.pos++
	}
	word := p.src[start:p.pos]
	if word == "a" && p.peek() != ':' {
		return termExpr(Term{Kind: KindIRI, Start: int32(start), Length: int32(p.pos - start)}), nil
	}
	if p.peek() == ':' {
		p.pos = start
		t, err := p.parsePrefixedNameOrA()
		if err != nil {
			return nil, err
		}
		return termExpr(t), nil
	}
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, p.errorf("unknown identifier %q in expression", word)
	}
	return p.parseFunctionCall(strings.ToUpper(word))
}

func (p *Parser) parseFunctionCall(name string) (*Expr, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	call := &Expr{Kind: ExprCall, Name: name}
	p.skipWhitespace()
	if p.matchKeyword("DISTINCT") {
		call.Distinct = true
	}
	p.skipWhitespace()
	if p.peek() == '*' {
		p.pos++
		call.Star = true
		p.skipWhitespace()
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return call, nil
	}
	if p.peek() == ')' {
		p.pos++
		return call, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, e)
		p.skipWhitespace()
		if p.peek() == ';' {
			p.pos++
			p.skipWhitespace()
			if p.matchKeyword("SEPARATOR") {
				p.skipWhitespace()
				if err := p.expect('='); err != nil {
					return nil, err
				}
				p.skipWhitespace()
				t, err := p.parseQuotedLiteral()
				if err != nil {
					return nil, err
				}
				lit, err := Resolve(t, p.src, p.prologue)
				if err != nil {
					return nil, err
				}
				if l, ok := lit.(*rdf.Literal); ok {
					call.Separator = l.Value
				}
				call.HasSeparator = true
			}
			p.skipWhitespace()
			break
		}
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return call, nil
}

// parseExprList parses a comma-separated list of expressions up to
// (but not consuming) the closing byte.
func (p *Parser) parseExprList(closing byte) ([]*Expr, error) {
	var args []*Expr
	p.skipWhitespace()
	if p.peek() == closing {
		return args, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		p.skipWhitespace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	return args, nil
}
