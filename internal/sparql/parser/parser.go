package parser

// ParseQuery parses a complete SPARQL query (prologue plus a SELECT,
// ASK, or CONSTRUCT form).
func ParseQuery(src string) (*Query, error) {
	p := newParser(src)
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	q, err := p.parseQueryBody()
	if err != nil {
		return nil, err
	}
	q.Src = src
	q.Prologue = p.prologue
	p.skipWhitespace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input")
	}
	return q, nil
}

func (p *Parser) parsePrologue() error {
	for {
		p.skipWhitespace()
		if p.matchKeyword("BASE") {
			p.skipWhitespace()
			iri, err := p.parseIRIref()
			if err != nil {
				return err
			}
			p.prologue.Base = iri.Text(p.src)[1 : iri.Length-1]
			continue
		}
		if p.matchKeyword("PREFIX") {
			name, err := p.parseIdentifier()
			if err != nil {
				// PREFIX : <iri> (empty prefix name) is legal.
				name = ""
			}
			if err := p.expect(':'); err != nil {
				return err
			}
			p.skipWhitespace()
			iri, err := p.parseIRIref()
			if err != nil {
				return err
			}
			lex := iri.Text(p.src)
			p.prologue.Prefixes[name] = lex[1 : len(lex)-1]
			continue
		}
		break
	}
	return nil
}

func (p *Parser) parseQueryBody() (*Query, error) {
	switch {
	case p.matchKeyword("SELECT"):
		return p.parseSelectAfterKeyword()
	case p.matchKeyword("ASK"):
		return p.parseAsk()
	case p.matchKeyword("CONSTRUCT"):
		return p.parseConstruct()
	default:
		return nil, p.errorf("expected SELECT, ASK, or CONSTRUCT")
	}
}

// parseSelectBody is used both for top-level SELECT queries and for
// `{ SELECT ... }` subqueries, where the surrounding braces are
// consumed by the caller.
func (p *Parser) parseSelectBody() (*Query, error) {
	if !p.matchKeyword("SELECT") {
		return nil, p.errorf("expected SELECT")
	}
	return p.parseSelectAfterKeyword()
}

func (p *Parser) parseSelectAfterKeyword() (*Query, error) {
	q := &Query{QueryType: QueryTypeSelect, Prologue: p.prologue, Src: p.src}

	if p.matchKeyword("DISTINCT") {
		q.Distinct = true
	} else {
		p.matchKeyword("REDUCED")
	}

	if err := p.parseProjection(q); err != nil {
		return nil, err
	}

	if err := p.parseDatasetClauses(q); err != nil {
		return nil, err
	}

	p.matchKeyword("WHERE")
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	q.Where = where

	if err := p.parseSolutionModifiers(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *Parser) parseProjection(q *Query) error {
	p.skipWhitespace()
	if p.peek() == '*' {
		p.pos++
		q.Star = true
		return nil
	}
	for {
		p.skipWhitespace()
		if p.peek() == '(' {
			p.pos++
			expr, err := p.parseExpr()
			if err != nil {
				return err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return err
			}
			v, err := p.parseVariable()
			if err != nil {
				return err
			}
			if err := p.expect(')'); err != nil {
				return err
			}
			q.Projection = append(q.Projection, Projected{Expr: expr, Alias: VarName(v, p.src)})
		} else if p.peek() == '?' || p.peek() == '$' {
			v, err := p.parseVariable()
			if err != nil {
				return err
			}
			q.Projection = append(q.Projection, Projected{Var: v})
		} else {
			break
		}
	}
	if len(q.Projection) == 0 && !q.Star {
		return p.errorf("expected a projection (variable list or '*')")
	}
	return nil
}

func (p *Parser) parseDatasetClauses(q *Query) error {
	for p.matchKeyword("FROM") {
		if p.matchKeyword("NAMED") {
			iri, err := p.parseTerm()
			if err != nil {
				return err
			}
			q.FromNamed = append(q.FromNamed, iri)
			continue
		}
		iri, err := p.parseTerm()
		if err != nil {
			return err
		}
		q.From = append(q.From, iri)
	}
	return nil
}

func (p *Parser) parseSolutionModifiers(q *Query) error {
	if p.matchKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			p.skipWhitespace()
			if p.peek() != '?' && p.peek() != '$' && p.peek() != '(' {
				break
			}
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			q.GroupBy = append(q.GroupBy, e)
		}
	}
	if p.matchKeyword("HAVING") {
		for {
			p.skipWhitespace()
			if p.peek() != '(' {
				break
			}
			p.pos++
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			if err := p.expect(')'); err != nil {
				return err
			}
			q.Having = append(q.Having, e)
			p.skipWhitespace()
			if p.peek() != '(' {
				break
			}
		}
	}
	if p.matchKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			p.skipWhitespace()
			desc := false
			if p.matchKeyword("DESC") {
				desc = true
			} else {
				p.matchKeyword("ASC")
			}
			p.skipWhitespace()
			var e *Expr
			var err error
			if p.peek() == '(' {
				p.pos++
				e, err = p.parseExpr()
				if err != nil {
					return err
				}
				if err := p.expect(')'); err != nil {
					return err
				}
			} else if p.peek() == '?' || p.peek() == '$' {
				v, err2 := p.parseVariable()
				if err2 != nil {
					return err2
				}
				e = termExpr(v)
			} else {
				break
			}
			q.OrderBy = append(q.OrderBy, OrderKey{Expr: e, Desc: desc})
		}
	}
	if p.matchKeyword("LIMIT") {
		n, err := p.parseIntegerLiteral()
		if err != nil {
			return err
		}
		q.Limit, q.HasLimit = n, true
	}
	if p.matchKeyword("OFFSET") {
		n, err := p.parseIntegerLiteral()
		if err != nil {
			return err
		}
		q.Offset, q.HasOffset = n, true
	}
	return nil
}

func (p *Parser) parseAsk() (*Query, error) {
	q := &Query{QueryType: QueryTypeAsk, Prologue: p.prologue, Src: p.src}
	if err := p.parseDatasetClauses(q); err != nil {
		return nil, err
	}
	p.matchKeyword("WHERE")
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	q.Where = where
	return q, nil
}

func (p *Parser) parseConstruct() (*Query, error) {
	q := &Query{QueryType: QueryTypeConstruct, Prologue: p.prologue, Src: p.src}

	p.skipWhitespace()
	if p.matchKeyword("WHERE") {
		where, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		q.Where = where
		q.Template = where.Patterns
		if err := p.parseDatasetClauses(q); err != nil {
			return nil, err
		}
		return q, p.parseSolutionModifiers(q)
	}

	tmpl, err := p.parseTriplesBlock()
	if err != nil {
		return nil, err
	}
	q.Template = tmpl

	if err := p.parseDatasetClauses(q); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	q.Where = where
	return q, p.parseSolutionModifiers(q)
}

// parseTriplesBlock parses a `{ triple patterns }` block (the
// CONSTRUCT template), which unlike a WHERE group graph pattern allows
// no FILTER/OPTIONAL/etc., only triples.
func (p *Parser) parseTriplesBlock() ([]TriplePattern, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var out []TriplePattern
	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		if p.eof() {
			return nil, p.errorf("unterminated construct template")
		}
		pats, err := p.parseTriplePattern()
		if err != nil {
			return nil, err
		}
		out = append(out, pats...)
		p.skipWhitespace()
		if p.peek() == '.' {
			p.pos++
		}
	}
	return out, nil
}

func (p *Parser) parseTriplePattern() ([]TriplePattern, error) {
	subj, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	var out []TriplePattern
	for {
		pred, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		for {
			obj, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			out = append(out, TriplePattern{Subject: subj, Predicate: pred, Object: obj})
			p.skipWhitespace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		p.skipWhitespace()
		if p.peek() == ';' {
			p.pos++
			p.skipWhitespace()
			if p.peek() == '.' || p.peek() == '}' || p.peek() == ';' {
				break
			}
			continue
		}
		break
	}
	return out, nil
}

// parseGroupGraphPattern parses a brace-delimited WHERE-clause group,
// including the braces themselves.
func (p *Parser) parseGroupGraphPattern() (*GroupGraphPattern, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peekKeyword("SELECT") {
		sub, err := p.parseSelectBody()
		if err != nil {
			return nil, err
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		return &GroupGraphPattern{Type: PatternSubSelect, SubSelect: sub}, nil
	}

	g := &GroupGraphPattern{Type: PatternBasic}
	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		if p.eof() {
			return nil, p.errorf("unterminated group graph pattern")
		}

		switch {
		case p.matchKeyword("OPTIONAL"):
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			child.Type = PatternOptional
			g.Children = append(g.Children, child)

		case p.matchKeyword("MINUS"):
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			child.Type = PatternMinus
			g.Children = append(g.Children, child)

		case p.matchKeyword("GRAPH"):
			gterm, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			child.Type = PatternGraph
			child.Graph = gterm
			g.Children = append(g.Children, child)

		case p.matchKeyword("FILTER"):
			e, err := p.parseFilterConstraint()
			if err != nil {
				return nil, err
			}
			g.Filters = append(g.Filters, e)

		case p.matchKeyword("BIND"):
			if err := p.expect('('); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return nil, err
			}
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			g.Children = append(g.Children, &GroupGraphPattern{Type: PatternBind, BindExpr: e, BindVar: v})

		case p.matchKeyword("VALUES"):
			child, err := p.parseValuesClause()
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, child)

		case p.peek() == '{':
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			var union *GroupGraphPattern
			for p.matchKeyword("UNION") {
				p.skipWhitespace()
				alt, err := p.parseGroupGraphPattern()
				if err != nil {
					return nil, err
				}
				if union == nil {
					union = &GroupGraphPattern{Type: PatternUnion, Children: []*GroupGraphPattern{child}}
				}
				union.Children = append(union.Children, alt)
			}
			if union != nil {
				g.Children = append(g.Children, union)
			} else {
				g.Children = append(g.Children, child)
			}

		default:
			pats, err := p.parseTriplePattern()
			if err != nil {
				return nil, err
			}
			g.Patterns = append(g.Patterns, pats...)
			p.skipWhitespace()
			if p.peek() == '.' {
				p.pos++
			}
		}
	}
	return g, nil
}

func (p *Parser) parseFilterConstraint() (*Expr, error) {
	p.skipWhitespace()
	if p.matchKeyword("NOT") {
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		pat, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprExists, Pattern: pat, Negated: true}, nil
	}
	if p.matchKeyword("EXISTS") {
		pat, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprExists, Pattern: pat}, nil
	}
	if p.peek() == '(' {
		p.pos++
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return e, nil
	}
	return p.parseExpr()
}

func (p *Parser) parseValuesClause() (*GroupGraphPattern, error) {
	g := &GroupGraphPattern{Type: PatternValues}
	p.skipWhitespace()
	if p.peek() == '(' {
		p.pos++
		for {
			p.skipWhitespace()
			if p.peek() == ')' {
				p.pos++
				break
			}
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			g.ValuesVars = append(g.ValuesVars, v)
		}
	} else {
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		g.ValuesVars = append(g.ValuesVars, v)
	}

	if err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		row, err := p.parseValuesRow(len(g.ValuesVars))
		if err != nil {
			return nil, err
		}
		g.ValuesRows = append(g.ValuesRows, row)
	}
	return g, nil
}

func (p *Parser) parseValuesRow(width int) ([]*Term, error) {
	p.skipWhitespace()
	paren := p.peek() == '('
	if paren {
		p.pos++
	}
	row := make([]*Term, 0, width)
	for {
		p.skipWhitespace()
		if paren && p.peek() == ')' {
			p.pos++
			break
		}
		if p.matchKeyword("UNDEF") {
			row = append(row, nil)
		} else {
			t, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			row = append(row, &t)
		}
		if !paren {
			break
		}
	}
	return row, nil
}
