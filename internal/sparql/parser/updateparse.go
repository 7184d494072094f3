package parser

import "strings"

// ParseUpdate parses a single SPARQL Update operation (spec §4.L).
// Unlike ParseQuery, a request body may in principle hold several
// ;-separated operations; callers that need to run a request split it
// on top-level `;` themselves (SplitUpdateRequest) and call
// ParseUpdate once per piece; the update executor then applies each
// operation in its own batch.
func ParseUpdate(src string) (*Update, error) {
	p := newParser(src)
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	u, err := p.parseUpdateBody()
	if err != nil {
		return nil, err
	}
	u.Src = src
	u.Prologue = p.prologue
	p.skipWhitespace()
	if p.peek() == ';' {
		p.pos++
		p.skipWhitespace()
	}
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input after update")
	}
	return u, nil
}

func (p *Parser) parseUpdateBody() (*Update, error) {
	switch {
	case p.matchKeyword("INSERT"):
		p.skipWhitespace()
		if p.matchKeyword("DATA") {
			quads, err := p.parseQuadData()
			if err != nil {
				return nil, err
			}
			return &Update{Type: UpdateInsertData, Quads: quads}, nil
		}
		return p.parseModifyAfterInsert()
	case p.matchKeyword("DELETE"):
		return p.parseDelete()
	case p.matchKeyword("WITH"):
		return p.parseModifyWithGraph()
	case p.matchKeyword("CLEAR"):
		return p.parseClearOrDrop(UpdateClear)
	case p.matchKeyword("DROP"):
		return p.parseClearOrDrop(UpdateDrop)
	case p.matchKeyword("CREATE"):
		return p.parseCreate()
	case p.matchKeyword("COPY"):
		return p.parseCopyMoveAdd(UpdateCopy)
	case p.matchKeyword("MOVE"):
		return p.parseCopyMoveAdd(UpdateMove)
	case p.matchKeyword("ADD"):
		return p.parseCopyMoveAdd(UpdateAdd)
	default:
		return nil, p.errorf("expected an update operation")
	}
}

// parseQuadData parses the `{ ... }` block following INSERT/DELETE
// DATA: ground triples, optionally wrapped per-graph in `GRAPH <iri> {
// ... }` blocks.
func (p *Parser) parseQuadData() ([]TriplePattern, error) {
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
			return nil, p.errorf("unterminated quad data block")
		}
		if p.matchKeyword("GRAPH") {
			p.skipWhitespace()
			g, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			pats, err := p.parseTriplesBlock()
			if err != nil {
				return nil, err
			}
			for i := range pats {
				pats[i].Graph = g
			}
			out = append(out, pats...)
			continue
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

// parseModifyAfterInsert handles `INSERT { tmpl } WHERE { ... }`, the
// insert-only half of the general Modify form (an empty DeleteTemplate).
func (p *Parser) parseModifyAfterInsert() (*Update, error) {
	insert, err := p.parseTriplesBlock()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	return &Update{Type: UpdateModify, InsertTemplate: insert, Where: where}, nil
}

// parseDelete handles DELETE DATA, DELETE WHERE, and the
// DELETE {..} [INSERT {..}] WHERE {..} Modify form.
func (p *Parser) parseDelete() (*Update, error) {
	p.skipWhitespace()
	if p.matchKeyword("DATA") {
		quads, err := p.parseQuadData()
		if err != nil {
			return nil, err
		}
		return &Update{Type: UpdateDeleteData, Quads: quads}, nil
	}
	if p.matchKeyword("WHERE") {
		pats, err := p.parseTriplesBlockAllowingGraph()
		if err != nil {
			return nil, err
		}
		return &Update{Type: UpdateDeleteWhere, Quads: pats}, nil
	}
	del, err := p.parseTriplesBlock()
	if err != nil {
		return nil, err
	}
	u := &Update{Type: UpdateModify, DeleteTemplate: del}
	p.skipWhitespace()
	if p.matchKeyword("INSERT") {
		ins, err := p.parseTriplesBlock()
		if err != nil {
			return nil, err
		}
		u.InsertTemplate = ins
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	u.Where = where
	return u, nil
}

// parseModifyWithGraph handles `WITH <iri> DELETE {..} [INSERT {..}]
// WHERE {..}`: the named graph is woven into every unscoped triple in
// the delete/insert templates and the where clause's default dataset.
func (p *Parser) parseModifyWithGraph() (*Update, error) {
	p.skipWhitespace()
	g, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	u, err := p.parseUpdateBody()
	if err != nil {
		return nil, err
	}
	applyDefaultGraph(u.DeleteTemplate, g)
	applyDefaultGraph(u.InsertTemplate, g)
	if u.Where != nil {
		u.Where = &GroupGraphPattern{Type: PatternGraph, Graph: g, Children: []*GroupGraphPattern{u.Where}}
	}
	return u, nil
}

func applyDefaultGraph(pats []TriplePattern, g Term) {
	for i := range pats {
		if pats[i].Graph.IsZero() {
			pats[i].Graph = g
		}
	}
}

// parseTriplesBlockAllowingGraph parses a DELETE WHERE pattern block:
// ground or variable triples, optionally `GRAPH ?g/<iri> { ... }`
// scoped, but (per spec) no FILTER/OPTIONAL.
func (p *Parser) parseTriplesBlockAllowingGraph() ([]TriplePattern, error) {
	return p.parseQuadData()
}

func (p *Parser) parseClearOrDrop(typ UpdateType) (*Update, error) {
	u := &Update{Type: typ}
	p.skipWhitespace()
	if p.matchKeyword("SILENT") {
		u.Silent = true
	}
	ref, err := p.parseGraphRef()
	if err != nil {
		return nil, err
	}
	u.Target = ref
	return u, nil
}

func (p *Parser) parseCreate() (*Update, error) {
	u := &Update{Type: UpdateCreate}
	p.skipWhitespace()
	if p.matchKeyword("SILENT") {
		u.Silent = true
	}
	if err := p.expectKeyword("GRAPH"); err != nil {
		return nil, err
	}
	p.skipWhitespace()
	iri, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	u.Target = GraphRef{IRI: iri}
	return u, nil
}

func (p *Parser) parseCopyMoveAdd(typ UpdateType) (*Update, error) {
	u := &Update{Type: typ}
	p.skipWhitespace()
	if p.matchKeyword("SILENT") {
		u.Silent = true
	}
	src, err := p.parseGraphRefOneSided()
	if err != nil {
		return nil, err
	}
	u.Source = src
	if err := p.expectKeyword("TO"); err != nil {
		return nil, err
	}
	dst, err := p.parseGraphRefOneSided()
	if err != nil {
		return nil, err
	}
	u.Dest = dst
	return u, nil
}

// parseGraphRef parses the target of CLEAR/DROP: DEFAULT, NAMED, ALL,
// or GRAPH <iri>.
func (p *Parser) parseGraphRef() (GraphRef, error) {
	p.skipWhitespace()
	switch {
	case p.matchKeyword("DEFAULT"):
		return GraphRef{Default: true}, nil
	case p.matchKeyword("NAMED"):
		return GraphRef{Named: true}, nil
	case p.matchKeyword("ALL"):
		return GraphRef{All: true}, nil
	case p.matchKeyword("GRAPH"):
		p.skipWhitespace()
		iri, err := p.parseTerm()
		if err != nil {
			return GraphRef{}, err
		}
		return GraphRef{IRI: iri}, nil
	default:
		return GraphRef{}, p.errorf("expected DEFAULT, NAMED, ALL, or GRAPH")
	}
}

// parseGraphRefOneSided parses a COPY/MOVE/ADD endpoint: DEFAULT,
// GRAPH <iri>, or a bare <iri> (GRAPH keyword is optional there).
func (p *Parser) parseGraphRefOneSided() (GraphRef, error) {
	p.skipWhitespace()
	if p.matchKeyword("DEFAULT") {
		return GraphRef{Default: true}, nil
	}
	if p.matchKeyword("GRAPH") {
		p.skipWhitespace()
	}
	iri, err := p.parseTerm()
	if err != nil {
		return GraphRef{}, err
	}
	return GraphRef{IRI: iri}, nil
}

// SplitUpdateRequest splits a SPARQL Update request body on top-level
// `;` separators (ignoring `;` that close a predicate-object list
// inside braces), so a caller can ParseUpdate each operation in turn.
func SplitUpdateRequest(src string) []string {
	var out []string
	depth := 0
	start := 0
	inStr := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inStr != 0:
			if c == '\\' {
				i++
				continue
			}
			if c == inStr {
				inStr = 0
			}
		case c == '"' || c == '\'':
			inStr = c
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == ';' && depth == 0:
			if s := strings.TrimSpace(src[start:i]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(src[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
