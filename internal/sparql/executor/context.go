// Package executor implements the SPARQL query executor (spec §4.K): a
// pipeline of pull-style stages, here materialising a row slice at each
// stage rather than a true iterator chain, that walks a parsed Query's
// WHERE tree against a facade.Store and produces solution bindings.
package executor

import (
	"github.com/aleksaelezovic/trigo/internal/errs"
	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Context carries everything a query execution needs beyond the plan
// tree itself. It is built once per top-level Execute/Ask/Construct
// call and threaded read-only through every stage; dataset scope
// (which graphs a BGP scan ranges over) is passed explicitly as a
// graphs slice rather than stored here, since it changes per GRAPH
// block and subqueries need their own.
type Context struct {
	Store    *facade.Store
	Owner    any
	Src      string
	Prologue *parser.Prologue

	// NamedGraphs restricts what `GRAPH ?g` ranges over, set from a
	// query's FROM NAMED clauses. Nil means unrestricted: every
	// distinct named graph the store has ever seen.
	NamedGraphs []rdf.Term
}

// resolveGraphTerms turns a list of parser Terms (IRIs, from FROM /
// FROM NAMED clauses) into concrete rdf.Term graph names.
func resolveGraphTerms(terms []parser.Term, src string, p *parser.Prologue) ([]rdf.Term, error) {
	out := make([]rdf.Term, 0, len(terms))
	for _, t := range terms {
		rt, err := parser.Resolve(t, src, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, nil
}

// namedGraphsForIteration returns the candidate graphs `GRAPH ?g`
// ranges over.
func (ctx *Context) namedGraphsForIteration() ([]rdf.Term, error) {
	if ctx.NamedGraphs != nil {
		return ctx.NamedGraphs, nil
	}
	return ctx.Store.Graphs(ctx.Owner)
}

// resolvePatternTerm classifies one triple-pattern position: a bound
// variable or constant resolves to a concrete rdf.Term (constraining
// the scan); an unbound variable leaves the position open and reports
// its name so the caller can bind it from the scan's results.
func resolvePatternTerm(ctx *Context, t parser.Term, row *binding.Table) (term rdf.Term, name string, needsBind bool, err error) {
	if t.Kind == parser.KindVariable {
		vname := parser.VarName(t, ctx.Src)
		if v, ok := row.Lookup(vname); ok {
			rt, terr := filter.ToTerm(v)
			if terr != nil {
				return nil, "", false, terr
			}
			return rt, vname, false, nil
		}
		return nil, vname, true, nil
	}
	rt, rerr := parser.Resolve(t, ctx.Src, ctx.Prologue)
	if rerr != nil {
		return nil, "", false, queryErr(int(t.Start), "resolve pattern term: %v", rerr)
	}
	return rt, "", false, nil
}

// patternForTriple builds the store-level pattern for one triple
// pattern given the row's current bindings. It returns which
// positions still need a fresh variable bind plus those variables'
// names, for bindTriple to consume once the scan returns matches.
func patternForTriple(ctx *Context, tp parser.TriplePattern, row *binding.Table) (pat facade.Pattern, bindS, bindP, bindO bool, nameS, nameP, nameO string, err error) {
	sTerm, sName, sBind, err := resolvePatternTerm(ctx, tp.Subject, row)
	if err != nil {
		return pat, false, false, false, "", "", "", err
	}
	pTerm, pName, pBind, err := resolvePatternTerm(ctx, tp.Predicate, row)
	if err != nil {
		return pat, false, false, false, "", "", "", err
	}
	oTerm, oName, oBind, err := resolvePatternTerm(ctx, tp.Object, row)
	if err != nil {
		return pat, false, false, false, "", "", "", err
	}
	pat.Subject, pat.Predicate, pat.Object = sTerm, pTerm, oTerm
	return pat, sBind, pBind, oBind, sName, pName, oName, nil
}

// scanPattern runs pat against every graph in graphs (nil graphs means
// the pattern's own Graph field, already set, decides scope) and
// concatenates the results, implementing "default graph is the union
// of named graphs" by scanning each member separately.
func scanPattern(ctx *Context, pat facade.Pattern, graphs []rdf.Term) ([]facade.TemporalQuad, error) {
	if graphs == nil {
		return ctx.Store.QueryCurrent(ctx.Owner, pat)
	}
	var out []facade.TemporalQuad
	for _, g := range graphs {
		p := pat
		p.Graph = g
		quads, err := ctx.Store.QueryCurrent(ctx.Owner, p)
		if err != nil {
			return nil, err
		}
		out = append(out, quads...)
	}
	return out, nil
}

// varBind is one pending (name -> term) binding a matched quad
// contributes to a triple pattern's row.
type varBind struct {
	name string
	term rdf.Term
}

// bindTriple reconciles a matched quad's three positions against the
// pattern's unbound variable names, rejecting the match if a variable
// repeated within this one triple (e.g. `?x p ?x`) resolves to two
// different terms, then returns the row extended with the new binds
// (or the unmodified row if nothing needed binding).
func bindTriple(row *binding.Table, bindS, bindP, bindO bool, nameS, nameP, nameO string, quad *rdf.Quad) (*binding.Table, bool) {
	var pending []varBind
	add := func(needsBind bool, name string, term rdf.Term) bool {
		if !needsBind {
			return true
		}
		for _, pb := range pending {
			if pb.name == name {
				return pb.term.Equals(term)
			}
		}
		pending = append(pending, varBind{name, term})
		return true
	}
	if !add(bindS, nameS, quad.Subject) {
		return nil, false
	}
	if !add(bindP, nameP, quad.Predicate) {
		return nil, false
	}
	if !add(bindO, nameO, quad.Object) {
		return nil, false
	}
	if len(pending) == 0 {
		return row, true
	}
	out := row.Clone()
	for _, pb := range pending {
		out.Bind(pb.name, filter.FromTerm(pb.term))
	}
	return out, true
}

// bindVarConsistent binds name to term in row, or — if name is
// already bound — checks the existing binding agrees, returning ok =
// false on a conflict. Used by VALUES and GRAPH ?g.
func bindVarConsistent(row *binding.Table, name string, term rdf.Term) (*binding.Table, bool, error) {
	if existing, ok := row.Lookup(name); ok {
		existingTerm, err := filter.ToTerm(existing)
		if err != nil {
			return nil, false, err
		}
		return row, existingTerm.Equals(term), nil
	}
	out := row.Clone()
	out.Bind(name, filter.FromTerm(term))
	return out, true, nil
}

// evalBasicPatterns runs a BGP (conjunction of triple patterns) as a
// left-to-right nested-loop join (spec §4.K step 1), scanning each
// pattern over graphs, or over its own Graph when the pattern carries
// one (DELETE WHERE's `GRAPH <iri> { ... }` blocks).
func evalBasicPatterns(ctx *Context, patterns []parser.TriplePattern, graphs []rdf.Term, rows []*binding.Table) ([]*binding.Table, error) {
	for _, tp := range patterns {
		scope := graphs
		if !tp.Graph.IsZero() {
			g, err := parser.Resolve(tp.Graph, ctx.Src, ctx.Prologue)
			if err != nil {
				return nil, err
			}
			scope = []rdf.Term{g}
		}
		var next []*binding.Table
		for _, row := range rows {
			pat, bindS, bindP, bindO, nameS, nameP, nameO, err := patternForTriple(ctx, tp, row)
			if err != nil {
				return nil, err
			}
			quads, err := scanPattern(ctx, pat, scope)
			if err != nil {
				return nil, err
			}
			for _, tq := range quads {
				newRow, ok := bindTriple(row, bindS, bindP, bindO, nameS, nameP, nameO, tq.Quad)
				if ok {
					next = append(next, newRow)
				}
			}
		}
		rows = next
		if len(rows) == 0 {
			return rows, nil
		}
	}
	return rows, nil
}

func queryErr(offset int, format string, args ...any) error {
	return errs.SyntaxAt(offset, format, args...)
}

// EvalWhere evaluates a bare WHERE pattern (no SELECT projection,
// aggregation, or solution modifiers) against the default graph and
// returns every solution with all of its matched variables bound. The
// update executor uses this for DELETE WHERE and the Modify form's
// WHERE clause, where a delete/insert template must see every
// variable the pattern bound, not just a projected subset.
func EvalWhere(store *facade.Store, owner any, src string, prologue *parser.Prologue, where *parser.GroupGraphPattern) ([]*binding.Table, error) {
	ctx := &Context{Store: store, Owner: owner, Src: src, Prologue: prologue}
	graphs := []rdf.Term{rdf.NewDefaultGraph()}
	return ctx.evalGroup(where, []*binding.Table{binding.New()}, graphs)
}
