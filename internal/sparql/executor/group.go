package executor

import (
	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// evalGroup evaluates one WHERE-tree node against rows (the solutions
// produced so far, one per "outer" binding) within the given dataset
// scope (graphs), and returns the extended solutions. graphs is nil
// only when the pattern's own bound graph decides scope (not used at
// top level, where the default dataset always supplies a concrete
// slice).
func (ctx *Context) evalGroup(g *parser.GroupGraphPattern, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	switch g.Type {
	case parser.PatternOptional:
		return ctx.evalOptional(g, rows, graphs)
	case parser.PatternUnion:
		return ctx.evalUnion(g, rows, graphs)
	case parser.PatternGraph:
		return ctx.evalGraphBlock(g, rows)
	case parser.PatternMinus:
		return ctx.evalMinus(g, rows, graphs)
	case parser.PatternBind:
		return ctx.evalBind(g, rows)
	case parser.PatternValues:
		return ctx.evalValues(g, rows)
	case parser.PatternSubSelect:
		return ctx.evalSubSelect(g, rows, graphs)
	default: // PatternBasic, PatternGroup
		return ctx.evalBasicGroup(g, rows, graphs)
	}
}

// evalBasicGroup runs a plain `{ ... }` block: its own BGP, then each
// child (OPTIONAL/UNION/GRAPH/MINUS/BIND/VALUES/subquery) threaded in
// document order, then its FILTERs.
func (ctx *Context) evalBasicGroup(g *parser.GroupGraphPattern, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	rows, err := evalBasicPatterns(ctx, g.Patterns, graphs, rows)
	if err != nil {
		return nil, err
	}
	for _, child := range g.Children {
		if len(rows) == 0 {
			break
		}
		rows, err = ctx.evalGroup(child, rows, graphs)
		if err != nil {
			return nil, err
		}
	}
	return ctx.applyFilters(g.Filters, rows, graphs)
}

func (ctx *Context) applyFilters(filters []*parser.Expr, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	if len(filters) == 0 {
		return rows, nil
	}
	var out []*binding.Table
	for _, row := range rows {
		keep := true
		for _, expr := range filters {
			fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: row, Exists: ctx.existsFunc(graphs)}
			v, err := filter.Eval(fctx, expr)
			if err != nil || !filter.EBV(v) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

// existsFunc builds the FILTER EXISTS/NOT EXISTS callback: re-evaluate
// pat with the current row pre-bound, within the same dataset scope.
func (ctx *Context) existsFunc(graphs []rdf.Term) func(pat *parser.GroupGraphPattern, row *binding.Table) (bool, error) {
	return func(pat *parser.GroupGraphPattern, row *binding.Table) (bool, error) {
		rows, err := ctx.evalGroup(pat, []*binding.Table{row}, graphs)
		if err != nil {
			return false, err
		}
		return len(rows) > 0, nil
	}
}

// evalOptional implements the left join (spec §4.K step 4): try the
// right pattern per left row; extend on a match, else keep the left
// row unchanged.
func (ctx *Context) evalOptional(g *parser.GroupGraphPattern, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	var out []*binding.Table
	for _, row := range rows {
		matches, err := ctx.evalBasicGroup(g, []*binding.Table{row}, graphs)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			out = append(out, matches...)
		} else {
			out = append(out, row)
		}
	}
	return out, nil
}

// evalUnion concatenates every branch's output per left row (spec
// §4.K step 5); unbound variables in one branch simply stay unbound
// in that branch's rows.
func (ctx *Context) evalUnion(g *parser.GroupGraphPattern, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	var out []*binding.Table
	for _, row := range rows {
		for _, branch := range g.Children {
			matches, err := ctx.evalGroup(branch, []*binding.Table{row}, graphs)
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
		}
	}
	return out, nil
}

// evalGraphBlock implements GRAPH scoping (spec §4.K step 2): a
// constant IRI restricts the subtree to that one graph; a variable
// iterates every candidate named graph, binding it per candidate.
func (ctx *Context) evalGraphBlock(g *parser.GroupGraphPattern, rows []*binding.Table) ([]*binding.Table, error) {
	if g.Graph.Kind != parser.KindVariable {
		iri, err := parser.Resolve(g.Graph, ctx.Src, ctx.Prologue)
		if err != nil {
			return nil, err
		}
		sub := *g
		sub.Type = parser.PatternBasic
		return ctx.evalBasicGroup(&sub, rows, []rdf.Term{iri})
	}

	varName := parser.VarName(g.Graph, ctx.Src)
	candidates, err := ctx.namedGraphsForIteration()
	if err != nil {
		return nil, err
	}
	sub := *g
	sub.Type = parser.PatternBasic

	var out []*binding.Table
	for _, row := range rows {
		for _, cand := range candidates {
			bound, ok, berr := bindVarConsistent(row, varName, cand)
			if berr != nil {
				return nil, berr
			}
			if !ok {
				continue
			}
			matches, merr := ctx.evalBasicGroup(&sub, []*binding.Table{bound}, []rdf.Term{cand})
			if merr != nil {
				return nil, merr
			}
			out = append(out, matches...)
		}
	}
	return out, nil
}

// evalMinus implements spec §4.K step 6: a left row is excluded iff it
// shares at least one bound variable with the right pattern's own
// variables and some extension of it satisfies the right pattern;
// otherwise MINUS is a no-op for that row.
func (ctx *Context) evalMinus(g *parser.GroupGraphPattern, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	rightVars := ctx.collectVarNames(g)
	var out []*binding.Table
	for _, row := range rows {
		shared := false
		for _, name := range row.Names() {
			if rightVars[name] {
				shared = true
				break
			}
		}
		if !shared {
			out = append(out, row)
			continue
		}
		matches, err := ctx.evalBasicGroup(g, []*binding.Table{row}, graphs)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

// evalBind implements spec §4.K step 9: append the evaluated
// expression's value under the new variable name, discarding the row
// if that variable is already bound, and leaving it unbound (not
// dropping the row) if evaluation errors.
func (ctx *Context) evalBind(g *parser.GroupGraphPattern, rows []*binding.Table) ([]*binding.Table, error) {
	name := parser.VarName(g.BindVar, ctx.Src)
	var out []*binding.Table
	for _, row := range rows {
		if _, ok := row.Lookup(name); ok {
			continue
		}
		fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: row}
		v, err := filter.Eval(fctx, g.BindExpr)
		if err != nil {
			out = append(out, row)
			continue
		}
		cloned := row.Clone()
		cloned.Bind(name, v)
		out = append(out, cloned)
	}
	return out, nil
}

// evalValues implements spec §4.K step 8: multiply rows by the VALUES
// tuples, rejecting a combination where an already-bound variable
// disagrees with the tuple (a nil entry is UNDEF: leaves that
// variable unbound for this tuple rather than binding it).
func (ctx *Context) evalValues(g *parser.GroupGraphPattern, rows []*binding.Table) ([]*binding.Table, error) {
	var out []*binding.Table
	for _, row := range rows {
		for _, tuple := range g.ValuesRows {
			extended := row
			ok := true
			for i, v := range g.ValuesVars {
				if i >= len(tuple) || tuple[i] == nil {
					continue // UNDEF
				}
				name := parser.VarName(v, ctx.Src)
				term, err := parser.Resolve(*tuple[i], ctx.Src, ctx.Prologue)
				if err != nil {
					return nil, err
				}
				var bindOk bool
				extended, bindOk, err = bindVarConsistent(extended, name, term)
				if err != nil {
					return nil, err
				}
				if !bindOk {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, extended)
			}
		}
	}
	return out, nil
}

// evalSubSelect implements spec §4.K step 7: the inner SELECT is
// materialised once (its own independent scope, no access to outer
// bindings), then nested-loop joined against the outer rows on shared
// variable names. Only the inner SELECT's projected variables are
// visible outside.
func (ctx *Context) evalSubSelect(g *parser.GroupGraphPattern, rows []*binding.Table, graphs []rdf.Term) ([]*binding.Table, error) {
	inner, _, err := execSelect(ctx.Store, ctx.Owner, g.SubSelect, graphs, ctx.NamedGraphs)
	if err != nil {
		return nil, err
	}

	var out []*binding.Table
	for _, row := range rows {
		for _, innerRow := range inner {
			extended := row
			ok := true
			for _, name := range innerRow.Names() {
				v, _ := innerRow.Lookup(name)
				term, terr := filter.ToTerm(v)
				if terr != nil {
					continue
				}
				var bindOk bool
				extended, bindOk, err = bindVarConsistent(extended, name, term)
				if err != nil {
					return nil, err
				}
				if !bindOk {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, extended)
			}
		}
	}
	return out, nil
}

// collectVarNames walks a pattern tree collecting every distinguished
// variable name it mentions, used by MINUS to decide whether a row
// shares any variable with the right-hand side.
func (ctx *Context) collectVarNames(g *parser.GroupGraphPattern) map[string]bool {
	out := make(map[string]bool)
	collectTermVar := func(t parser.Term) {
		if t.Kind == parser.KindVariable {
			out[parser.VarName(t, ctx.Src)] = true
		}
	}
	var collectExprVars func(e *parser.Expr)
	collectExprVars = func(e *parser.Expr) {
		if e == nil {
			return
		}
		switch e.Kind {
		case parser.ExprTerm:
			collectTermVar(e.Term)
		case parser.ExprUnary:
			collectExprVars(e.Left)
		case parser.ExprBinary:
			collectExprVars(e.Left)
			collectExprVars(e.Right)
			for _, a := range e.Args {
				collectExprVars(a)
			}
		case parser.ExprCall:
			for _, a := range e.Args {
				collectExprVars(a)
			}
		case parser.ExprExists:
			for name := range ctx.collectVarNames(e.Pattern) {
				out[name] = true
			}
		}
	}
	var walk func(g *parser.GroupGraphPattern)
	walk = func(g *parser.GroupGraphPattern) {
		if g == nil {
			return
		}
		for _, tp := range g.Patterns {
			collectTermVar(tp.Subject)
			collectTermVar(tp.Predicate)
			collectTermVar(tp.Object)
		}
		if g.Type == parser.PatternGraph && g.Graph.Kind == parser.KindVariable {
			collectTermVar(g.Graph)
		}
		if g.Type == parser.PatternBind {
			collectTermVar(g.BindVar)
			collectExprVars(g.BindExpr)
		}
		if g.Type == parser.PatternValues {
			for _, v := range g.ValuesVars {
				collectTermVar(v)
			}
		}
		for _, f := range g.Filters {
			collectExprVars(f)
		}
		for _, c := range g.Children {
			walk(c)
		}
	}
	walk(g)
	return out
}
