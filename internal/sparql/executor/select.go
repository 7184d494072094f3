package executor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Result is a materialised SELECT result set: Vars gives the output
// column order (SELECT * uses the variables the first solution bound,
// most recently bound first), Rows holds one Table per solution,
// bound only under the projected names.
type Result struct {
	Vars []string
	Rows []*binding.Table
}

// datasetScope resolves a query's FROM / FROM NAMED clauses against an
// optionally inherited outer scope (used by subqueries, which fall
// back to the enclosing query's dataset when they declare none of
// their own).
func datasetScope(q *parser.Query, inheritGraphs, inheritNamed []rdf.Term) (graphs, named []rdf.Term, err error) {
	named = inheritNamed
	if len(q.FromNamed) > 0 {
		named, err = resolveGraphTerms(q.FromNamed, q.Src, q.Prologue)
		if err != nil {
			return nil, nil, err
		}
	}
	graphs = inheritGraphs
	if len(q.From) > 0 {
		graphs, err = resolveGraphTerms(q.From, q.Src, q.Prologue)
		if err != nil {
			return nil, nil, err
		}
	}
	if graphs == nil {
		graphs = []rdf.Term{rdf.NewDefaultGraph()}
	}
	return graphs, named, nil
}

// Execute runs q (a SELECT, including a subquery) and returns its
// solutions, projected to exactly the variables its own SELECT list
// names. store/owner identify the caller for the store's
// reader-writer lock (spec §5).
func Execute(store *facade.Store, owner any, q *parser.Query) ([]*binding.Table, error) {
	rows, _, err := execSelect(store, owner, q, nil, nil)
	return rows, err
}

func execSelect(store *facade.Store, owner any, q *parser.Query, inheritGraphs, inheritNamed []rdf.Term) ([]*binding.Table, []string, error) {
	graphs, named, err := datasetScope(q, inheritGraphs, inheritNamed)
	if err != nil {
		return nil, nil, err
	}
	ctx := &Context{Store: store, Owner: owner, Src: q.Src, Prologue: q.Prologue, NamedGraphs: named}

	rows, err := ctx.evalGroup(q.Where, []*binding.Table{binding.New()}, graphs)
	if err != nil {
		return nil, nil, err
	}

	var projected []*binding.Table
	var varNames []string
	if queryHasAggregation(q) {
		groups, err := ctx.partitionGroups(q, rows)
		if err != nil {
			return nil, nil, err
		}
		groups, err = ctx.filterHaving(q.Having, groups)
		if err != nil {
			return nil, nil, err
		}
		projected, varNames, err = ctx.projectGroups(q, groups)
		if err != nil {
			return nil, nil, err
		}
	} else {
		projected, varNames, err = ctx.project(q, rows)
		if err != nil {
			return nil, nil, err
		}
	}

	projected = ctx.orderBy(q.OrderBy, projected)
	if q.Distinct {
		projected = distinctRows(projected, varNames)
	}
	projected = sliceOffsetLimit(q, projected)
	return projected, varNames, nil
}

// ExecuteSelect is the public entry point for a top-level SELECT
// query, returning both the projected rows and their column order.
func ExecuteSelect(store *facade.Store, owner any, q *parser.Query) (*Result, error) {
	rows, vars, err := execSelect(store, owner, q, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Vars: vars, Rows: rows}, nil
}

// project implements the non-aggregated projection step: SELECT *
// passes every bound variable through unchanged, while an explicit
// projection list builds a fresh row per solution holding only the
// named/aliased columns (a computed column that errors is left
// unbound rather than aborting the query, the same rule BIND uses).
func (ctx *Context) project(q *parser.Query, rows []*binding.Table) ([]*binding.Table, []string, error) {
	if q.Star {
		return rows, ctx.starVarNames(q.Where, rows), nil
	}

	varNames := make([]string, len(q.Projection))
	out := make([]*binding.Table, 0, len(rows))
	for _, row := range rows {
		nr := binding.New()
		for i, p := range q.Projection {
			name, v := ctx.projectOne(p, row)
			varNames[i] = name
			if v.Kind != binding.Unbound {
				nr.Bind(name, v)
			}
		}
		out = append(out, nr)
	}
	return out, varNames, nil
}

// projectGroups is project's aggregated counterpart: one output row
// per surviving group, its columns computed by evalWithAggregates
// against the whole group rather than filter.Eval against one row.
func (ctx *Context) projectGroups(q *parser.Query, groups []*group) ([]*binding.Table, []string, error) {
	if q.Star {
		out := make([]*binding.Table, len(groups))
		for i, g := range groups {
			out[i] = g.rep
		}
		return out, ctx.starVarNames(q.Where, out), nil
	}

	varNames := make([]string, len(q.Projection))
	out := make([]*binding.Table, 0, len(groups))
	for _, g := range groups {
		nr := binding.New()
		for i, p := range q.Projection {
			name := p.Alias
			var v binding.Value
			if p.Expr != nil {
				ev, err := evalWithAggregates(ctx, p.Expr, g)
				if err == nil {
					v = ev
				}
			} else {
				name = parser.VarName(p.Var, ctx.Src)
				if got, ok := g.rep.Lookup(name); ok {
					v = got
				}
			}
			varNames[i] = name
			if v.Kind != binding.Unbound {
				nr.Bind(name, v)
			}
		}
		out = append(out, nr)
	}
	return out, varNames, nil
}

func (ctx *Context) projectOne(p parser.Projected, row *binding.Table) (string, binding.Value) {
	if p.Expr != nil {
		fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: row, Exists: ctx.existsFunc(nil)}
		v, err := filter.Eval(fctx, p.Expr)
		if err != nil {
			return p.Alias, binding.Value{Kind: binding.Unbound}
		}
		return p.Alias, v
	}
	name := parser.VarName(p.Var, ctx.Src)
	v, _ := row.Lookup(name)
	return name, v
}

// starVarNames picks a deterministic column order for SELECT *: the
// first row's bound names (reverse-bind order, as Table.Names()
// returns them) if there is one, else every variable the pattern tree
// mentions, sorted for determinism over an empty result.
func (ctx *Context) starVarNames(where *parser.GroupGraphPattern, rows []*binding.Table) []string {
	if len(rows) > 0 {
		return rows[0].Names()
	}
	seen := map[string]bool{}
	if where != nil {
		for name := range ctx.collectVarNames(where) {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (ctx *Context) filterHaving(having []*parser.Expr, groups []*group) ([]*group, error) {
	if len(having) == 0 {
		return groups, nil
	}
	var out []*group
	for _, g := range groups {
		keep := true
		for _, h := range having {
			v, err := evalWithAggregates(ctx, h, g)
			if err != nil || !filter.EBV(v) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, g)
		}
	}
	return out, nil
}

// orderBy implements spec §4.K step 12: a stable multi-key sort where
// an unbound key value always sorts before a bound one, and two bound
// values compare numerically when both are numeric, else by their
// rendered lexical form.
func (ctx *Context) orderBy(keys []parser.OrderKey, rows []*binding.Table) []*binding.Table {
	if len(keys) == 0 {
		return rows
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			vi := ctx.orderKeyValue(k.Expr, rows[i])
			vj := ctx.orderKeyValue(k.Expr, rows[j])
			cmp := compareOrderValues(vi, vj)
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return rows
}

func (ctx *Context) orderKeyValue(expr *parser.Expr, row *binding.Table) binding.Value {
	fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: row, Exists: ctx.existsFunc(nil)}
	v, err := filter.Eval(fctx, expr)
	if err != nil {
		return binding.Value{Kind: binding.Unbound}
	}
	return v
}

func compareOrderValues(a, b binding.Value) int {
	if a.Kind == binding.Unbound && b.Kind == binding.Unbound {
		return 0
	}
	if a.Kind == binding.Unbound {
		return -1
	}
	if b.Kind == binding.Unbound {
		return 1
	}
	an, _, aok := numericValue(a)
	bn, _, bok := numericValue(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(lexicalFormOf(a), lexicalFormOf(b))
}

// distinctRows implements spec §4.K step 13: dedup by the full
// projected tuple, preserving first-occurrence order.
func distinctRows(rows []*binding.Table, varNames []string) []*binding.Table {
	seen := make(map[string]bool, len(rows))
	out := make([]*binding.Table, 0, len(rows))
	for _, row := range rows {
		var sb strings.Builder
		for _, name := range varNames {
			v, ok := row.Lookup(name)
			if !ok {
				v = binding.Value{Kind: binding.Unbound}
			}
			sb.WriteString(valueKey(v))
			sb.WriteByte(0)
		}
		k := sb.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// sliceOffsetLimit implements spec §4.K step 14: OFFSET applied
// before LIMIT.
func sliceOffsetLimit(q *parser.Query, rows []*binding.Table) []*binding.Table {
	if q.HasOffset {
		if q.Offset >= int64(len(rows)) {
			return nil
		}
		if q.Offset > 0 {
			rows = rows[q.Offset:]
		}
	}
	if q.HasLimit && q.Limit < int64(len(rows)) {
		if q.Limit < 0 {
			return nil
		}
		rows = rows[:q.Limit]
	}
	return rows
}

// Ask implements spec §4.K's ASK form: steps 1-10 only (no
// aggregation, ordering, dedup, or slicing apply), true iff at least
// one solution exists.
func Ask(store *facade.Store, owner any, q *parser.Query) (bool, error) {
	graphs, named, err := datasetScope(q, nil, nil)
	if err != nil {
		return false, err
	}
	ctx := &Context{Store: store, Owner: owner, Src: q.Src, Prologue: q.Prologue, NamedGraphs: named}
	rows, err := ctx.evalGroup(q.Where, []*binding.Table{binding.New()}, graphs)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Construct implements spec §4.K's CONSTRUCT form: apply steps 1-12
// (no DISTINCT/aggregation apply to a template) to get the binding
// stream, then instantiate the template once per row, discarding any
// pattern with an unbound position and minting a fresh blank node per
// row for every blank node label the template mentions.
func Construct(store *facade.Store, owner any, q *parser.Query) ([]*rdf.Triple, error) {
	graphs, named, err := datasetScope(q, nil, nil)
	if err != nil {
		return nil, err
	}
	ctx := &Context{Store: store, Owner: owner, Src: q.Src, Prologue: q.Prologue, NamedGraphs: named}
	rows, err := ctx.evalGroup(q.Where, []*binding.Table{binding.New()}, graphs)
	if err != nil {
		return nil, err
	}
	rows = ctx.orderBy(q.OrderBy, rows)
	rows = sliceOffsetLimit(q, rows)

	var out []*rdf.Triple
	counter := 0
	for _, row := range rows {
		blanks := make(map[string]*rdf.BlankNode)
		for _, tp := range q.Template {
			s, ok1, err := ctx.constructTerm(tp.Subject, row, blanks, &counter)
			if err != nil {
				return nil, err
			}
			p, ok2, err := ctx.constructTerm(tp.Predicate, row, blanks, &counter)
			if err != nil {
				return nil, err
			}
			o, ok3, err := ctx.constructTerm(tp.Object, row, blanks, &counter)
			if err != nil {
				return nil, err
			}
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			out = append(out, rdf.NewTriple(s, p, o))
		}
	}
	return out, nil
}

// constructTerm resolves one template position against a solution
// row: a variable that is unbound in row makes the whole pattern
// unusable (ok=false, per spec's "discard unbound-position patterns"
// rule); a blank node label is given a fresh identity per row, shared
// across every position in that row referencing the same label.
func (ctx *Context) constructTerm(t parser.Term, row *binding.Table, blanks map[string]*rdf.BlankNode, counter *int) (rdf.Term, bool, error) {
	switch t.Kind {
	case parser.KindVariable:
		name := parser.VarName(t, ctx.Src)
		v, ok := row.Lookup(name)
		if !ok || v.Kind == binding.Unbound {
			return nil, false, nil
		}
		term, err := filter.ToTerm(v)
		if err != nil {
			return nil, false, err
		}
		return term, true, nil
	case parser.KindBlankNode:
		label := t.Text(ctx.Src)
		if bn, ok := blanks[label]; ok {
			return bn, true, nil
		}
		*counter++
		bn := rdf.NewBlankNode(blankLabel(label, *counter))
		blanks[label] = bn
		return bn, true, nil
	default:
		term, err := parser.Resolve(t, ctx.Src, ctx.Prologue)
		if err != nil {
			return nil, false, err
		}
		return term, true, nil
	}
}

// blankLabel mints a fresh, row-unique blank node identity from the
// template's label text plus the query-wide synthesis counter, since
// spec §4.K requires CONSTRUCT to produce a distinct blank node per
// output row even when the template reuses the same label.
func blankLabel(label string, n int) string {
	return strings.TrimPrefix(label, "_:") + "#" + strconv.Itoa(n)
}
