// Package update implements the SPARQL Update executor (spec §4.L):
// each operation runs transactionally on top of a single facade.Batch,
// so concurrent readers see either the pre-update or post-update
// state and never a partial batch.
package update

import (
	"time"

	"github.com/aleksaelezovic/trigo/internal/errs"
	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// nowTick returns the current instant in the store's tick convention:
// nanoseconds since the Unix epoch (spec §3 leaves the resolution to
// the implementation).
func nowTick() int64 { return time.Now().UnixNano() }

// Execute runs one parsed update operation against store and returns
// the number of quads it affected (spec §4.L's per-form affected-count
// rules).
func Execute(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	switch u.Type {
	case parser.UpdateInsertData:
		return insertData(store, owner, u)
	case parser.UpdateDeleteData:
		return deleteData(store, owner, u)
	case parser.UpdateDeleteWhere:
		return deleteWhere(store, owner, u)
	case parser.UpdateModify:
		return modify(store, owner, u)
	case parser.UpdateClear, parser.UpdateDrop:
		return clearOrDrop(store, owner, u)
	case parser.UpdateCreate:
		return 0, nil
	case parser.UpdateCopy:
		return copyGraph(store, owner, u, true)
	case parser.UpdateMove:
		return moveGraph(store, owner, u)
	case parser.UpdateAdd:
		return copyGraph(store, owner, u, false)
	default:
		return 0, errs.Newf(errs.KindSyntax, "unknown update type %v", u.Type)
	}
}

func resolveGroundQuad(src string, prologue *parser.Prologue, tp parser.TriplePattern) (*rdf.Quad, error) {
	s, err := parser.Resolve(tp.Subject, src, prologue)
	if err != nil {
		return nil, err
	}
	p, err := parser.Resolve(tp.Predicate, src, prologue)
	if err != nil {
		return nil, err
	}
	o, err := parser.Resolve(tp.Object, src, prologue)
	if err != nil {
		return nil, err
	}
	g, err := resolveTemplateGraph(src, prologue, tp.Graph)
	if err != nil {
		return nil, err
	}
	return rdf.NewQuad(s, p, o, g), nil
}

func resolveTemplateGraph(src string, prologue *parser.Prologue, g parser.Term) (rdf.Term, error) {
	if g.IsZero() {
		return rdf.NewDefaultGraph(), nil
	}
	return parser.Resolve(g, src, prologue)
}

func insertData(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	batch, err := store.BeginBatch(owner)
	if err != nil {
		return 0, err
	}
	now := nowTick()
	var n int64
	for _, tp := range u.Quads {
		quad, err := resolveGroundQuad(u.Src, u.Prologue, tp)
		if err != nil {
			batch.Abort()
			return 0, err
		}
		if err := batch.Add(quad, now, quadstore.OpenFuture); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func deleteData(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	batch, err := store.BeginBatch(owner)
	if err != nil {
		return 0, err
	}
	now := nowTick()
	var n int64
	for _, tp := range u.Quads {
		quad, err := resolveGroundQuad(u.Src, u.Prologue, tp)
		if err != nil {
			batch.Abort()
			return 0, err
		}
		existed, err := batch.Exists(quad)
		if err != nil {
			batch.Abort()
			return 0, err
		}
		if !existed {
			continue
		}
		if err := batch.Delete(quad, now); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// deleteWhere implements `DELETE WHERE { p }` as `DELETE { p } WHERE {
// p }` (spec §4.L): p itself, bound against the store, is both the
// match pattern and the delete template.
func deleteWhere(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	where := &parser.GroupGraphPattern{Type: parser.PatternBasic, Patterns: u.Quads}
	rows, err := executor.EvalWhere(store, owner, u.Src, u.Prologue, where)
	if err != nil {
		return 0, err
	}
	quads, err := instantiateAll(u.Src, u.Prologue, u.Quads, rows, nil)
	if err != nil {
		return 0, err
	}
	return applyDeletes(store, owner, quads)
}

// modify implements `DELETE { d } INSERT { i } WHERE { w }` (spec
// §4.L): bind w, materialise the full binding stream before mutating
// anything, then apply every deletion followed by every insertion
// within one batch.
func modify(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	rows, err := executor.EvalWhere(store, owner, u.Src, u.Prologue, u.Where)
	if err != nil {
		return 0, err
	}
	deletes, err := instantiateAll(u.Src, u.Prologue, u.DeleteTemplate, rows, nil)
	if err != nil {
		return 0, err
	}
	blanks := make(map[string]map[string]*rdf.BlankNode) // per-row blank node scope
	inserts, err := instantiateAll(u.Src, u.Prologue, u.InsertTemplate, rows, blanks)
	if err != nil {
		return 0, err
	}

	batch, err := store.BeginBatch(owner)
	if err != nil {
		return 0, err
	}
	now := nowTick()
	var n int64
	for _, quad := range deletes {
		existed, err := batch.Exists(quad)
		if err != nil {
			batch.Abort()
			return 0, err
		}
		if !existed {
			continue
		}
		if err := batch.Delete(quad, now); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	for _, quad := range inserts {
		if err := batch.Add(quad, now, quadstore.OpenFuture); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// instantiateAll substitutes each row's bindings into template,
// discarding any resulting pattern with an unbound position (the same
// rule CONSTRUCT follows). blankScope, if non-nil, is keyed by a
// synthetic per-row index so a template blank node label resolves to
// one fresh identity per row but the same identity across every
// pattern within that row — callers that do not need fresh blank
// nodes (DELETE templates, whose labels never appear in the store)
// pass nil.
func instantiateAll(src string, prologue *parser.Prologue, template []parser.TriplePattern, rows []*binding.Table, blankScope map[string]map[string]*rdf.BlankNode) ([]*rdf.Quad, error) {
	var out []*rdf.Quad
	for i, row := range rows {
		var rowBlanks map[string]*rdf.BlankNode
		if blankScope != nil {
			key := rowKey(i)
			rowBlanks = blankScope[key]
			if rowBlanks == nil {
				rowBlanks = make(map[string]*rdf.BlankNode)
				blankScope[key] = rowBlanks
			}
		}
		for _, tp := range template {
			quad, ok, err := instantiateOne(src, prologue, tp, row, rowBlanks, rowKey(i))
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, quad)
			}
		}
	}
	return out, nil
}

func rowKey(i int) string {
	// Rows are processed once, in order; the index alone is a stable,
	// collision-free scope key for this call.
	buf := make([]byte, 0, 8)
	for i > 0 || len(buf) == 0 {
		buf = append(buf, byte('0'+i%10))
		i /= 10
	}
	for l, r := 0, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return string(buf)
}

func instantiateOne(src string, prologue *parser.Prologue, tp parser.TriplePattern, row *binding.Table, blanks map[string]*rdf.BlankNode, rowID string) (*rdf.Quad, bool, error) {
	s, ok, err := resolveUpdateTerm(src, prologue, tp.Subject, row, blanks, rowID)
	if err != nil || !ok {
		return nil, false, err
	}
	p, ok, err := resolveUpdateTerm(src, prologue, tp.Predicate, row, blanks, rowID)
	if err != nil || !ok {
		return nil, false, err
	}
	o, ok, err := resolveUpdateTerm(src, prologue, tp.Object, row, blanks, rowID)
	if err != nil || !ok {
		return nil, false, err
	}
	g, err := resolveTemplateGraph(src, prologue, tp.Graph)
	if err != nil {
		return nil, false, err
	}
	return rdf.NewQuad(s, p, o, g), true, nil
}

func resolveUpdateTerm(src string, prologue *parser.Prologue, t parser.Term, row *binding.Table, blanks map[string]*rdf.BlankNode, rowID string) (rdf.Term, bool, error) {
	switch t.Kind {
	case parser.KindVariable:
		name := parser.VarName(t, src)
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
		if blanks == nil {
			term, err := parser.Resolve(t, src, prologue)
			return term, err == nil, err
		}
		label := t.Text(src)
		if bn, ok := blanks[label]; ok {
			return bn, true, nil
		}
		bn := rdf.NewBlankNode(label + "." + rowID)
		blanks[label] = bn
		return bn, true, nil
	default:
		term, err := parser.Resolve(t, src, prologue)
		if err != nil {
			return nil, false, err
		}
		return term, true, nil
	}
}

func applyDeletes(store *facade.Store, owner any, quads []*rdf.Quad) (int64, error) {
	batch, err := store.BeginBatch(owner)
	if err != nil {
		return 0, err
	}
	now := nowTick()
	var n int64
	for _, quad := range quads {
		existed, err := batch.Exists(quad)
		if err != nil {
			batch.Abort()
			return 0, err
		}
		if !existed {
			continue
		}
		if err := batch.Delete(quad, now); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// graphsInScope resolves a CLEAR/DROP target to the concrete graph
// terms it covers: DEFAULT is just the default graph, ALL is the
// default graph plus every named graph the store has seen, NAMED is
// every named graph, and a bare IRI is that one graph.
func graphsInScope(store *facade.Store, owner any, src string, prologue *parser.Prologue, ref parser.GraphRef) ([]rdf.Term, error) {
	switch {
	case ref.Default:
		return []rdf.Term{rdf.NewDefaultGraph()}, nil
	case ref.Named:
		return store.Graphs(owner)
	case ref.All:
		named, err := store.Graphs(owner)
		if err != nil {
			return nil, err
		}
		return append([]rdf.Term{rdf.NewDefaultGraph()}, named...), nil
	default:
		term, err := parser.Resolve(ref.IRI, src, prologue)
		if err != nil {
			return nil, err
		}
		return []rdf.Term{term}, nil
	}
}

func clearOrDrop(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	graphs, err := graphsInScope(store, owner, u.Src, u.Prologue, u.Target)
	if err != nil {
		if u.Silent {
			return 0, nil
		}
		return 0, err
	}
	return clearGraphs(store, owner, graphs)
}

// clearGraphs tombstones every live quad in graphs within a single
// batch, returning the count tombstoned.
func clearGraphs(store *facade.Store, owner any, graphs []rdf.Term) (int64, error) {
	var toDelete []*rdf.Quad
	for _, g := range graphs {
		quads, err := store.QueryCurrent(owner, facade.Pattern{Graph: g})
		if err != nil {
			return 0, err
		}
		for _, tq := range quads {
			toDelete = append(toDelete, tq.Quad)
		}
	}

	batch, err := store.BeginBatch(owner)
	if err != nil {
		return 0, err
	}
	now := nowTick()
	var n int64
	for _, quad := range toDelete {
		if err := batch.Delete(quad, now); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// singleGraphTarget resolves a COPY/MOVE/ADD endpoint, which the
// grammar restricts to DEFAULT or one named IRI (never ALL/NAMED).
func singleGraphTarget(src string, prologue *parser.Prologue, ref parser.GraphRef) (rdf.Term, error) {
	if ref.Default {
		return rdf.NewDefaultGraph(), nil
	}
	return parser.Resolve(ref.IRI, src, prologue)
}

// copyGraph implements COPY (clear=true: dst's prior contents are
// replaced) and ADD (clear=false: inserted alongside dst's existing
// contents), returning the count inserted into dst.
func copyGraph(store *facade.Store, owner any, u *parser.Update, clear bool) (int64, error) {
	src, err := singleGraphTarget(u.Src, u.Prologue, u.Source)
	if err != nil {
		return 0, err
	}
	dst, err := singleGraphTarget(u.Src, u.Prologue, u.Dest)
	if err != nil {
		return 0, err
	}

	srcQuads, err := store.QueryCurrent(owner, facade.Pattern{Graph: src})
	if err != nil {
		return 0, err
	}

	var toDelete []*rdf.Quad
	if clear {
		dstQuads, err := store.QueryCurrent(owner, facade.Pattern{Graph: dst})
		if err != nil {
			return 0, err
		}
		for _, tq := range dstQuads {
			toDelete = append(toDelete, tq.Quad)
		}
	}

	batch, err := store.BeginBatch(owner)
	if err != nil {
		return 0, err
	}
	now := nowTick()
	for _, quad := range toDelete {
		if err := batch.Delete(quad, now); err != nil {
			batch.Abort()
			return 0, err
		}
	}
	var n int64
	for _, tq := range srcQuads {
		q := rdf.NewQuad(tq.Quad.Subject, tq.Quad.Predicate, tq.Quad.Object, dst)
		if err := batch.Add(q, now, quadstore.OpenFuture); err != nil {
			batch.Abort()
			return 0, err
		}
		n++
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// moveGraph implements MOVE src TO dst: COPY then CLEAR src (spec
// §4.L); affected = copied + deleted.
func moveGraph(store *facade.Store, owner any, u *parser.Update) (int64, error) {
	copied, err := copyGraph(store, owner, u, true)
	if err != nil {
		return 0, err
	}
	src, err := singleGraphTarget(u.Src, u.Prologue, u.Source)
	if err != nil {
		return 0, err
	}
	deleted, err := clearGraphs(store, owner, []rdf.Term{src})
	if err != nil {
		return 0, err
	}
	return copied + deleted, nil
}
