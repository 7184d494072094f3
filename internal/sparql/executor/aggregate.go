package executor

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
)

func isAggregateName(name string) bool {
	switch name {
	case "COUNT", "SUM", "MIN", "MAX", "AVG", "GROUP_CONCAT", "SAMPLE":
		return true
	default:
		return false
	}
}

// containsAggregate reports whether expr references an aggregate
// function anywhere in its tree, the trigger (alongside an explicit
// GROUP BY) for running the aggregation stage at all (spec §4.K step
// 11).
func containsAggregate(e *parser.Expr) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case parser.ExprCall:
		if isAggregateName(e.Name) {
			return true
		}
		for _, a := range e.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case parser.ExprBinary:
		if containsAggregate(e.Left) || containsAggregate(e.Right) {
			return true
		}
		for _, a := range e.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case parser.ExprUnary:
		return containsAggregate(e.Left)
	}
	return false
}

func queryHasAggregation(q *parser.Query) bool {
	if len(q.GroupBy) > 0 {
		return true
	}
	for _, p := range q.Projection {
		if p.Expr != nil && containsAggregate(p.Expr) {
			return true
		}
	}
	for _, h := range q.Having {
		if containsAggregate(h) {
			return true
		}
	}
	return false
}

// group is one GROUP BY partition: a representative row (the first
// member, supplying non-aggregate/group-key variable values) plus
// every member row (the aggregate functions' domain).
type group struct {
	rep     *binding.Table
	members []*binding.Table
}

// partitionGroups implements spec §4.K step 11's grouping: partition
// by the GROUP BY key tuple, or a single implicit group covering every
// row (even zero rows — COUNT(*) over an empty pattern is still 0)
// when aggregation runs with no explicit GROUP BY.
func (ctx *Context) partitionGroups(q *parser.Query, rows []*binding.Table) ([]*group, error) {
	if len(q.GroupBy) == 0 {
		rep := binding.New()
		if len(rows) > 0 {
			rep = rows[0]
		}
		return []*group{{rep: rep, members: rows}}, nil
	}

	keys := make([]string, 0)
	byKey := make(map[string]*group)
	for _, row := range rows {
		var sb strings.Builder
		for _, e := range q.GroupBy {
			fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: row, Exists: ctx.existsFunc(nil)}
			v, err := filter.Eval(fctx, e)
			if err != nil {
				v = binding.Value{Kind: binding.Unbound}
			}
			sb.WriteString(valueKey(v))
			sb.WriteByte(0)
		}
		key := sb.String()
		g, ok := byKey[key]
		if !ok {
			g = &group{rep: row}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.members = append(g.members, row)
	}
	out := make([]*group, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}

func valueKey(v binding.Value) string {
	switch v.Kind {
	case binding.Unbound:
		return "U"
	case binding.Integer:
		return fmt.Sprintf("I%d", v.Int)
	case binding.Double:
		return fmt.Sprintf("D%g", v.Double)
	case binding.Boolean:
		return fmt.Sprintf("B%t", v.Bool)
	case binding.IRI:
		return "R" + string(v.Str)
	case binding.BlankNode:
		return "N" + string(v.Str)
	default:
		return "S" + v.Lang + "\x1f" + v.Datatype + "\x1f" + string(v.Str)
	}
}

// evalWithAggregates evaluates e against one group: aggregate calls
// are computed over the whole group's member rows; everything else
// evaluates against the group's representative row exactly as an
// ordinary FILTER/BIND expression would.
func evalWithAggregates(ctx *Context, e *parser.Expr, g *group) (binding.Value, error) {
	if e == nil {
		return binding.Value{}, fmt.Errorf("nil expression")
	}
	if e.Kind == parser.ExprCall && isAggregateName(e.Name) {
		return computeAggregate(ctx, e, g.members)
	}
	switch e.Kind {
	case parser.ExprBinary:
		switch e.Op {
		case parser.OpOr:
			left, lerr := evalWithAggregates(ctx, e.Left, g)
			if lerr == nil && filter.EBV(left) {
				return filter.BoolValue(true), nil
			}
			right, rerr := evalWithAggregates(ctx, e.Right, g)
			if rerr == nil && filter.EBV(right) {
				return filter.BoolValue(true), nil
			}
			if lerr != nil {
				return binding.Value{}, lerr
			}
			if rerr != nil {
				return binding.Value{}, rerr
			}
			return filter.BoolValue(false), nil
		case parser.OpAnd:
			left, err := evalWithAggregates(ctx, e.Left, g)
			if err != nil {
				return binding.Value{}, err
			}
			if !filter.EBV(left) {
				return filter.BoolValue(false), nil
			}
			right, err := evalWithAggregates(ctx, e.Right, g)
			if err != nil {
				return binding.Value{}, err
			}
			return filter.BoolValue(filter.EBV(right)), nil
		case parser.OpIn, parser.OpNotIn:
			left, err := evalWithAggregates(ctx, e.Left, g)
			if err != nil {
				return binding.Value{}, err
			}
			found := false
			for _, a := range e.Args {
				v, aerr := evalWithAggregates(ctx, a, g)
				if aerr != nil {
					continue
				}
				if filter.ValuesEqual(left, v) {
					found = true
					break
				}
			}
			if e.Op == parser.OpNotIn {
				found = !found
			}
			return filter.BoolValue(found), nil
		default:
			left, err := evalWithAggregates(ctx, e.Left, g)
			if err != nil {
				return binding.Value{}, err
			}
			right, err := evalWithAggregates(ctx, e.Right, g)
			if err != nil {
				return binding.Value{}, err
			}
			return filter.ApplyBinary(e.Op, left, right)
		}
	case parser.ExprUnary:
		v, err := evalWithAggregates(ctx, e.Left, g)
		if err != nil {
			return binding.Value{}, err
		}
		return filter.ApplyUnary(e.Op, v)
	default:
		fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: g.rep, Exists: ctx.existsFunc(nil)}
		return filter.Eval(fctx, e)
	}
}

// computeAggregate evaluates one aggregate function call over a
// group's member rows.
func computeAggregate(ctx *Context, call *parser.Expr, members []*binding.Table) (binding.Value, error) {
	values := func() []binding.Value {
		var out []binding.Value
		seen := make(map[string]bool)
		for _, row := range members {
			if call.Star {
				out = append(out, binding.Value{Kind: binding.Boolean, Bool: true})
				continue
			}
			if len(call.Args) == 0 {
				continue
			}
			fctx := &filter.Context{Src: ctx.Src, Prologue: ctx.Prologue, Row: row, Exists: ctx.existsFunc(nil)}
			v, err := filter.Eval(fctx, call.Args[0])
			if err != nil || v.Kind == binding.Unbound {
				continue
			}
			if call.Distinct {
				k := valueKey(v)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			out = append(out, v)
		}
		return out
	}

	switch call.Name {
	case "COUNT":
		if call.Star {
			if call.Distinct {
				// DISTINCT * has no well-defined per-column identity;
				// count distinct whole rows by their full binding set.
				seen := make(map[string]bool)
				n := 0
				for _, row := range members {
					var sb strings.Builder
					for _, name := range row.Names() {
						v, _ := row.Lookup(name)
						sb.WriteString(name)
						sb.WriteByte('=')
						sb.WriteString(valueKey(v))
						sb.WriteByte(';')
					}
					k := sb.String()
					if !seen[k] {
						seen[k] = true
						n++
					}
				}
				return binding.Value{Kind: binding.Integer, Int: int64(n)}, nil
			}
			return binding.Value{Kind: binding.Integer, Int: int64(len(members))}, nil
		}
		return binding.Value{Kind: binding.Integer, Int: int64(len(values()))}, nil
	case "SUM":
		var sum float64
		allInt := true
		for _, v := range values() {
			n, isInt, ok := numericValue(v)
			if !ok {
				continue
			}
			sum += n
			allInt = allInt && isInt
		}
		if allInt {
			return binding.Value{Kind: binding.Integer, Int: int64(sum)}, nil
		}
		return binding.Value{Kind: binding.Double, Double: sum}, nil
	case "AVG":
		vs := values()
		if len(vs) == 0 {
			return binding.Value{Kind: binding.Integer, Int: 0}, nil
		}
		var sum float64
		for _, v := range vs {
			n, _, ok := numericValue(v)
			if ok {
				sum += n
			}
		}
		return binding.Value{Kind: binding.Double, Double: sum / float64(len(vs))}, nil
	case "MIN":
		vs := values()
		if len(vs) == 0 {
			return binding.Value{Kind: binding.Unbound}, nil
		}
		best := vs[0]
		for _, v := range vs[1:] {
			if aggCompare(v, best) < 0 {
				best = v
			}
		}
		return best, nil
	case "MAX":
		vs := values()
		if len(vs) == 0 {
			return binding.Value{Kind: binding.Unbound}, nil
		}
		best := vs[0]
		for _, v := range vs[1:] {
			if aggCompare(v, best) > 0 {
				best = v
			}
		}
		return best, nil
	case "SAMPLE":
		vs := values()
		if len(vs) == 0 {
			return binding.Value{Kind: binding.Unbound}, nil
		}
		return vs[0], nil
	case "GROUP_CONCAT":
		sep := " "
		if call.HasSeparator {
			sep = call.Separator
		}
		var parts []string
		for _, v := range values() {
			parts = append(parts, lexicalFormOf(v))
		}
		return binding.Value{Kind: binding.String, Str: []byte(strings.Join(parts, sep))}, nil
	default:
		return binding.Value{}, fmt.Errorf("unknown aggregate %q", call.Name)
	}
}

func numericValue(v binding.Value) (value float64, isInt bool, ok bool) {
	switch v.Kind {
	case binding.Integer:
		return float64(v.Int), true, true
	case binding.Double:
		return v.Double, false, true
	default:
		return 0, false, false
	}
}

// aggCompare orders two values for MIN/MAX: numeric promotion first,
// else lexicographic on the lexical form.
func aggCompare(a, b binding.Value) int {
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
	as, bs := lexicalFormOf(a), lexicalFormOf(b)
	return strings.Compare(as, bs)
}

func lexicalFormOf(v binding.Value) string {
	switch v.Kind {
	case binding.String, binding.IRI, binding.BlankNode:
		return string(v.Str)
	case binding.Integer:
		return fmt.Sprintf("%d", v.Int)
	case binding.Double:
		return fmt.Sprintf("%g", v.Double)
	case binding.Boolean:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}
