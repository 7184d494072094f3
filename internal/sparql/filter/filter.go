// Package filter implements the Pratt-parsed expression evaluator
// (spec §4.J) that backs FILTER, BIND, HAVING, and ORDER BY. It
// operates directly on binding.Value rather than rdf.Term: the
// binding table already carries typed values, so there is no need to
// round-trip through an allocated RDF term for every variable lookup.
package filter

import (
	"fmt"

	"github.com/aleksaelezovic/trigo/internal/errs"
	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Context carries everything Eval needs beyond the expression tree
// itself: the source text an Expr's Term spans are offsets into, the
// prologue for resolving prefixed names, the current row, and a
// callback for FILTER EXISTS/NOT EXISTS (the executor re-runs a
// pattern against the store restricted to this row's bindings; the
// evaluator itself never touches the store, which keeps this package
// free of an import cycle with the executor).
type Context struct {
	Src      string
	Prologue *parser.Prologue
	Row      *binding.Table
	Exists   func(pat *parser.GroupGraphPattern, row *binding.Table) (bool, error)
}

// Eval evaluates expr against ctx and returns its value. Per SPARQL
// effective-boolean-value rules, most callers do not treat an error
// as fatal: FILTER and BIND drop/unbind on error rather than aborting
// the whole query.
func Eval(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	if expr == nil {
		return binding.Value{}, fmt.Errorf("nil expression")
	}
	switch expr.Kind {
	case parser.ExprTerm:
		return evalTerm(ctx, expr.Term)
	case parser.ExprUnary:
		return evalUnary(ctx, expr)
	case parser.ExprBinary:
		return evalBinary(ctx, expr)
	case parser.ExprCall:
		return evalCall(ctx, expr)
	case parser.ExprExists:
		return evalExists(ctx, expr)
	default:
		return binding.Value{}, fmt.Errorf("unsupported expression kind %v", expr.Kind)
	}
}

func evalTerm(ctx *Context, t parser.Term) (binding.Value, error) {
	if t.Kind == parser.KindVariable {
		name := parser.VarName(t, ctx.Src)
		v, ok := ctx.Row.Lookup(name)
		if !ok {
			return binding.Value{Kind: binding.Unbound}, nil
		}
		return v, nil
	}
	rt, err := parser.Resolve(t, ctx.Src, ctx.Prologue)
	if err != nil {
		return binding.Value{}, err
	}
	return FromTerm(rt), nil
}

// FromTerm converts a resolved rdf.Term into its binding.Value
// representation, classifying literals by their XSD datatype IRI the
// way the atom store's own encoder does.
func FromTerm(t rdf.Term) binding.Value {
	switch v := t.(type) {
	case *rdf.NamedNode:
		return binding.Value{Kind: binding.IRI, Str: []byte(v.IRI)}
	case *rdf.BlankNode:
		return binding.Value{Kind: binding.BlankNode, Str: []byte(v.ID)}
	case *rdf.Literal:
		return fromLiteral(v)
	default:
		return binding.Value{Kind: binding.Unbound}
	}
}

func fromLiteral(l *rdf.Literal) binding.Value {
	if l.Datatype != nil {
		switch l.Datatype.IRI {
		case rdf.XSDInteger.IRI:
			if n, ok := parseInt(l.Value); ok {
				return binding.Value{Kind: binding.Integer, Int: n}
			}
		case rdf.XSDDouble.IRI, rdf.XSDDecimal.IRI:
			if f, ok := parseFloat(l.Value); ok {
				return binding.Value{Kind: binding.Double, Double: f}
			}
		case rdf.XSDBoolean.IRI:
			return binding.Value{Kind: binding.Boolean, Bool: l.Value == "true" || l.Value == "1"}
		}
		return binding.Value{Kind: binding.String, Str: []byte(l.Value), Datatype: l.Datatype.IRI}
	}
	return binding.Value{Kind: binding.String, Str: []byte(l.Value), Lang: l.Language}
}

// ToTerm converts a binding.Value back into an rdf.Term, the
// direction CONSTRUCT and the update executor need when a computed
// (BIND, aggregate) value becomes a quad position.
func ToTerm(v binding.Value) (rdf.Term, error) {
	switch v.Kind {
	case binding.IRI:
		return rdf.NewNamedNode(string(v.Str)), nil
	case binding.BlankNode:
		return rdf.NewBlankNode(string(v.Str)), nil
	case binding.Integer:
		return rdf.NewIntegerLiteral(v.Int), nil
	case binding.Double:
		return rdf.NewDoubleLiteral(v.Double), nil
	case binding.Boolean:
		return rdf.NewBooleanLiteral(v.Bool), nil
	case binding.String:
		switch {
		case v.Lang != "":
			return rdf.NewLiteralWithLanguage(string(v.Str), v.Lang), nil
		case v.Datatype != "":
			return rdf.NewLiteralWithDatatype(string(v.Str), rdf.NewNamedNode(v.Datatype)), nil
		default:
			return rdf.NewLiteral(string(v.Str)), nil
		}
	default:
		return nil, errs.New(errs.KindTypeMismatch, "cannot materialize an unbound value as a term")
	}
}

func evalUnary(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	switch expr.Op {
	case parser.OpNot:
		v, err := Eval(ctx, expr.Left)
		if err != nil {
			return binding.Value{}, err
		}
		return boolValue(!EBV(v)), nil
	case parser.OpUnaryMinus, parser.OpUnaryPlus:
		v, err := Eval(ctx, expr.Left)
		if err != nil {
			return binding.Value{}, err
		}
		n, isInt, ok := numeric(v)
		if !ok {
			return binding.Value{}, errs.New(errs.KindTypeMismatch, "unary +/- on non-numeric operand")
		}
		if expr.Op == parser.OpUnaryPlus {
			return v, nil
		}
		if isInt {
			return binding.Value{Kind: binding.Integer, Int: -v.Int}, nil
		}
		return binding.Value{Kind: binding.Double, Double: -n}, nil
	default:
		return binding.Value{}, fmt.Errorf("unsupported unary operator %v", expr.Op)
	}
}

func evalBinary(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	switch expr.Op {
	case parser.OpOr:
		return evalOr(ctx, expr)
	case parser.OpAnd:
		return evalAnd(ctx, expr)
	case parser.OpIn, parser.OpNotIn:
		return evalIn(ctx, expr)
	}
	left, err := Eval(ctx, expr.Left)
	if err != nil {
		return binding.Value{}, err
	}
	right, err := Eval(ctx, expr.Right)
	if err != nil {
		return binding.Value{}, err
	}
	switch expr.Op {
	case parser.OpEq:
		return boolValue(equalValues(left, right)), nil
	case parser.OpNeq:
		return boolValue(!equalValues(left, right)), nil
	case parser.OpLt, parser.OpGt, parser.OpLe, parser.OpGe:
		return compareOp(expr.Op, left, right), nil
	case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv:
		return arith(expr.Op, left, right)
	default:
		return binding.Value{}, fmt.Errorf("unsupported binary operator %v", expr.Op)
	}
}

func evalOr(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	left, lerr := Eval(ctx, expr.Left)
	if lerr == nil && EBV(left) {
		return boolValue(true), nil
	}
	right, rerr := Eval(ctx, expr.Right)
	if rerr == nil && EBV(right) {
		return boolValue(true), nil
	}
	if lerr != nil {
		return binding.Value{}, lerr
	}
	if rerr != nil {
		return binding.Value{}, rerr
	}
	return boolValue(false), nil
}

func evalAnd(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	left, err := Eval(ctx, expr.Left)
	if err != nil {
		return binding.Value{}, err
	}
	if !EBV(left) {
		return boolValue(false), nil
	}
	right, err := Eval(ctx, expr.Right)
	if err != nil {
		return binding.Value{}, err
	}
	return boolValue(EBV(right)), nil
}

func evalIn(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	left, err := Eval(ctx, expr.Left)
	if err != nil {
		return binding.Value{}, err
	}
	found := false
	for _, a := range expr.Args {
		v, err := Eval(ctx, a)
		if err != nil {
			continue
		}
		if equalValues(left, v) {
			found = true
			break
		}
	}
	if expr.Op == parser.OpNotIn {
		found = !found
	}
	return boolValue(found), nil
}

func evalExists(ctx *Context, expr *parser.Expr) (binding.Value, error) {
	if ctx.Exists == nil {
		return binding.Value{}, fmt.Errorf("EXISTS is not supported in this context")
	}
	ok, err := ctx.Exists(expr.Pattern, ctx.Row)
	if err != nil {
		return binding.Value{}, err
	}
	if expr.Negated {
		ok = !ok
	}
	return boolValue(ok), nil
}

func boolValue(b bool) binding.Value { return binding.Value{Kind: binding.Boolean, Bool: b} }

// ApplyBinary applies a non-short-circuiting binary operator (=, !=,
// comparisons, arithmetic) to two already-evaluated operands. Exported
// for the aggregation stage, which must evaluate projection and HAVING
// expressions that mix aggregate results with ordinary subexpressions
// and so cannot route the whole tree through Eval.
func ApplyBinary(op parser.Op, a, b binding.Value) (binding.Value, error) {
	switch op {
	case parser.OpEq:
		return boolValue(equalValues(a, b)), nil
	case parser.OpNeq:
		return boolValue(!equalValues(a, b)), nil
	case parser.OpLt, parser.OpGt, parser.OpLe, parser.OpGe:
		return compareOp(op, a, b), nil
	case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv:
		return arith(op, a, b)
	default:
		return binding.Value{}, fmt.Errorf("unsupported binary operator %v", op)
	}
}

// ApplyUnary applies !/unary-minus/unary-plus to an already-evaluated
// operand. See ApplyBinary.
func ApplyUnary(op parser.Op, v binding.Value) (binding.Value, error) {
	switch op {
	case parser.OpNot:
		return boolValue(!EBV(v)), nil
	case parser.OpUnaryMinus, parser.OpUnaryPlus:
		n, isInt, ok := numeric(v)
		if !ok {
			return binding.Value{}, errs.New(errs.KindTypeMismatch, "unary +/- on non-numeric operand")
		}
		if op == parser.OpUnaryPlus {
			return v, nil
		}
		if isInt {
			return binding.Value{Kind: binding.Integer, Int: -v.Int}, nil
		}
		return binding.Value{Kind: binding.Double, Double: -n}, nil
	default:
		return binding.Value{}, fmt.Errorf("unsupported unary operator %v", op)
	}
}

// ValuesEqual exposes the `=` equality relation used by IN/NOT IN.
func ValuesEqual(a, b binding.Value) bool { return equalValues(a, b) }

// BoolValue wraps b as a Boolean Value.
func BoolValue(b bool) binding.Value { return boolValue(b) }

// EBV computes the effective boolean value of v per spec §4.J: nonzero
// numeric, non-empty string, true boolean, or any bound IRI/blank
// node; unbound and empty/zero values are false.
func EBV(v binding.Value) bool {
	switch v.Kind {
	case binding.Unbound:
		return false
	case binding.Boolean:
		return v.Bool
	case binding.Integer:
		return v.Int != 0
	case binding.Double:
		return v.Double != 0
	case binding.String:
		return len(v.Str) != 0
	case binding.IRI, binding.BlankNode:
		return true
	default:
		return false
	}
}

func numeric(v binding.Value) (value float64, isInt bool, ok bool) {
	switch v.Kind {
	case binding.Integer:
		return float64(v.Int), true, true
	case binding.Double:
		return v.Double, false, true
	case binding.String:
		if f, ok := parseFloat(string(v.Str)); ok {
			return f, false, true
		}
	}
	return 0, false, false
}

// equalValues implements SPARQL `=`: numeric-aware, falls back to
// exact lexical/tag/datatype identity for non-numeric kinds. Unbound
// operands are simply unequal to anything, including each other.
func equalValues(a, b binding.Value) bool {
	if a.Kind == binding.Unbound || b.Kind == binding.Unbound {
		return false
	}
	an, _, aok := numeric(a)
	bn, _, bok := numeric(b)
	if aok && bok {
		return an == bn
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case binding.Boolean:
		return a.Bool == b.Bool
	case binding.String:
		return string(a.Str) == string(b.Str) && a.Lang == b.Lang && a.Datatype == b.Datatype
	case binding.IRI, binding.BlankNode:
		return string(a.Str) == string(b.Str)
	default:
		return false
	}
}

// sameTerm is stricter than equalValues: no numeric promotion, the
// SPARQL sameTerm() builtin's semantics.
func sameTerm(a, b binding.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case binding.Unbound:
		return true
	case binding.Boolean:
		return a.Bool == b.Bool
	case binding.Integer:
		return a.Int == b.Int
	case binding.Double:
		return a.Double == b.Double
	case binding.String:
		return string(a.Str) == string(b.Str) && a.Lang == b.Lang && a.Datatype == b.Datatype
	case binding.IRI, binding.BlankNode:
		return string(a.Str) == string(b.Str)
	default:
		return false
	}
}

// compareOp implements <, >, <=, >=. Per spec §4.J, an unbound operand
// or an incomparable pair (e.g. an IRI on one side) yields false
// rather than an error.
func compareOp(op parser.Op, a, b binding.Value) binding.Value {
	cmp, ok := compareValues(a, b)
	if !ok {
		return boolValue(false)
	}
	switch op {
	case parser.OpLt:
		return boolValue(cmp < 0)
	case parser.OpGt:
		return boolValue(cmp > 0)
	case parser.OpLe:
		return boolValue(cmp <= 0)
	case parser.OpGe:
		return boolValue(cmp >= 0)
	default:
		return boolValue(false)
	}
}

// compareValues orders a and b: numeric comparison first (promoting
// integer<->double and, per spec, a string that parses as a number
// compares numerically against a number); otherwise lexicographic
// comparison of their lexical form, case-sensitive. ok is false for
// unbound operands or a non-numeric/non-string pairing.
func compareValues(a, b binding.Value) (cmp int, ok bool) {
	if a.Kind == binding.Unbound || b.Kind == binding.Unbound {
		return 0, false
	}
	an, _, aok := numeric(a)
	bn, _, bok := numeric(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aIsStr := lexical(a)
	bs, bIsStr := lexical(b)
	if !aIsStr || !bIsStr {
		return 0, false
	}
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	default:
		return 0, true
	}
}

func lexical(v binding.Value) (string, bool) {
	switch v.Kind {
	case binding.String:
		return string(v.Str), true
	default:
		return "", false
	}
}

func arith(op parser.Op, a, b binding.Value) (binding.Value, error) {
	an, aInt, aok := numeric(a)
	bn, bInt, bok := numeric(b)
	if !aok || !bok {
		return binding.Value{}, errs.New(errs.KindTypeMismatch, "arithmetic on a non-numeric or unbound operand")
	}
	if op == parser.OpDiv && bn == 0 {
		return binding.Value{}, errs.New(errs.KindTypeMismatch, "division by zero")
	}
	var result float64
	switch op {
	case parser.OpAdd:
		result = an + bn
	case parser.OpSub:
		result = an - bn
	case parser.OpMul:
		result = an * bn
	case parser.OpDiv:
		result = an / bn
	}
	if aInt && bInt && op != parser.OpDiv {
		return binding.Value{Kind: binding.Integer, Int: int64(result)}, nil
	}
	return binding.Value{Kind: binding.Double, Double: result}, nil
}
