package filter_test

import (
	"testing"

	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
)

// mustExpr parses exprSrc as a standalone FILTER constraint (by
// embedding it in the smallest query that accepts one) and returns the
// resulting Expr alongside a Context ready for Eval, with row supplying
// any variable bindings the expression references.
func mustExpr(t *testing.T, exprSrc string, row *binding.Table) (*parser.Expr, *filter.Context) {
	t.Helper()
	q, err := parser.ParseQuery("SELECT * WHERE { FILTER(" + exprSrc + ") }")
	if err != nil {
		t.Fatalf("parse %q: %v", exprSrc, err)
	}
	if row == nil {
		row = binding.New()
	}
	return q.Where.Filters[0], &filter.Context{Src: q.Src, Prologue: q.Prologue, Row: row}
}

func evalStr(t *testing.T, exprSrc string, row *binding.Table) binding.Value {
	t.Helper()
	e, ctx := mustExpr(t, exprSrc, row)
	v, err := filter.Eval(ctx, e)
	if err != nil {
		t.Fatalf("eval %q: %v", exprSrc, err)
	}
	return v
}

func rowWithInt(name string, n int64) *binding.Table {
	tbl := binding.New()
	tbl.Bind(name, binding.Value{Kind: binding.Integer, Int: n})
	return tbl
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		expr    string
		wantInt int64
	}{
		{"2 + 3", 5},
		{"10 - 4", 6},
		{"3 * 4", 12},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
	}
	for _, c := range cases {
		v := evalStr(t, c.expr, nil)
		if v.Kind != binding.Integer || v.Int != c.wantInt {
			t.Errorf("%s: got %+v, want integer %d", c.expr, v, c.wantInt)
		}
	}
}

func TestDivisionPromotesToDouble(t *testing.T) {
	v := evalStr(t, "7 / 2", nil)
	if v.Kind != binding.Double || v.Double != 3.5 {
		t.Errorf("got %+v, want double 3.5", v)
	}
}

func TestDivisionByZeroErrors(t *testing.T) {
	e, ctx := mustExpr(t, "1 / 0", nil)
	if _, err := filter.Eval(ctx, e); err == nil {
		t.Fatal("expected division by zero to error")
	}
}

func TestComparisonOperators(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"1 < 2", true},
		{"2 < 1", false},
		{"2 <= 2", true},
		{"3 > 2", true},
		{"2 >= 3", false},
		{"1 = 1", true},
		{"1 != 1", false},
		{`"abc" = "abc"`, true},
		{`"abc" != "abd"`, true},
	}
	for _, c := range cases {
		v := evalStr(t, c.expr, nil)
		if v.Kind != binding.Boolean || v.Bool != c.want {
			t.Errorf("%s: got %+v, want boolean %v", c.expr, v, c.want)
		}
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"true && false", false},
		{"true && true", true},
		{"false || true", true},
		{"false || false", false},
		{"!true", false},
		{"!false", true},
	}
	for _, c := range cases {
		v := evalStr(t, c.expr, nil)
		if v.Kind != binding.Boolean || v.Bool != c.want {
			t.Errorf("%s: got %+v, want boolean %v", c.expr, v, c.want)
		}
	}
}

func TestInAndNotIn(t *testing.T) {
	row := rowWithInt("x", 2)
	v := evalStr(t, "?x IN (1, 2, 3)", row)
	if !filter.EBV(v) {
		t.Error("expected ?x IN (1, 2, 3) to be true for x=2")
	}
	v = evalStr(t, "?x NOT IN (1, 3)", row)
	if !filter.EBV(v) {
		t.Error("expected ?x NOT IN (1, 3) to be true for x=2")
	}
}

func TestBoundAndUnboundVariables(t *testing.T) {
	row := rowWithInt("x", 1)
	v := evalStr(t, "BOUND(?x)", row)
	if !filter.EBV(v) {
		t.Error("expected BOUND(?x) to be true")
	}
	v = evalStr(t, "BOUND(?y)", row)
	if filter.EBV(v) {
		t.Error("expected BOUND(?y) to be false when y is unbound")
	}
}

func TestTypeCheckingBuiltins(t *testing.T) {
	row := binding.New()
	row.Bind("iri", binding.Value{Kind: binding.IRI, Str: []byte("http://example.org/a")})
	row.Bind("bnode", binding.Value{Kind: binding.BlankNode, Str: []byte("b1")})
	row.Bind("lit", binding.Value{Kind: binding.String, Str: []byte("hi")})
	row.Bind("num", binding.Value{Kind: binding.Integer, Int: 3})

	if !filter.EBV(evalStr(t, "ISIRI(?iri)", row)) {
		t.Error("expected ISIRI(?iri) true")
	}
	if !filter.EBV(evalStr(t, "ISBLANK(?bnode)", row)) {
		t.Error("expected ISBLANK(?bnode) true")
	}
	if !filter.EBV(evalStr(t, "ISLITERAL(?lit)", row)) {
		t.Error("expected ISLITERAL(?lit) true")
	}
	if !filter.EBV(evalStr(t, "ISNUMERIC(?num)", row)) {
		t.Error("expected ISNUMERIC(?num) true")
	}
	if filter.EBV(evalStr(t, "ISNUMERIC(?lit)", row)) {
		t.Error("expected ISNUMERIC(?lit) false for a plain string")
	}
}

func TestStringFunctions(t *testing.T) {
	cases := []struct {
		expr    string
		wantStr string
	}{
		{`UCASE("hello")`, "HELLO"},
		{`LCASE("HELLO")`, "hello"},
		{`CONCAT("foo", "bar")`, "foobar"},
		{`SUBSTR("hello world", 7)`, "world"},
		{`SUBSTR("hello world", 1, 5)`, "hello"},
		{`STRBEFORE("hello-world", "-")`, "hello"},
		{`STRAFTER("hello-world", "-")`, "world"},
		{`REPLACE("hello", "l", "L")`, "heLLo"},
		{`ENCODE_FOR_URI("a b")`, "a%20b"},
	}
	for _, c := range cases {
		v := evalStr(t, c.expr, nil)
		if v.Kind != binding.String || string(v.Str) != c.wantStr {
			t.Errorf("%s: got %+v, want string %q", c.expr, v, c.wantStr)
		}
	}
}

func TestStrlenCountsRunes(t *testing.T) {
	v := evalStr(t, `STRLEN("hello")`, nil)
	if v.Kind != binding.Integer || v.Int != 5 {
		t.Errorf("got %+v, want integer 5", v)
	}
}

func TestContainsStartsEnds(t *testing.T) {
	if !filter.EBV(evalStr(t, `CONTAINS("hello world", "wor")`, nil)) {
		t.Error("expected CONTAINS to be true")
	}
	if !filter.EBV(evalStr(t, `STRSTARTS("hello", "he")`, nil)) {
		t.Error("expected STRSTARTS to be true")
	}
	if !filter.EBV(evalStr(t, `STRENDS("hello", "lo")`, nil)) {
		t.Error("expected STRENDS to be true")
	}
}

func TestRegexMatching(t *testing.T) {
	if !filter.EBV(evalStr(t, `REGEX("hello123", "[0-9]+")`, nil)) {
		t.Error("expected REGEX to match digits")
	}
	if filter.EBV(evalStr(t, `REGEX("hello", "[0-9]+")`, nil)) {
		t.Error("expected REGEX to not match when there are no digits")
	}
	if !filter.EBV(evalStr(t, `REGEX("HELLO", "hello", "i")`, nil)) {
		t.Error("expected REGEX with case-insensitive flag to match")
	}
}

func TestRegexInvalidPatternIsFalseNotError(t *testing.T) {
	e, ctx := mustExpr(t, `REGEX("x", "(")`, nil)
	v, err := filter.Eval(ctx, e)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if filter.EBV(v) {
		t.Error("expected an invalid regex to evaluate false, not error")
	}
}

func TestNumericFunctions(t *testing.T) {
	cases := []struct {
		expr       string
		wantInt    int64
		wantDouble float64
		isInt      bool
	}{
		{"ABS(-5)", 5, 0, true},
		{"CEIL(1.2)", 0, 2, false},
		{"FLOOR(1.8)", 0, 1, false},
		{"ROUND(1.5)", 0, 2, false},
	}
	for _, c := range cases {
		v := evalStr(t, c.expr, nil)
		if c.isInt {
			if v.Kind != binding.Integer || v.Int != c.wantInt {
				t.Errorf("%s: got %+v, want integer %d", c.expr, v, c.wantInt)
			}
		} else {
			if v.Kind != binding.Double || v.Double != c.wantDouble {
				t.Errorf("%s: got %+v, want double %v", c.expr, v, c.wantDouble)
			}
		}
	}
}

func TestHashFunctions(t *testing.T) {
	cases := []struct {
		expr    string
		wantHex string
	}{
		{`MD5("")`, "d41d8cd98f00b204e9800998ecf8427e"},
		{`SHA1("")`, "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{`SHA256("")`, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, c := range cases {
		v := evalStr(t, c.expr, nil)
		if v.Kind != binding.String || string(v.Str) != c.wantHex {
			t.Errorf("%s: got %q, want %q", c.expr, v.Str, c.wantHex)
		}
	}
}

func TestIfAndCoalesce(t *testing.T) {
	v := evalStr(t, `IF(1 < 2, "yes", "no")`, nil)
	if string(v.Str) != "yes" {
		t.Errorf("IF: got %q, want yes", v.Str)
	}
	v = evalStr(t, `IF(1 > 2, "yes", "no")`, nil)
	if string(v.Str) != "no" {
		t.Errorf("IF: got %q, want no", v.Str)
	}

	row := binding.New()
	v = evalStr(t, `COALESCE(?missing, "fallback")`, row)
	if string(v.Str) != "fallback" {
		t.Errorf("COALESCE: got %q, want fallback", v.Str)
	}
}

func TestLangAndDatatype(t *testing.T) {
	row := binding.New()
	row.Bind("greeting", binding.Value{Kind: binding.String, Str: []byte("bonjour"), Lang: "fr"})

	v := evalStr(t, "LANG(?greeting)", row)
	if string(v.Str) != "fr" {
		t.Errorf("LANG: got %q, want fr", v.Str)
	}
	if !filter.EBV(evalStr(t, `LANGMATCHES(LANG(?greeting), "fr")`, row)) {
		t.Error("expected LANGMATCHES(fr, fr) to be true")
	}
	if filter.EBV(evalStr(t, `LANGMATCHES(LANG(?greeting), "en")`, row)) {
		t.Error("expected LANGMATCHES(fr, en) to be false")
	}
}

func TestSameTerm(t *testing.T) {
	row := binding.New()
	row.Bind("a", binding.Value{Kind: binding.Integer, Int: 1})
	row.Bind("b", binding.Value{Kind: binding.Double, Double: 1})

	// `=` numerically promotes, but SAMETERM does not.
	if !filter.EBV(evalStr(t, "?a = ?b", row)) {
		t.Error("expected ?a = ?b (numeric equality) to be true")
	}
	if filter.EBV(evalStr(t, "SAMETERM(?a, ?b)", row)) {
		t.Error("expected SAMETERM to distinguish integer 1 from double 1")
	}
}

func TestBoundIRIResolution(t *testing.T) {
	q, err := parser.ParseQuery(`PREFIX ex: <http://example.org/> SELECT * WHERE { FILTER(IRI("ex:thing") = IRI("ex:thing")) }`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := &filter.Context{Src: q.Src, Prologue: q.Prologue, Row: binding.New()}
	v, err := filter.Eval(ctx, q.Where.Filters[0])
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !filter.EBV(v) {
		t.Error("expected IRI(\"ex:thing\") to compare equal to itself")
	}
}

func TestBoundVariableUnaryMinus(t *testing.T) {
	row := rowWithInt("x", 7)
	v := evalStr(t, "-?x", row)
	if v.Kind != binding.Integer || v.Int != -7 {
		t.Errorf("got %+v, want integer -7", v)
	}
}

func TestEBV(t *testing.T) {
	cases := []struct {
		v    binding.Value
		want bool
	}{
		{binding.Value{Kind: binding.Unbound}, false},
		{binding.Value{Kind: binding.Boolean, Bool: true}, true},
		{binding.Value{Kind: binding.Integer, Int: 0}, false},
		{binding.Value{Kind: binding.Integer, Int: 1}, true},
		{binding.Value{Kind: binding.Double, Double: 0}, false},
		{binding.Value{Kind: binding.String, Str: []byte("")}, false},
		{binding.Value{Kind: binding.String, Str: []byte("x")}, true},
		{binding.Value{Kind: binding.IRI, Str: []byte("http://x")}, true},
	}
	for _, c := range cases {
		if got := filter.EBV(c.v); got != c.want {
			t.Errorf("EBV(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestToTermAndFromTermRoundTrip(t *testing.T) {
	row := binding.New()
	row.Bind("x", binding.Value{Kind: binding.IRI, Str: []byte("http://example.org/a")})
	v := evalStr(t, "?x", row)
	term, err := filter.ToTerm(v)
	if err != nil {
		t.Fatalf("ToTerm: %v", err)
	}
	back := filter.FromTerm(term)
	if back.Kind != binding.IRI || string(back.Str) != "http://example.org/a" {
		t.Errorf("round trip mismatch: got %+v", back)
	}
}

func TestToTermUnboundErrors(t *testing.T) {
	if _, err := filter.ToTerm(binding.Value{Kind: binding.Unbound}); err == nil {
		t.Fatal("expected ToTerm on an unbound value to error")
	}
}

func TestAggregateNamesRejectedByEval(t *testing.T) {
	e, ctx := mustExpr(t, "COUNT(?x)", nil)
	if _, err := filter.Eval(ctx, e); err == nil {
		t.Fatal("expected the plain evaluator to reject an aggregate function call")
	}
}
