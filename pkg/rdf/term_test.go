package rdf

import "testing"

func TestNamedNode_TypeAndString(t *testing.T) {
	node := NewNamedNode("http://example.org/resource")
	if node.Type() != TermTypeNamedNode {
		t.Errorf("expected TermTypeNamedNode, got %v", node.Type())
	}
	if got, want := node.String(), "<http://example.org/resource>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNamedNode_Equals(t *testing.T) {
	a := NewNamedNode("http://example.org/resource")
	b := NewNamedNode("http://example.org/resource")
	c := NewNamedNode("http://example.org/different")

	if !a.Equals(b) {
		t.Error("expected equal NamedNodes to be equal")
	}
	if a.Equals(c) {
		t.Error("expected different NamedNodes to not be equal")
	}
	if a.Equals(NewLiteral("test")) {
		t.Error("expected NamedNode not equal to a Literal")
	}
}

func TestBlankNode_TypeAndString(t *testing.T) {
	b := NewBlankNode("b1")
	if b.Type() != TermTypeBlankNode {
		t.Errorf("expected TermTypeBlankNode, got %v", b.Type())
	}
	if got, want := b.String(), "_:b1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBlankNode_Equals(t *testing.T) {
	a := NewBlankNode("x")
	b := NewBlankNode("x")
	c := NewBlankNode("y")
	if !a.Equals(b) || a.Equals(c) {
		t.Error("blank node equality mismatch")
	}
}

func TestLiteral_PlainString(t *testing.T) {
	l := NewLiteral("hello")
	if l.Type() != TermTypeStringLiteral {
		t.Errorf("expected TermTypeStringLiteral, got %v", l.Type())
	}
	if got, want := l.String(), `"hello"`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLiteral_LangString(t *testing.T) {
	l := NewLiteralWithLanguage("bonjour", "fr")
	if l.Type() != TermTypeLangStringLiteral {
		t.Errorf("expected TermTypeLangStringLiteral, got %v", l.Type())
	}
	if got, want := l.String(), `"bonjour"@fr`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLiteral_TypedLiteral(t *testing.T) {
	l := NewLiteralWithDatatype("42", XSDInteger)
	if l.Type() != TermTypeTypedLiteral {
		t.Errorf("expected TermTypeTypedLiteral, got %v", l.Type())
	}
	want := `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`
	if got := l.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !l.IsNumeric() {
		t.Error("expected xsd:integer literal to be numeric")
	}
}

func TestLiteral_Equals(t *testing.T) {
	a := NewLiteralWithDatatype("1", XSDInteger)
	b := NewLiteralWithDatatype("1", XSDInteger)
	c := NewLiteralWithDatatype("1", XSDDouble)
	d := NewLiteral("1")

	if !a.Equals(b) {
		t.Error("expected identical typed literals to be equal")
	}
	if a.Equals(c) {
		t.Error("expected literals with different datatypes to not be equal")
	}
	if a.Equals(d) {
		t.Error("expected typed literal to not equal an untyped literal with the same lexical form")
	}
}

func TestDefaultGraph(t *testing.T) {
	g := NewDefaultGraph()
	if g.Type() != TermTypeDefaultGraph {
		t.Errorf("expected TermTypeDefaultGraph, got %v", g.Type())
	}
	if !g.Equals(NewDefaultGraph()) {
		t.Error("expected two DefaultGraph instances to be equal")
	}
}

func TestQuad_IsDefaultGraph(t *testing.T) {
	s := NewNamedNode("http://example.org/s")
	p := NewNamedNode("http://example.org/p")
	o := NewLiteral("o")

	q := NewQuad(s, p, o, NewDefaultGraph())
	if !q.IsDefaultGraph() {
		t.Error("expected quad with DefaultGraph to report IsDefaultGraph")
	}

	named := NewQuad(s, p, o, NewNamedNode("http://example.org/g"))
	if named.IsDefaultGraph() {
		t.Error("expected quad with named graph to not report IsDefaultGraph")
	}
}

func TestNumericLiteralConstructors(t *testing.T) {
	if got, want := NewIntegerLiteral(42).Value, "42"; got != want {
		t.Errorf("NewIntegerLiteral value = %q, want %q", got, want)
	}
	if got, want := NewDoubleLiteral(3.5).Value, "3.5"; got != want {
		t.Errorf("NewDoubleLiteral value = %q, want %q", got, want)
	}
	if got, want := NewBooleanLiteral(true).Value, "true"; got != want {
		t.Errorf("NewBooleanLiteral value = %q, want %q", got, want)
	}
}
