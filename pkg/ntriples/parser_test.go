package ntriples

import (
	"strings"
	"testing"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

func TestParseBasicQuad(t *testing.T) {
	input := `<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> <http://example.org/g1> .`
	quads, err := NewParser(input).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
	q := quads[0]
	if q.Subject.(*rdf.NamedNode).IRI != "http://example.org/alice" {
		t.Fatalf("unexpected subject: %v", q.Subject)
	}
	if q.Graph.(*rdf.NamedNode).IRI != "http://example.org/g1" {
		t.Fatalf("unexpected graph: %v", q.Graph)
	}
}

func TestParseTripleDefaultsToDefaultGraph(t *testing.T) {
	input := `<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .`
	quads, err := NewParser(input).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !quads[0].IsDefaultGraph() {
		t.Fatalf("expected default graph, got %v", quads[0].Graph)
	}
}

func TestParseLiteralWithLanguageAndDatatype(t *testing.T) {
	input := `
		<http://example.org/alice> <http://example.org/name> "Alice"@en .
		<http://example.org/alice> <http://example.org/age> "30"^^<http://www.w3.org/2001/XMLSchema#integer> .
	`
	quads, err := NewParser(input).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(quads) != 2 {
		t.Fatalf("expected 2 quads, got %d", len(quads))
	}
	name := quads[0].Object.(*rdf.Literal)
	if name.Value != "Alice" || name.Language != "en" {
		t.Fatalf("unexpected literal: %+v", name)
	}
	age := quads[1].Object.(*rdf.Literal)
	if age.Value != "30" || age.Datatype == nil || age.Datatype.IRI != "http://www.w3.org/2001/XMLSchema#integer" {
		t.Fatalf("unexpected literal: %+v", age)
	}
}

func TestParseBlankNode(t *testing.T) {
	input := `_:b0 <http://example.org/knows> <http://example.org/bob> .`
	quads, err := NewParser(input).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bn, ok := quads[0].Subject.(*rdf.BlankNode)
	if !ok || bn.ID != "b0" {
		t.Fatalf("unexpected subject: %v", quads[0].Subject)
	}
}

func TestParsePrefixDirective(t *testing.T) {
	input := `
		@prefix ex: <http://example.org/> .
		ex:alice ex:knows ex:bob .
	`
	quads, err := NewParser(input).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
	if quads[0].Subject.(*rdf.NamedNode).IRI != "http://example.org/alice" {
		t.Fatalf("unexpected expanded subject: %v", quads[0].Subject)
	}
}

func TestParseRejectsUndefinedPrefix(t *testing.T) {
	_, err := NewParser(`ex:alice ex:knows ex:bob .`).Parse()
	if err == nil {
		t.Fatalf("expected error for undefined prefix")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	original := []*rdf.Quad{
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/alice"),
			rdf.NewNamedNode("http://example.org/knows"),
			rdf.NewLiteralWithLanguage("Alice's friend", "en"),
			rdf.NewNamedNode("http://example.org/g1"),
		),
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/bob"),
			rdf.NewNamedNode("http://example.org/age"),
			rdf.NewIntegerLiteral(25),
			rdf.NewDefaultGraph(),
		),
	}

	data := Write(original)
	if strings.Count(string(data), "\n") != 2 {
		t.Fatalf("expected 2 lines, got %q", data)
	}

	roundTripped, err := NewParser(string(data)).Parse()
	if err != nil {
		t.Fatalf("Parse round-trip: %v", err)
	}
	if len(roundTripped) != 2 {
		t.Fatalf("expected 2 quads after round-trip, got %d", len(roundTripped))
	}
	if !roundTripped[1].IsDefaultGraph() {
		t.Fatalf("expected second quad to stay in default graph after round-trip")
	}
	lit := roundTripped[0].Object.(*rdf.Literal)
	if lit.Value != "Alice's friend" || lit.Language != "en" {
		t.Fatalf("unexpected round-tripped literal: %+v", lit)
	}
}
