package termcodec

import (
	"testing"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

func roundTrip(t *testing.T, term rdf.Term) rdf.Term {
	t.Helper()
	b, err := Encode(term)
	if err != nil {
		t.Fatalf("Encode(%v): %v", term, err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestRoundTripNamedNode(t *testing.T) {
	term := rdf.NewNamedNode("http://example.org/alice")
	got := roundTrip(t, term)
	if !term.Equals(got) {
		t.Errorf("roundtrip = %v, want %v", got, term)
	}
}

func TestRoundTripBlankNode(t *testing.T) {
	term := rdf.NewBlankNode("b1")
	got := roundTrip(t, term)
	if !term.Equals(got) {
		t.Errorf("roundtrip = %v, want %v", got, term)
	}
}

func TestRoundTripPlainLiteral(t *testing.T) {
	term := rdf.NewLiteral("hello")
	got := roundTrip(t, term)
	if !term.Equals(got) {
		t.Errorf("roundtrip = %v, want %v", got, term)
	}
}

func TestRoundTripLangLiteral(t *testing.T) {
	term := rdf.NewLiteralWithLanguage("bonjour", "fr")
	got := roundTrip(t, term)
	if !term.Equals(got) {
		t.Errorf("roundtrip = %v, want %v", got, term)
	}
	lit, ok := got.(*rdf.Literal)
	if !ok || lit.Language != "fr" {
		t.Errorf("expected language fr, got %+v", got)
	}
}

func TestRoundTripTypedLiteral(t *testing.T) {
	term := rdf.NewIntegerLiteral(42)
	got := roundTrip(t, term)
	if !term.Equals(got) {
		t.Errorf("roundtrip = %v, want %v", got, term)
	}
}

func TestRoundTripDefaultGraph(t *testing.T) {
	term := rdf.NewDefaultGraph()
	got := roundTrip(t, term)
	if !term.Equals(got) {
		t.Errorf("roundtrip = %v, want %v", got, term)
	}
}

func TestDistinctTermsEncodeDistinctly(t *testing.T) {
	a, _ := Encode(rdf.NewNamedNode("http://example.org/a"))
	b, _ := Encode(rdf.NewNamedNode("http://example.org/b"))
	if string(a) == string(b) {
		t.Error("distinct IRIs encoded identically")
	}

	plain, _ := Encode(rdf.NewLiteral("x"))
	asIRI, _ := Encode(rdf.NewNamedNode("x"))
	if string(plain) == string(asIRI) {
		t.Error("literal and named node with same text encoded identically")
	}
}

func TestIsNamedNode(t *testing.T) {
	iri, _ := Encode(rdf.NewNamedNode("http://example.org/a"))
	if !IsNamedNode(iri) {
		t.Error("expected IsNamedNode true for encoded IRI")
	}
	lit, _ := Encode(rdf.NewLiteral("x"))
	if IsNamedNode(lit) {
		t.Error("expected IsNamedNode false for encoded literal")
	}
}

func TestDecodeEmptyFails(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Error("expected error decoding empty payload")
	}
}
