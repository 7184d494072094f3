package resultio

import (
	"strings"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// ConstructNTriples renders a CONSTRUCT result's triples in N-Triples
// format. https://www.w3.org/TR/n-triples/
func ConstructNTriples(triples []*rdf.Triple) ([]byte, error) {
	var b strings.Builder
	for _, t := range triples {
		writeNTriplesTerm(&b, t.Subject)
		b.WriteByte(' ')
		writeNTriplesTerm(&b, t.Predicate)
		b.WriteByte(' ')
		writeNTriplesTerm(&b, t.Object)
		b.WriteString(" .\n")
	}
	return []byte(b.String()), nil
}

func writeNTriplesTerm(b *strings.Builder, term rdf.Term) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		b.WriteByte('<')
		b.WriteString(t.IRI)
		b.WriteByte('>')
	case *rdf.BlankNode:
		b.WriteString("_:")
		b.WriteString(t.ID)
	case *rdf.Literal:
		b.WriteByte('"')
		b.WriteString(escapeNTriples(t.Value))
		b.WriteByte('"')
		switch {
		case t.Language != "":
			b.WriteByte('@')
			b.WriteString(t.Language)
		case t.Datatype != nil:
			b.WriteString("^^<")
			b.WriteString(t.Datatype.IRI)
			b.WriteByte('>')
		}
	}
}

func escapeNTriples(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
