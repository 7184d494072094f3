package ntriples

import (
	"strings"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Write renders quads as N-Quads, one statement per line; a quad in
// the default graph omits the fourth position.
func Write(quads []*rdf.Quad) []byte {
	var b strings.Builder
	for _, q := range quads {
		writeTerm(&b, q.Subject)
		b.WriteByte(' ')
		writeTerm(&b, q.Predicate)
		b.WriteByte(' ')
		writeTerm(&b, q.Object)
		if !q.IsDefaultGraph() {
			b.WriteByte(' ')
			writeTerm(&b, q.Graph)
		}
		b.WriteString(" .\n")
	}
	return []byte(b.String())
}

func writeTerm(b *strings.Builder, term rdf.Term) {
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
		b.WriteString(escapeLiteral(t.Value))
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

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
