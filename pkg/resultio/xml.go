package resultio

import (
	"strings"

	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// SPARQL Query Results XML Format.
// https://www.w3.org/TR/rdf-sparql-XMLres/

// SelectXML renders a SELECT result as SPARQL Results XML.
func SelectXML(result *executor.Result) ([]byte, error) {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n")
	b.WriteString("<sparql xmlns=\"http://www.w3.org/2005/sparql-results#\">\n  <head>\n")
	for _, v := range result.Vars {
		b.WriteString("    <variable name=\"" + xmlEscape(v) + "\"/>\n")
	}
	b.WriteString("  </head>\n  <results>\n")
	for _, r := range toRows(result) {
		b.WriteString("    <result>\n")
		for _, name := range result.Vars {
			term, ok := r[name]
			if !ok {
				continue
			}
			b.WriteString("      <binding name=\"" + xmlEscape(name) + "\">\n")
			b.WriteString(termToXML(term, "        "))
			b.WriteString("      </binding>\n")
		}
		b.WriteString("    </result>\n")
	}
	b.WriteString("  </results>\n</sparql>\n")
	return []byte(b.String()), nil
}

// AskXML renders an ASK result as SPARQL Results XML.
func AskXML(answer bool) ([]byte, error) {
	boolStr := "false"
	if answer {
		boolStr = "true"
	}
	xml := "<?xml version=\"1.0\"?>\n" +
		"<sparql xmlns=\"http://www.w3.org/2005/sparql-results#\">\n" +
		"  <head/>\n  <boolean>" + boolStr + "</boolean>\n</sparql>\n"
	return []byte(xml), nil
}

func termToXML(term rdf.Term, indent string) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return indent + "<uri>" + xmlEscape(t.IRI) + "</uri>\n"
	case *rdf.BlankNode:
		return indent + "<bnode>" + xmlEscape(t.ID) + "</bnode>\n"
	case *rdf.Literal:
		if t.Language != "" {
			return indent + "<literal xml:lang=\"" + xmlEscape(t.Language) + "\">" + xmlEscape(t.Value) + "</literal>\n"
		}
		if t.Datatype != nil {
			return indent + "<literal datatype=\"" + xmlEscape(t.Datatype.IRI) + "\">" + xmlEscape(t.Value) + "</literal>\n"
		}
		return indent + "<literal>" + xmlEscape(t.Value) + "</literal>\n"
	default:
		return indent + "<literal>" + xmlEscape(term.String()) + "</literal>\n"
	}
}

func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
