package resultio

import (
	"strings"

	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// SelectTSV renders a SELECT result as SPARQL Results TSV.
func SelectTSV(result *executor.Result) ([]byte, error) {
	rows := toRows(result)
	labels := blankNodeLabels(rows)

	var b strings.Builder
	for i, name := range result.Vars {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteByte('?')
		b.WriteString(name)
	}
	b.WriteByte('\n')
	for _, r := range rows {
		for i, name := range result.Vars {
			if i > 0 {
				b.WriteByte('\t')
			}
			if term, ok := r[name]; ok {
				b.WriteString(termToTSVValue(term, labels))
			}
		}
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// AskTSV renders an ASK result as SPARQL Results TSV.
func AskTSV(answer bool) ([]byte, error) {
	var b strings.Builder
	b.WriteString("?result\n")
	if answer {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func termToTSVValue(term rdf.Term, labels map[string]string) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return "<" + t.IRI + ">"
	case *rdf.BlankNode:
		if l, ok := labels[t.ID]; ok {
			return "_:" + l
		}
		return "_:" + t.ID
	case *rdf.Literal:
		if t.Language != "" {
			return "\"" + escapeTSV(t.Value) + "\"@" + t.Language
		}
		if t.Datatype != nil {
			switch t.Datatype.IRI {
			case rdf.XSDInteger.IRI, rdf.XSDDecimal.IRI:
				return t.Value
			case rdf.XSDDouble.IRI:
				return formatDoubleLowerE(t.Value)
			}
			return "\"" + escapeTSV(t.Value) + "\"^^<" + t.Datatype.IRI + ">"
		}
		return "\"" + escapeTSV(t.Value) + "\""
	default:
		return term.String()
	}
}

// formatDoubleLowerE renders an xsd:double lexical form with lowercase
// e notation, the TSV spec's numeric convention (the mirror image of
// CSV's uppercase E).
func formatDoubleLowerE(value string) string {
	value = strings.ReplaceAll(value, "e+", "e")
	value = strings.ReplaceAll(value, "E+", "e")
	value = strings.ReplaceAll(value, "E-", "e-")
	value = strings.ReplaceAll(value, "E", "e")
	if !strings.Contains(value, "e") {
		return value
	}
	parts := strings.SplitN(value, "e", 2)
	mantissa, exponent := parts[0], parts[1]
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	neg := strings.HasPrefix(exponent, "-")
	exponent = strings.TrimPrefix(exponent, "-")
	exponent = strings.TrimLeft(exponent, "0")
	if exponent == "" {
		exponent = "0"
	}
	if neg {
		exponent = "-" + exponent
	}
	return mantissa + "e" + exponent
}

func escapeTSV(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
