package resultio

import (
	"encoding/csv"
	"strings"

	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// SPARQL 1.1 Query Results CSV Format.
// https://www.w3.org/TR/sparql11-results-csv-tsv/

// SelectCSV renders a SELECT result as SPARQL Results CSV.
func SelectCSV(result *executor.Result) ([]byte, error) {
	rows := toRows(result)
	labels := blankNodeLabels(rows)

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(result.Vars); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := make([]string, len(result.Vars))
		for i, name := range result.Vars {
			if term, ok := r[name]; ok {
				rec[i] = termToCSVValue(term, labels)
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// AskCSV renders an ASK result as SPARQL Results CSV.
func AskCSV(answer bool) ([]byte, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"result"}); err != nil {
		return nil, err
	}
	value := "false"
	if answer {
		value = "true"
	}
	if err := w.Write([]string{value}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func termToCSVValue(term rdf.Term, labels map[string]string) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return t.IRI
	case *rdf.BlankNode:
		if l, ok := labels[t.ID]; ok {
			return "_:" + l
		}
		return "_:" + t.ID
	case *rdf.Literal:
		if t.Language != "" {
			return t.Value + "@" + t.Language
		}
		if t.Datatype != nil && t.Datatype.IRI == rdf.XSDDouble.IRI {
			return formatDoubleUpperE(t.Value)
		}
		return t.Value
	default:
		return term.String()
	}
}

// formatDoubleUpperE renders an xsd:double lexical form with uppercase
// E notation and an explicit decimal point, per the CSV/TSV spec's
// numeric examples.
func formatDoubleUpperE(value string) string {
	value = strings.ReplaceAll(value, "e+", "E")
	value = strings.ReplaceAll(value, "e-", "E-")
	value = strings.ReplaceAll(value, "e", "E")
	if !strings.Contains(value, "E") {
		return value
	}
	parts := strings.SplitN(value, "E", 2)
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
	return mantissa + "E" + exponent
}
