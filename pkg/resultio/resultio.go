// Package resultio serialises SPARQL query results in the four W3C
// formats (JSON, XML, CSV, TSV) plus N-Triples for CONSTRUCT. It
// writes only; N-Quads parsing for bulk load lives in pkg/ntriples.
package resultio

import (
	"sort"

	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// row is one solution's variable bindings, already resolved to RDF
// terms (an unbound variable position is simply absent).
type row map[string]rdf.Term

func toRows(result *executor.Result) []row {
	out := make([]row, 0, len(result.Rows))
	for _, table := range result.Rows {
		r := make(row, len(result.Vars))
		for _, name := range result.Vars {
			v, ok := table.Lookup(name)
			if !ok || v.Kind == binding.Unbound {
				continue
			}
			term, err := filter.ToTerm(v)
			if err != nil {
				continue
			}
			r[name] = term
		}
		out = append(out, r)
	}
	return out
}

// blankNodeLabels assigns each distinct blank node ID a short
// canonical label (a, b, c, ... then b0, b1, ...) in order of first
// appearance, scanning rows in order and each row's variables by name,
// the convention the SPARQL CSV/TSV test suites expect so output is
// stable across runs even though blank node identities themselves are
// not.
func blankNodeLabels(rows []row) map[string]string {
	labels := make(map[string]string)
	n := 0
	for _, r := range rows {
		names := make([]string, 0, len(r))
		for name := range r {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			bn, ok := r[name].(*rdf.BlankNode)
			if !ok {
				continue
			}
			if _, seen := labels[bn.ID]; seen {
				continue
			}
			if n < 26 {
				labels[bn.ID] = string(rune('a' + n))
			} else {
				labels[bn.ID] = "b" + itoa(n-26)
			}
			n++
		}
	}
	return labels
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
