package resultio

import (
	"encoding/json"

	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// SPARQL 1.1 Query Results JSON Format.
// https://www.w3.org/TR/sparql11-results-json/

type jsonResults struct {
	Head    jsonHead     `json:"head"`
	Results *jsonBinding `json:"results,omitempty"`
	Boolean *bool        `json:"boolean,omitempty"`
}

type jsonHead struct {
	Vars []string `json:"vars"`
}

type jsonBinding struct {
	Bindings []map[string]jsonValue `json:"bindings"`
}

type jsonValue struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Datatype *string `json:"datatype,omitempty"`
	XMLLang  *string `json:"xml:lang,omitempty"`
}

func termToJSONValue(term rdf.Term) jsonValue {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return jsonValue{Type: "uri", Value: t.IRI}
	case *rdf.BlankNode:
		return jsonValue{Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		v := jsonValue{Type: "literal", Value: t.Value}
		if t.Language != "" {
			v.XMLLang = &t.Language
		} else if t.Datatype != nil {
			iri := t.Datatype.IRI
			v.Datatype = &iri
		}
		return v
	default:
		return jsonValue{Type: "literal", Value: term.String()}
	}
}

// SelectJSON renders a SELECT result as SPARQL Query Results JSON.
func SelectJSON(result *executor.Result) ([]byte, error) {
	rows := toRows(result)
	bindings := make([]map[string]jsonValue, 0, len(rows))
	for _, r := range rows {
		b := make(map[string]jsonValue, len(r))
		for name, term := range r {
			b[name] = termToJSONValue(term)
		}
		bindings = append(bindings, b)
	}
	out := jsonResults{
		Head:    jsonHead{Vars: result.Vars},
		Results: &jsonBinding{Bindings: bindings},
	}
	return json.MarshalIndent(out, "", "  ")
}

// AskJSON renders an ASK result as SPARQL Query Results JSON.
func AskJSON(answer bool) ([]byte, error) {
	out := jsonResults{Head: jsonHead{Vars: []string{}}, Boolean: &answer}
	return json.Marshal(out)
}
