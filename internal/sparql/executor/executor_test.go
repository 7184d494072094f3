package executor_test

import (
	"testing"

	"github.com/aleksaelezovic/trigo/internal/config"
	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/sparql/binding"
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/internal/sparql/update"
)

func openTestStore(t *testing.T) *facade.Store {
	t.Helper()
	cfg := config.Default(t.TempDir())
	s, err := facade.Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertData(t *testing.T, store *facade.Store, owner any, triples string) {
	t.Helper()
	u, err := parser.ParseUpdate("INSERT DATA { " + triples + " }")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if _, err := update.Execute(store, owner, u); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func selectRows(t *testing.T, store *facade.Store, owner any, query string) *executor.Result {
	t.Helper()
	q, err := parser.ParseQuery(query)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", query, err)
	}
	res, err := executor.ExecuteSelect(store, owner, q)
	if err != nil {
		t.Fatalf("ExecuteSelect(%q): %v", query, err)
	}
	return res
}

func TestSelectBasicGraphPattern(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .`)

	res := selectRows(t, store, owner, `SELECT ?whom WHERE { <http://example.org/alice> <http://example.org/knows> ?whom }`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
}

func TestSelectOptionalKeepsUnmatchedRow(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/name> "Alice" .
		<http://example.org/bob> <http://example.org/name> "Bob" .
		<http://example.org/alice> <http://example.org/age> "30" .`)

	res := selectRows(t, store, owner, `
		SELECT ?p ?age WHERE {
			?p <http://example.org/name> ?name .
			OPTIONAL { ?p <http://example.org/age> ?age }
		}`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows (one per person), got %d", len(res.Rows))
	}

	var withAge, withoutAge int
	for _, row := range res.Rows {
		if _, ok := row.Lookup("age"); ok {
			withAge++
		} else {
			withoutAge++
		}
	}
	if withAge != 1 || withoutAge != 1 {
		t.Errorf("expected exactly one row with age bound and one without, got %d/%d", withAge, withoutAge)
	}
}

func TestSelectUnionCombinesBranches(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/likes> <http://example.org/tea> .
		<http://example.org/bob> <http://example.org/dislikes> <http://example.org/tea> .`)

	res := selectRows(t, store, owner, `
		SELECT ?p WHERE {
			{ ?p <http://example.org/likes> <http://example.org/tea> }
			UNION
			{ ?p <http://example.org/dislikes> <http://example.org/tea> }
		}`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows across both branches, got %d", len(res.Rows))
	}
}

func TestSelectMinusExcludesSharedBindings(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .
		<http://example.org/bob> <http://example.org/banned> "true" .`)

	res := selectRows(t, store, owner, `
		SELECT ?whom WHERE {
			<http://example.org/alice> <http://example.org/knows> ?whom .
			MINUS { ?whom <http://example.org/banned> "true" }
		}`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row (carol only), got %d", len(res.Rows))
	}
	v, ok := res.Rows[0].Lookup("whom")
	if !ok || string(v.Str) != "http://example.org/carol" {
		t.Errorf("expected the surviving row to bind whom=carol, got %+v", v)
	}
}

func TestSelectGraphScopesToNamedGraph(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		GRAPH <http://example.org/g1> { <http://example.org/a> <http://example.org/p> "1" }
		GRAPH <http://example.org/g2> { <http://example.org/a> <http://example.org/p> "2" }`)

	res := selectRows(t, store, owner, `
		SELECT ?v WHERE { GRAPH <http://example.org/g1> { <http://example.org/a> <http://example.org/p> ?v } }`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row scoped to g1, got %d", len(res.Rows))
	}
	v, _ := res.Rows[0].Lookup("v")
	if string(v.Str) != "1" {
		t.Errorf("expected v=1, got %q", v.Str)
	}
}

func TestSelectGraphVariableIteratesNamedGraphs(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		GRAPH <http://example.org/g1> { <http://example.org/a> <http://example.org/p> "1" }
		GRAPH <http://example.org/g2> { <http://example.org/a> <http://example.org/p> "2" }`)

	res := selectRows(t, store, owner, `
		SELECT ?g ?v WHERE { GRAPH ?g { <http://example.org/a> <http://example.org/p> ?v } }`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, one per named graph, got %d", len(res.Rows))
	}
}

func TestSelectSubSelectJoinsOnSharedVariable(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/age> "30" .
		<http://example.org/bob> <http://example.org/age> "25" .`)

	res := selectRows(t, store, owner, `
		SELECT ?p ?age WHERE {
			?p <http://example.org/age> ?age .
			{ SELECT ?p WHERE { ?p <http://example.org/age> ?age2 . FILTER(?age2 = "30") } }
		}`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row (alice only), got %d", len(res.Rows))
	}
	v, _ := res.Rows[0].Lookup("p")
	if string(v.Str) != "http://example.org/alice" {
		t.Errorf("expected p=alice, got %q", v.Str)
	}
}

func TestSelectBindComputesNewVariable(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `<http://example.org/alice> <http://example.org/age> "30" .`)

	res := selectRows(t, store, owner, `
		SELECT ?nextYear WHERE {
			<http://example.org/alice> <http://example.org/age> ?age .
			BIND(?age + 1 AS ?nextYear)
		}`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	v, ok := res.Rows[0].Lookup("nextYear")
	// "30" is a plain string literal; a numeric-looking string takes
	// part in arithmetic as a double, so the sum is the double 31.
	if !ok || v.Kind != binding.Double || v.Double != 31 {
		t.Errorf("expected nextYear=31 (double), got %+v", v)
	}
}

func TestSelectValuesMultipliesRows(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .`)

	res := selectRows(t, store, owner, `
		SELECT ?whom WHERE {
			<http://example.org/alice> <http://example.org/knows> ?whom .
			VALUES ?whom { <http://example.org/bob> }
		}`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row (VALUES restricting to bob), got %d", len(res.Rows))
	}
}

func TestSelectGroupByCountAggregates(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .
		<http://example.org/dave> <http://example.org/knows> <http://example.org/erin> .`)

	res := selectRows(t, store, owner, `
		SELECT ?p (COUNT(?whom) AS ?n) WHERE { ?p <http://example.org/knows> ?whom } GROUP BY ?p ORDER BY DESC(?n)`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Rows))
	}
	n, ok := res.Rows[0].Lookup("n")
	if !ok || n.Int != 2 {
		t.Errorf("expected the first (highest-count) group to have n=2, got %+v", n)
	}
}

func TestSelectHavingFiltersGroups(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .
		<http://example.org/dave> <http://example.org/knows> <http://example.org/erin> .`)

	res := selectRows(t, store, owner, `
		SELECT ?p (COUNT(?whom) AS ?n) WHERE { ?p <http://example.org/knows> ?whom }
		GROUP BY ?p HAVING(COUNT(?whom) > 1)`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 surviving group, got %d", len(res.Rows))
	}
	p, _ := res.Rows[0].Lookup("p")
	if string(p.Str) != "http://example.org/alice" {
		t.Errorf("expected the surviving group to be alice, got %q", p.Str)
	}
}

func TestSelectDistinctDedups(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .`)

	res := selectRows(t, store, owner, `SELECT DISTINCT ?p WHERE { ?p <http://example.org/knows> ?whom }`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 distinct subject, got %d", len(res.Rows))
	}
}

func TestSelectLimitAndOffset(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/dave> .`)

	res := selectRows(t, store, owner, `
		SELECT ?whom WHERE { <http://example.org/alice> <http://example.org/knows> ?whom }
		ORDER BY ?whom LIMIT 1 OFFSET 1`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected exactly 1 row after OFFSET 1 LIMIT 1, got %d", len(res.Rows))
	}
}

func TestAskReturnsWhetherAnySolutionExists(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .`)

	q, err := parser.ParseQuery(`ASK { <http://example.org/alice> <http://example.org/knows> <http://example.org/bob> }`)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	ok, err := executor.Ask(store, owner, q)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !ok {
		t.Error("expected ASK to find the inserted quad")
	}

	q2, err := parser.ParseQuery(`ASK { <http://example.org/alice> <http://example.org/knows> <http://example.org/nobody> }`)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	ok2, err := executor.Ask(store, owner, q2)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ok2 {
		t.Error("expected ASK to find nothing for a non-existent quad")
	}
}

func TestConstructBuildsTriplesFromTemplate(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .`)

	q, err := parser.ParseQuery(`
		CONSTRUCT { ?a <http://example.org/friend> ?b }
		WHERE { ?a <http://example.org/knows> ?b }`)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	triples, err := executor.Construct(store, owner, q)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if len(triples) != 2 {
		t.Fatalf("expected 2 constructed triples, got %d", len(triples))
	}
	for _, tr := range triples {
		if tr.Predicate.String() != "<http://example.org/friend>" {
			t.Errorf("expected predicate to be rewritten to friend, got %s", tr.Predicate)
		}
	}
}

func TestConstructDiscardsPatternsWithUnboundPosition(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `<http://example.org/alice> <http://example.org/name> "Alice" .`)

	q, err := parser.ParseQuery(`
		CONSTRUCT { ?a <http://example.org/name> ?n . ?a <http://example.org/age> ?age }
		WHERE { ?a <http://example.org/name> ?n . OPTIONAL { ?a <http://example.org/age> ?age } }`)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	triples, err := executor.Construct(store, owner, q)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("expected only the fully-bound pattern to survive, got %d triples", len(triples))
	}
}

func TestFilterExistsChecksForAMatch(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/bob> <http://example.org/age> "25" .`)

	res := selectRows(t, store, owner, `
		SELECT ?p WHERE {
			?p <http://example.org/knows> ?whom .
			FILTER EXISTS { ?whom <http://example.org/age> ?age }
		}`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row where the known person has an age, got %d", len(res.Rows))
	}
}

func TestFilterNotExistsExcludesAMatch(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)
	insertData(t, store, owner, `
		<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		<http://example.org/bob> <http://example.org/age> "25" .`)

	res := selectRows(t, store, owner, `
		SELECT ?p WHERE {
			?p <http://example.org/knows> ?whom .
			FILTER NOT EXISTS { ?whom <http://example.org/age> ?age }
		}`)
	if len(res.Rows) != 0 {
		t.Fatalf("expected no rows, bob has an age, got %d", len(res.Rows))
	}
}
