package update

import (
	"testing"

	"github.com/aleksaelezovic/trigo/internal/config"
	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
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

func run(t *testing.T, store *facade.Store, owner any, src string) int64 {
	t.Helper()
	u, err := parser.ParseUpdate(src)
	if err != nil {
		t.Fatalf("ParseUpdate(%q): %v", src, err)
	}
	n, err := Execute(store, owner, u)
	if err != nil {
		t.Fatalf("Execute(%q): %v", src, err)
	}
	return n
}

func TestInsertDataThenQuery(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	n := run(t, store, owner, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		}`)
	if n != 1 {
		t.Fatalf("expected 1 affected, got %d", n)
	}

	rows, err := store.QueryCurrent(owner, facade.Pattern{})
	if err != nil {
		t.Fatalf("QueryCurrent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 live quad, got %d", len(rows))
	}
}

func TestDeleteDataRemovesExactMatch(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	run(t, store, owner, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
			<http://example.org/bob> <http://example.org/knows> <http://example.org/carol> .
		}`)

	n := run(t, store, owner, `
		DELETE DATA {
			<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		}`)
	if n != 1 {
		t.Fatalf("expected 1 affected, got %d", n)
	}

	rows, err := store.QueryCurrent(owner, facade.Pattern{})
	if err != nil {
		t.Fatalf("QueryCurrent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 remaining live quad, got %d", len(rows))
	}
}

func TestDeleteDataNoMatchIsNoOp(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	n := run(t, store, owner, `
		DELETE DATA {
			<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
		}`)
	if n != 0 {
		t.Fatalf("expected 0 affected for nonexistent quad, got %d", n)
	}
}

func TestModifyDeleteInsertWhere(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	run(t, store, owner, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/age> "30" .
			<http://example.org/bob> <http://example.org/age> "25" .
		}`)

	n := run(t, store, owner, `
		DELETE { ?p <http://example.org/age> ?age }
		INSERT { ?p <http://example.org/age> "31" }
		WHERE { ?p <http://example.org/age> ?age . FILTER(?p = <http://example.org/alice>) }`)
	if n != 2 {
		t.Fatalf("expected 2 affected (1 delete + 1 insert), got %d", n)
	}

	rows, err := store.QueryCurrent(owner, facade.Pattern{})
	if err != nil {
		t.Fatalf("QueryCurrent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 live quads total, got %d", len(rows))
	}
}

func TestDeleteWhereDeletesEveryMatch(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	run(t, store, owner, `
		INSERT DATA {
			<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .
			<http://example.org/alice> <http://example.org/knows> <http://example.org/carol> .
		}`)

	n := run(t, store, owner, `
		DELETE WHERE { <http://example.org/alice> <http://example.org/knows> ?whom }`)
	if n != 2 {
		t.Fatalf("expected 2 affected, got %d", n)
	}

	rows, err := store.QueryCurrent(owner, facade.Pattern{})
	if err != nil {
		t.Fatalf("QueryCurrent: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 remaining live quads, got %d", len(rows))
	}
}

func TestClearGraphRemovesOnlyThatGraph(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	run(t, store, owner, `
		INSERT DATA {
			GRAPH <http://example.org/g1> { <http://example.org/a> <http://example.org/p> "1" }
			GRAPH <http://example.org/g2> { <http://example.org/a> <http://example.org/p> "2" }
		}`)

	n := run(t, store, owner, `CLEAR GRAPH <http://example.org/g1>`)
	if n != 1 {
		t.Fatalf("expected 1 affected, got %d", n)
	}

	rows, err := store.QueryCurrent(owner, facade.Pattern{Graph: rdf.NewNamedNode("http://example.org/g2")})
	if err != nil {
		t.Fatalf("QueryCurrent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected g2 untouched, got %d live quads", len(rows))
	}
}

func TestCopyGraphReplacesDestination(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	run(t, store, owner, `
		INSERT DATA {
			GRAPH <http://example.org/src> { <http://example.org/a> <http://example.org/p> "1" }
			GRAPH <http://example.org/dst> { <http://example.org/z> <http://example.org/p> "old" }
		}`)

	n := run(t, store, owner, `COPY <http://example.org/src> TO <http://example.org/dst>`)
	if n != 1 {
		t.Fatalf("expected 1 affected (1 insert into dst), got %d", n)
	}

	rows, err := store.QueryCurrent(owner, facade.Pattern{Graph: rdf.NewNamedNode("http://example.org/dst")})
	if err != nil {
		t.Fatalf("QueryCurrent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected dst to hold exactly the copied quad, got %d", len(rows))
	}
}

func TestMoveGraphClearsSource(t *testing.T) {
	store := openTestStore(t)
	owner := new(int)

	run(t, store, owner, `
		INSERT DATA {
			GRAPH <http://example.org/src> { <http://example.org/a> <http://example.org/p> "1" }
		}`)

	run(t, store, owner, `MOVE <http://example.org/src> TO <http://example.org/dst>`)

	srcRows, err := store.QueryCurrent(owner, facade.Pattern{Graph: rdf.NewNamedNode("http://example.org/src")})
	if err != nil {
		t.Fatalf("QueryCurrent src: %v", err)
	}
	if len(srcRows) != 0 {
		t.Fatalf("expected src cleared, got %d live quads", len(srcRows))
	}

	dstRows, err := store.QueryCurrent(owner, facade.Pattern{Graph: rdf.NewNamedNode("http://example.org/dst")})
	if err != nil {
		t.Fatalf("QueryCurrent dst: %v", err)
	}
	if len(dstRows) != 1 {
		t.Fatalf("expected dst to hold moved quad, got %d", len(dstRows))
	}
}
