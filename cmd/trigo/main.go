package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aleksaelezovic/trigo/internal/config"
	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/logging"
	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/filter"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/pkg/httpapi"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
	"github.com/aleksaelezovic/trigo/pkg/resultio"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: trigo <command> [args]")
		fmt.Println("Commands:")
		fmt.Println("  demo         - Run a demo with sample data")
		fmt.Println("  query <q>    - Execute a SPARQL query")
		fmt.Println("  serve [addr] - Start HTTP SPARQL endpoint (default: localhost:8080)")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		runDemo()
	case "query":
		if len(os.Args) < 3 {
			fmt.Println("Usage: trigo query <sparql-query>")
			os.Exit(1)
		}
		runQuery(os.Args[2])
	case "serve":
		addr := "localhost:8080"
		if len(os.Args) >= 3 {
			addr = os.Args[2]
		}
		runServer(addr)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

const dbPath = "./trigo_data"

func openStore() *facade.Store {
	cfg := config.Default(dbPath)
	st, err := facade.Open(cfg, logging.Default())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	return st
}

func runDemo() {
	fmt.Println("=== Trigo Temporal Quad Store Demo ===")
	fmt.Println()

	fmt.Printf("Opening store at: %s\n", dbPath)
	store := openStore()
	defer store.Close()

	owner := new(int)

	fmt.Println("Inserting sample data...")

	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")

	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	age := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age")

	quads := []*rdf.Quad{
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice"), rdf.NewDefaultGraph()),
		rdf.NewQuad(alice, age, rdf.NewIntegerLiteral(30), rdf.NewDefaultGraph()),
		rdf.NewQuad(alice, knows, bob, rdf.NewDefaultGraph()),

		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob"), rdf.NewDefaultGraph()),
		rdf.NewQuad(bob, age, rdf.NewIntegerLiteral(25), rdf.NewDefaultGraph()),
		rdf.NewQuad(bob, knows, carol, rdf.NewDefaultGraph()),

		rdf.NewQuad(carol, name, rdf.NewLiteral("Carol"), rdf.NewDefaultGraph()),
		rdf.NewQuad(carol, age, rdf.NewIntegerLiteral(28), rdf.NewDefaultGraph()),
	}

	batch, err := store.BeginBatch(owner)
	if err != nil {
		log.Fatalf("begin batch: %v", err)
	}
	for _, quad := range quads {
		if err := batch.Add(quad, 0, quadstore.OpenFuture); err != nil {
			batch.Abort()
			log.Fatalf("insert quad: %v", err)
		}
		fmt.Printf("  + %s\n", quad)
	}
	if err := batch.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}

	fmt.Println("\nInserting data into named graphs...")
	graph1 := rdf.NewNamedNode("http://example.org/graph1")
	graph2 := rdf.NewNamedNode("http://example.org/graph2")

	graphQuads := []*rdf.Quad{
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice in Graph1"), graph1),
		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob in Graph1"), graph1),
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice in Graph2"), graph2),
		rdf.NewQuad(carol, name, rdf.NewLiteral("Carol in Graph2"), graph2),
	}

	batch, err = store.BeginBatch(owner)
	if err != nil {
		log.Fatalf("begin batch: %v", err)
	}
	for _, quad := range graphQuads {
		if err := batch.Add(quad, 0, quadstore.OpenFuture); err != nil {
			batch.Abort()
			log.Fatalf("insert quad: %v", err)
		}
		fmt.Printf("  + <%s> %s\n", quad.Graph.(*rdf.NamedNode).IRI, quad)
	}
	if err := batch.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}

	live, err := store.QueryCurrent(owner, facade.Pattern{})
	if err != nil {
		log.Fatalf("count quads: %v", err)
	}
	fmt.Printf("\nTotal live quads stored: %d\n", len(live))

	fmt.Println()
	fmt.Println("=== Querying Data ===")
	fmt.Println()

	sparqlQuery := `
		SELECT ?person ?name ?age
		WHERE {
			?person <http://xmlns.com/foaf/0.1/name> ?name .
			?person <http://xmlns.com/foaf/0.1/age> ?age .
		}
	`
	fmt.Printf("Query:\n%s\n", sparqlQuery)

	q, err := parser.ParseQuery(sparqlQuery)
	if err != nil {
		log.Fatalf("failed to parse query: %v", err)
	}
	fmt.Println("query parsed successfully")

	result, err := executor.ExecuteSelect(store, owner, q)
	if err != nil {
		log.Fatalf("failed to execute query: %v", err)
	}
	fmt.Println("query executed successfully")
	fmt.Println()

	printSelectResult(result)
	fmt.Println("\n=== Demo Complete ===")
}

func runQuery(sparqlQuery string) {
	store := openStore()
	defer store.Close()
	owner := new(int)

	q, err := parser.ParseQuery(sparqlQuery)
	if err != nil {
		log.Fatalf("failed to parse query: %v", err)
	}

	switch q.QueryType {
	case parser.QueryTypeSelect:
		result, err := executor.ExecuteSelect(store, owner, q)
		if err != nil {
			log.Fatalf("failed to execute query: %v", err)
		}
		printSelectResult(result)

	case parser.QueryTypeAsk:
		answer, err := executor.Ask(store, owner, q)
		if err != nil {
			log.Fatalf("failed to execute query: %v", err)
		}
		fmt.Printf("Result: %t\n", answer)

	case parser.QueryTypeConstruct:
		triples, err := executor.Construct(store, owner, q)
		if err != nil {
			log.Fatalf("failed to execute query: %v", err)
		}
		data, err := resultio.ConstructNTriples(triples)
		if err != nil {
			log.Fatalf("failed to format result: %v", err)
		}
		os.Stdout.Write(data)

	default:
		log.Fatalf("unknown query type")
	}
}

func printSelectResult(result *executor.Result) {
	fmt.Println("Results:")
	fmt.Print("| ")
	for _, v := range result.Vars {
		fmt.Printf("%-20s | ", v)
	}
	fmt.Println()

	for _, row := range result.Rows {
		fmt.Print("| ")
		for _, v := range result.Vars {
			val, ok := row.Lookup(v)
			if !ok || !val.IsBound() {
				fmt.Printf("%-20s | ", "")
				continue
			}
			term, err := filter.ToTerm(val)
			if err != nil {
				fmt.Printf("%-20s | ", "")
				continue
			}
			fmt.Printf("%-20s | ", formatTerm(term))
		}
		fmt.Println()
	}
	fmt.Printf("\nFound %d results\n", len(result.Rows))
}

func runServer(addr string) {
	fmt.Printf("Opening store at: %s\n", dbPath)
	store := openStore()
	defer store.Close()

	live, err := store.QueryCurrent(new(int), facade.Pattern{})
	if err != nil {
		log.Fatalf("count quads: %v", err)
	}
	fmt.Printf("Store loaded with %d live quads\n", len(live))

	srv := httpapi.NewServer(store, logging.Default(), addr)
	fmt.Printf("\nTrigo SPARQL endpoint starting...\n")
	fmt.Printf("   Endpoint: http://%s/sparql\n", addr)
	fmt.Printf("   Update:   http://%s/update\n", addr)
	fmt.Printf("   Load:     http://%s/data\n\n", addr)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	if err := srv.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func formatTerm(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		iri := t.IRI
		for i := len(iri) - 1; i >= 0; i-- {
			if iri[i] == '/' || iri[i] == '#' {
				return iri[i+1:]
			}
		}
		return iri
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}
