package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/parser"
	"github.com/aleksaelezovic/trigo/internal/sparql/update"
	"github.com/aleksaelezovic/trigo/pkg/ntriples"
	"github.com/aleksaelezovic/trigo/pkg/resultio"
)

// handleRoot reports a minimal landing page; most clients talk
// straight to /sparql.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "trigo SPARQL endpoint\n  query:  POST/GET /sparql\n  update: POST /update\n  load:   POST /data (N-Quads)\n")
}

// handleQuery implements the SPARQL 1.1 Protocol query operation.
// https://www.w3.org/TR/sparql11-protocol/
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "GET, POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	queryString, err := extractOperation(r, "query")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := parser.ParseQuery(queryString)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("parse error: %v", err))
		return
	}

	owner := newOwner()
	format := negotiateFormat(r.Header.Get("Accept"))

	switch q.QueryType {
	case parser.QueryTypeSelect:
		result, err := executor.ExecuteSelect(s.store, owner, q)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("execution error: %v", err))
			return
		}
		s.writeSelect(w, result, format)

	case parser.QueryTypeAsk:
		answer, err := executor.Ask(s.store, owner, q)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("execution error: %v", err))
			return
		}
		s.writeAsk(w, answer, format)

	case parser.QueryTypeConstruct:
		triples, err := executor.Construct(s.store, owner, q)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("execution error: %v", err))
			return
		}
		data, err := resultio.ConstructNTriples(triples)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("formatting error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "application/n-triples; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	default:
		s.writeError(w, http.StatusInternalServerError, "unknown query type")
	}
}

// handleUpdate implements the SPARQL 1.1 Protocol update operation:
// the body may hold several ';'-separated update operations, each
// applied in its own batch in order.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed, use POST")
		return
	}

	updateString, err := extractOperation(r, "update")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner := newOwner()
	var totalAffected int64
	for _, stmt := range parser.SplitUpdateRequest(updateString) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		u, err := parser.ParseUpdate(stmt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("parse error: %v", err))
			return
		}
		affected, err := update.Execute(s.store, owner, u)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("update error: %v", err))
			return
		}
		totalAffected += affected
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"affected":%d}`, totalAffected)
}

// handleDataUpload bulk-loads an N-Quads document in one batch, adding
// every quad directly with validFrom 0 and an open-ended validTo.
func (s *Server) handleDataUpload(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed, use POST")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	quads, err := ntriples.NewParser(string(body)).Parse()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("parse error: %v", err))
		return
	}

	owner := newOwner()
	batch, err := s.store.BeginBatch(owner)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("begin batch: %v", err))
		return
	}
	for _, quad := range quads {
		if err := batch.Add(quad, 0, quadstore.OpenFuture); err != nil {
			batch.Abort()
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("insert error: %v", err))
			return
		}
	}
	if err := batch.Commit(); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("commit error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"quadsInserted":%d}`, len(quads))
}

// extractOperation pulls the named SPARQL operation (query or update)
// out of the request: a URL query parameter (GET), an urlencoded form
// field, or, for a POST with any other Content-Type, the raw body.
func extractOperation(r *http.Request, param string) (string, error) {
	switch r.Method {
	case http.MethodGet:
		v := r.URL.Query().Get(param)
		if v == "" {
			return "", fmt.Errorf("missing '%s' parameter", param)
		}
		return v, nil

	case http.MethodPost:
		contentType := r.Header.Get("Content-Type")
		switch {
		case strings.Contains(contentType, "application/x-www-form-urlencoded"):
			if err := r.ParseForm(); err != nil {
				return "", fmt.Errorf("failed to parse form")
			}
			v := r.FormValue(param)
			if v == "" {
				return "", fmt.Errorf("missing '%s' parameter", param)
			}
			return v, nil
		default:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read request body")
			}
			return string(body), nil
		}

	default:
		return "", fmt.Errorf("method not allowed, use GET or POST")
	}
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
}

