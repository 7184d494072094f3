package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aleksaelezovic/trigo/internal/config"
	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default(t.TempDir())
	store, err := facade.Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(store, logging.Discard(), "localhost:0")
}

func TestHandleDataUploadThenQuery(t *testing.T) {
	s := newTestServer(t)

	body := `<http://example.org/alice> <http://example.org/knows> <http://example.org/bob> .` + "\n"
	req := httptest.NewRequest(http.MethodPost, "/data", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleDataUpload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"quadsInserted":1`) {
		t.Fatalf("expected quadsInserted:1, got %s", rec.Body.String())
	}

	query := `SELECT ?o WHERE { <http://example.org/alice> <http://example.org/knows> ?o }`
	form := url.Values{"query": {query}}
	qreq := httptest.NewRequest(http.MethodPost, "/sparql", strings.NewReader(form.Encode()))
	qreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	qrec := httptest.NewRecorder()
	s.handleQuery(qrec, qreq)

	if qrec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", qrec.Code, qrec.Body.String())
	}
	if !strings.Contains(qrec.Body.String(), "http://example.org/bob") {
		t.Fatalf("expected bob in results, got %s", qrec.Body.String())
	}
}

func TestHandleUpdateThenClear(t *testing.T) {
	s := newTestServer(t)

	update := `INSERT DATA { <http://example.org/a> <http://example.org/p> "1" }`
	req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader(update))
	req.Header.Set("Content-Type", "application/sparql-update")
	rec := httptest.NewRecorder()
	s.handleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"affected":1`) {
		t.Fatalf("expected affected:1, got %s", rec.Body.String())
	}
}

func TestHandleQueryMissingParamReturnsBadRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sparql", nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQueryAskViaGET(t *testing.T) {
	s := newTestServer(t)

	body := `<http://example.org/a> <http://example.org/p> "1" .` + "\n"
	dreq := httptest.NewRequest(http.MethodPost, "/data", strings.NewReader(body))
	drec := httptest.NewRecorder()
	s.handleDataUpload(drec, dreq)
	if drec.Code != http.StatusOK {
		t.Fatalf("seed upload failed: %d %s", drec.Code, drec.Body.String())
	}

	query := url.QueryEscape(`ASK { <http://example.org/a> <http://example.org/p> "1" }`)
	req := httptest.NewRequest(http.MethodGet, "/sparql?query="+query, nil)
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"boolean":true`) {
		t.Fatalf("expected boolean:true, got %s", rec.Body.String())
	}
}

func TestNegotiateFormat(t *testing.T) {
	cases := map[string]string{
		"application/sparql-results+json": "json",
		"application/sparql-results+xml":  "xml",
		"text/csv":                        "csv",
		"text/tab-separated-values":       "tsv",
		"":                                "json",
	}
	for accept, want := range cases {
		if got := negotiateFormat(accept); got != want {
			t.Fatalf("negotiateFormat(%q) = %q, want %q", accept, got, want)
		}
	}
}
