// Package httpapi implements the SPARQL 1.1 Protocol HTTP endpoint
// (spec §6): query and update operations over the facade store, plus
// a bulk N-Quads load endpoint.
package httpapi

import (
	"net/http"
	"time"

	"github.com/aleksaelezovic/trigo/internal/facade"
	"github.com/aleksaelezovic/trigo/internal/logging"
)

// Server is the HTTP SPARQL endpoint.
type Server struct {
	store *facade.Store
	log   logging.Logger
	addr  string
}

// NewServer creates a SPARQL HTTP server bound to addr, serving store.
func NewServer(store *facade.Store, log logging.Logger, addr string) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{store: store, log: log, addr: addr}
}

// Start blocks serving the endpoint until the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/sparql", s.handleQuery)
	mux.HandleFunc("/update", s.handleUpdate)
	mux.HandleFunc("/data", s.handleDataUpload)
	mux.HandleFunc("/", s.handleRoot)

	server := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Printf("serving SPARQL endpoint at http://%s/sparql", s.addr)
	return server.ListenAndServe()
}

// newOwner mints a fresh lock-ownership token for one request: every
// facade call this request makes shares it, but two concurrent
// requests never collide (spec §5's reader/writer lock is keyed per
// flow, not globally).
func newOwner() any { return new(int) }
