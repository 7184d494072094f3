package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/pkg/resultio"
)

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.log.Printf("request error: %s", message)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, statusCode, message)
}

// negotiateFormat picks a SPARQL results serialisation from the
// request's Accept header, defaulting to JSON.
func negotiateFormat(accept string) string {
	accept = strings.ToLower(accept)
	switch {
	case strings.Contains(accept, "application/sparql-results+xml"),
		strings.Contains(accept, "text/xml"),
		strings.Contains(accept, "application/xml"):
		return "xml"
	case strings.Contains(accept, "text/csv"):
		return "csv"
	case strings.Contains(accept, "text/tab-separated-values"):
		return "tsv"
	default:
		return "json"
	}
}

func (s *Server) writeSelect(w http.ResponseWriter, result *executor.Result, format string) {
	var data []byte
	var err error
	var contentType string

	switch format {
	case "xml":
		contentType = "application/sparql-results+xml; charset=utf-8"
		data, err = resultio.SelectXML(result)
	case "csv":
		contentType = "text/csv; charset=utf-8"
		data, err = resultio.SelectCSV(result)
	case "tsv":
		contentType = "text/tab-separated-values; charset=utf-8"
		data, err = resultio.SelectTSV(result)
	default:
		contentType = "application/sparql-results+json; charset=utf-8"
		data, err = resultio.SelectJSON(result)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("formatting error: %v", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeAsk(w http.ResponseWriter, answer bool, format string) {
	var data []byte
	var err error
	var contentType string

	switch format {
	case "xml":
		contentType = "application/sparql-results+xml; charset=utf-8"
		data, err = resultio.AskXML(answer)
	case "csv":
		contentType = "text/csv; charset=utf-8"
		data, err = resultio.AskCSV(answer)
	case "tsv":
		contentType = "text/tab-separated-values; charset=utf-8"
		data, err = resultio.AskTSV(answer)
	default:
		contentType = "application/sparql-results+json; charset=utf-8"
		data, err = resultio.AskJSON(answer)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("formatting error: %v", err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
