package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/regdocs/internal/retrieval"
	"github.com/dgallion1/regdocs/internal/vectorstore"
)

// handleSearch runs a hybrid search. Unset knobs take the configured
// defaults.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req retrieval.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.Search.TopK
	}
	if req.Threshold <= 0 {
		req.Threshold = s.cfg.Search.Threshold
	}
	if req.GroupThreshold <= 0 {
		req.GroupThreshold = s.cfg.Search.GroupThreshold
	}

	res, err := s.retrieval.Search(r.Context(), req)
	if err != nil {
		s.serviceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type queryRequest struct {
	Filter vectorstore.Filter `json:"filter"`
	Limit  int                `json:"limit"`
}

// handleQuery lists rows by metadata only.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.retrieval.Query(r.Context(), req.Filter, req.Limit)
	if err != nil {
		s.serviceError(w, "query", err)
		return
	}
	if rows == nil {
		rows = []vectorstore.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

// serviceError maps retrieval and store errors onto status codes.
func (s *Server) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery),
		errors.Is(err, retrieval.ErrNoFields),
		errors.Is(err, retrieval.ErrUnboundedQuery):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, vectorstore.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, vectorstore.ErrSchemaMismatch):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error(op+" failed", "error", err)
		jsonError(w, op+" failed: "+err.Error(), http.StatusInternalServerError)
	}
}
