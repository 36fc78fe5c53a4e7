package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/regdocs/internal/retrieval"
)

// pageParams reads the file name and page number from the route.
func pageParams(r *http.Request) (string, int, error) {
	fileName, err := url.PathUnescape(chi.URLParam(r, "fileName"))
	if err != nil || fileName == "" {
		return "", 0, errors.New("invalid file name")
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		return "", 0, errors.New("page must be a positive integer")
	}
	return fileName, page, nil
}

func decodeFields(r *http.Request) (retrieval.PageFields, error) {
	var f retrieval.PageFields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, err
	}
	return f, nil
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	fileName, page, err := pageParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fields, err := decodeFields(r)
	if err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	n, err := s.retrieval.UpdatePage(r.Context(), fileName, page, fields)
	if err != nil {
		s.serviceError(w, "update page", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_name": fileName, "page_number": page, "updated": n})
}

// handleUpsertPage updates the page or inserts a placeholder row for it.
func (s *Server) handleUpsertPage(w http.ResponseWriter, r *http.Request) {
	fileName, page, err := pageParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fields, err := decodeFields(r)
	if err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.retrieval.UpsertPage(r.Context(), fileName, page, fields)
	if err != nil {
		s.serviceError(w, "upsert page", err)
		return
	}
	code := http.StatusOK
	if res.Inserted {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	fileName, page, err := pageParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := s.retrieval.DeletePage(r.Context(), fileName, page)
	if err != nil {
		s.serviceError(w, "delete page", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_name": fileName, "page_number": page, "deleted": n})
}
