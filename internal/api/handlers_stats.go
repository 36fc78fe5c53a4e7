package api

import (
	"net/http"
)

func (s *Server) handleEmbedStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "embed stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.retrieval.Model(),
		"stats": s.stats.Snapshot(),
	})
}
