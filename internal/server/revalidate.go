package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleRevalidate drops cached renders of the path given in the query.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Path parameter is required"})
		return
	}

	if err := s.cache.Invalidate(path); err != nil {
		s.log.Warn("revalidating failed", zap.String("path", path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Error revalidating"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"revalidated": true,
		"now":         s.now().UnixMilli(),
	})
}
