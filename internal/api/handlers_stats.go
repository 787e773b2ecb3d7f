package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.gemini == nil || s.gemini.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":       s.gemini.Model(),
		"stats":       s.gemini.Stats.Snapshot(),
		"queue_depth": s.manager.QueueDepth(),
	})
}
