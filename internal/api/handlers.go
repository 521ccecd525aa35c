package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/epimex/screenbot/internal/models"
)

// statusHandler reports liveness and the number of active conversations.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result := map[string]interface{}{
		"service":         "screenbot",
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"active_sessions": s.engine.SessionCount(),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// statsHandler reports aggregate recruitment statistics.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.store.Stats()
	if err != nil {
		slog.Error("Server.statsHandler: failed to load stats", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load statistics"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}
