package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/54b3r/terracoder/internal/logging"
	"github.com/54b3r/terracoder/internal/store"
)

const (
	// defaultHistoryLimit is the number of records returned when the caller
	// passes no ?limit.
	defaultHistoryLimit = 10
	// maxHistoryLimit caps ?limit so one request cannot drag the whole table
	// over the wire.
	maxHistoryLimit = 50
)

// handleHistory handles GET /api/history?limit=<n>. Records are scoped to
// the calling client and returned newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONError(w, "history is not enabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.store.Recent(r.Context(), clientIP(r), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("history query failed", slog.Any("error", err))
		writeJSONError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Records: records, Count: len(records)})
}
