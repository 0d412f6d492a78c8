package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/store"
)

type HistoryHandler struct {
	history *store.HistoryStore
	logger  *slog.Logger
}

func NewHistoryHandler(history *store.HistoryStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// List handles GET /api/notifications
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	items, err := h.history.List(limit)
	if err != nil {
		h.logger.Error("list notification history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
		return
	}
	if items == nil {
		items = []model.NotificationHistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Clear handles DELETE /api/notifications
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(); err != nil {
		h.logger.Error("clear notification history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear notifications"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
