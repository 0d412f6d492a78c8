package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pinmehq/toybox/internal/store"
)

const sessionTTL = 30 * 24 * time.Hour

// AuthHandler issues bearer sessions. The box trusts its household LAN;
// identifying as a family member is enough, there is no password step.
type AuthHandler struct {
	sessions *store.SessionStore
	logger   *slog.Logger
}

func NewAuthHandler(sessions *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: logger}
}

type loginRequest struct {
	UserID string `json:"userId"`
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	token, err := h.sessions.Create(req.UserID, sessionTTL)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
