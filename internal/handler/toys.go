package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pinmehq/toybox/internal/auth"
	"github.com/pinmehq/toybox/internal/events"
	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/store"
	ws "github.com/pinmehq/toybox/internal/websocket"
)

type ToyHandler struct {
	toys     *store.ToyStore
	sessions *store.PlaySessionStore
	bus      *events.Bus
	hub      *ws.Hub
	logger   *slog.Logger
}

func NewToyHandler(toys *store.ToyStore, sessions *store.PlaySessionStore, bus *events.Bus, hub *ws.Hub, logger *slog.Logger) *ToyHandler {
	return &ToyHandler{toys: toys, sessions: sessions, bus: bus, hub: hub, logger: logger}
}

// List handles GET /api/toys
func (h *ToyHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	var (
		toys []model.Toy
		err  error
	)
	if status != "" {
		if status != model.ToyStatusIn && status != model.ToyStatusOut {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be in or out"})
			return
		}
		toys, err = h.toys.ListByStatus(status)
	} else {
		toys, err = h.toys.List()
	}
	if err != nil {
		h.logger.Error("list toys", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list toys"})
		return
	}
	if toys == nil {
		toys = []model.Toy{}
	}
	writeJSON(w, http.StatusOK, toys)
}

// Get handles GET /api/toys/{id}
func (h *ToyHandler) Get(w http.ResponseWriter, r *http.Request) {
	toy, err := h.toys.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get toy", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get toy"})
		return
	}
	if toy == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "toy not found"})
		return
	}
	writeJSON(w, http.StatusOK, toy)
}

type createToyRequest struct {
	Name     string  `json:"name"`
	Owner    *string `json:"owner"`
	PhotoURL string  `json:"photoUrl"`
	Location string  `json:"location"`
}

// Create handles POST /api/toys
func (h *ToyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createToyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	toy, err := h.toys.Create(req.Name, req.Owner, req.PhotoURL, req.Location)
	if err != nil {
		h.logger.Error("create toy", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create toy"})
		return
	}
	writeJSON(w, http.StatusCreated, toy)
}

// Delete handles DELETE /api/toys/{id}
func (h *ToyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.toys.Delete(r.PathValue("id")); err != nil {
		h.logger.Error("delete toy", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete toy"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /api/toys/{id}/checkout
func (h *ToyHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.ToyStatusOut)
}

// Checkin handles POST /api/toys/{id}/checkin
func (h *ToyHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.ToyStatusIn)
}

func (h *ToyHandler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	toy, err := h.toys.UpdateStatus(r.PathValue("id"), status)
	if err != nil {
		h.logger.Error("update toy status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update toy"})
		return
	}
	if toy == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "toy not found"})
		return
	}

	h.bus.Publish(*toy)
	h.hub.ToyUpdated(*toy)
	writeJSON(w, http.StatusOK, toy)
}

type scanRequest struct {
	ToyID string `json:"toyId"`
}

// Scan handles POST /api/scan, the endpoint RFID readers hit when a tag
// passes the antenna. A scan records the play session and toggles the
// toy's in/out status.
func (h *ToyHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ToyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "toyId is required"})
		return
	}

	toy, err := h.toys.GetByID(req.ToyID)
	if err != nil {
		h.logger.Error("scan lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to look up toy"})
		return
	}
	if toy == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "toy not found"})
		return
	}

	if err := h.sessions.RecordScan(toy.ID, time.Now().UTC()); err != nil {
		h.logger.Error("record scan", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record scan"})
		return
	}

	next := model.ToyStatusOut
	if toy.Status == model.ToyStatusOut {
		next = model.ToyStatusIn
	}
	toy, err = h.toys.UpdateStatus(toy.ID, next)
	if err != nil || toy == nil {
		h.logger.Error("toggle toy status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update toy"})
		return
	}

	h.logger.Info("toy scanned", "toy_id", toy.ID, "status", toy.Status, "device_id", auth.DeviceID(r.Context()))
	h.bus.Publish(*toy)
	h.hub.ToyUpdated(*toy)
	writeJSON(w, http.StatusOK, toy)
}

// Sessions handles GET /api/toys/{id}/sessions
func (h *ToyHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	sessions, err := h.sessions.ListByToy(r.PathValue("id"), limit)
	if err != nil {
		h.logger.Error("list play sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []model.PlaySession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
