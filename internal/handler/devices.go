package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pinmehq/toybox/internal/auth"
	"github.com/pinmehq/toybox/internal/device"
	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/store"
)

type DeviceHandler struct {
	devices     *store.DeviceStore
	provisioner *device.Provisioner
	logger      *slog.Logger
}

func NewDeviceHandler(devices *store.DeviceStore, provisioner *device.Provisioner, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, provisioner: provisioner, logger: logger}
}

type registerDeviceRequest struct {
	Name string `json:"name"`
}

// Register handles POST /api/devices. The provisioning key in the
// response is shown exactly once.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	dev, key, err := h.provisioner.Register(auth.UserID(r.Context()), req.Name)
	if err != nil {
		h.logger.Error("register device", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to register device"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"device":          dev,
		"provisioningKey": key,
	})
}

// List handles GET /api/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list devices", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list devices"})
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// Delete handles DELETE /api/devices/{id}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.devices.Delete(r.PathValue("id")); err != nil {
		h.logger.Error("delete device", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete device"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenRequest struct {
	Key string `json:"key"`
}

// IssueToken handles POST /api/devices/{id}/token. Readers exchange their
// provisioning key for a signed bearer token here. Unauthenticated but
// rate limited.
func (h *DeviceHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	token, err := h.provisioner.IssueToken(r.PathValue("id"), req.Key)
	if err != nil {
		if errors.Is(err, device.ErrBadKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid device or key"})
			return
		}
		h.logger.Error("issue device token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
