package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/reminder"
)

type SettingsHandler struct {
	settings *reminder.SettingsStore
	monitor  *reminder.LongPlayMonitor
	tidy     *reminder.TidyUpScheduler
	logger   *slog.Logger
}

func NewSettingsHandler(settings *reminder.SettingsStore, monitor *reminder.LongPlayMonitor, tidy *reminder.TidyUpScheduler, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, monitor: monitor, tidy: tidy, logger: logger}
}

// GetLongPlay handles GET /api/settings/longplay
func (h *SettingsHandler) GetLongPlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.LoadLongPlay(r.Context()))
}

// PutLongPlay handles PUT /api/settings/longplay. Saving also reconciles
// the running monitor: enabling starts it, disabling stops it and clears
// pending break reminders.
func (h *SettingsHandler) PutLongPlay(w http.ResponseWriter, r *http.Request) {
	var v model.LongPlaySettings
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	remoteSaved, err := h.settings.SaveLongPlay(r.Context(), v)
	if err != nil && !errors.Is(err, reminder.ErrNotLoggedIn) {
		h.logger.Error("save longplay settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		return
	}

	if v.Enabled {
		h.monitor.Stop()
		if err := h.monitor.Start(r.Context(), h.settings.LoadLongPlay(r.Context())); err != nil {
			h.logger.Error("restart long play monitor", "error", err)
		}
	} else {
		h.monitor.Stop()
		if err := h.monitor.CancelType(r.Context()); err != nil {
			h.logger.Error("cancel long play reminders", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settings":    h.settings.LoadLongPlay(r.Context()),
		"remoteSaved": remoteSaved,
	})
}

// GetIdleToy handles GET /api/settings/idletoy
func (h *SettingsHandler) GetIdleToy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.LoadIdleToy(r.Context()))
}

// PutIdleToy handles PUT /api/settings/idletoy
func (h *SettingsHandler) PutIdleToy(w http.ResponseWriter, r *http.Request) {
	var v model.IdleToySettings
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	remoteSaved, err := h.settings.SaveIdleToy(r.Context(), v)
	if err != nil && !errors.Is(err, reminder.ErrNotLoggedIn) {
		h.logger.Error("save idletoy settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settings":    h.settings.LoadIdleToy(r.Context()),
		"remoteSaved": remoteSaved,
	})
}

// GetTidying handles GET /api/settings/tidyup
func (h *SettingsHandler) GetTidying(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.LoadTidying(r.Context()))
}

// PutTidying handles PUT /api/settings/tidyup. The recurring schedule is
// reconciled immediately; a fire time inside the do-not-disturb window is
// scheduled anyway and reported back as a warning.
func (h *SettingsHandler) PutTidying(w http.ResponseWriter, r *http.Request) {
	var v model.TidyingSettings
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	remoteSaved, err := h.settings.SaveTidying(r.Context(), v)
	if err != nil && !errors.Is(err, reminder.ErrNotLoggedIn) {
		h.logger.Error("save tidyup settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		return
	}

	saved := h.settings.LoadTidying(r.Context())
	warning, err := h.tidy.Apply(r.Context(), saved)
	if err != nil {
		h.logger.Error("apply tidyup schedule", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to apply schedule"})
		return
	}

	resp := map[string]any{
		"settings":    saved,
		"remoteSaved": remoteSaved,
	}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sync handles POST /api/settings/sync, pulling the remote row into the
// local cache and re-applying the tidy-up schedule.
func (h *SettingsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	h.settings.SyncLocalFromRemote(r.Context())

	if _, err := h.tidy.Apply(r.Context(), h.settings.LoadTidying(r.Context())); err != nil {
		h.logger.Error("apply tidyup schedule after sync", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"longPlay": h.settings.LoadLongPlay(r.Context()),
		"idleToy":  h.settings.LoadIdleToy(r.Context()),
		"tidying":  h.settings.LoadTidying(r.Context()),
	})
}
