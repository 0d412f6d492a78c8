package handler

import (
	"log/slog"
	"net/http"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/notify"
	"github.com/pinmehq/toybox/internal/reminder"
)

type ReminderHandler struct {
	settings *reminder.SettingsStore
	idle     *reminder.IdleEngine
	monitor  *reminder.LongPlayMonitor
	svc      *notify.Service
	logger   *slog.Logger
}

func NewReminderHandler(settings *reminder.SettingsStore, idle *reminder.IdleEngine, monitor *reminder.LongPlayMonitor, svc *notify.Service, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{settings: settings, idle: idle, monitor: monitor, svc: svc, logger: logger}
}

// IdleScan handles POST /api/reminders/idle-scan, running an immediate
// pass over every toy with the current idle settings.
func (h *ReminderHandler) IdleScan(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.LoadIdleToy(r.Context())
	if !settings.Enabled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "idle reminders are disabled"})
		return
	}

	h.idle.RunScan(r.Context(), settings)
	writeJSON(w, http.StatusOK, map[string]string{"status": "scanned"})
}

// Status handles GET /api/reminders/status
func (h *ReminderHandler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.Pending()
	if err != nil {
		h.logger.Error("list pending reminders", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list pending reminders"})
		return
	}
	if pending == nil {
		pending = []model.ScheduledNotification{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"monitorRunning": h.monitor.Running(),
		"pending":        pending,
	})
}
