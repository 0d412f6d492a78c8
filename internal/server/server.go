package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pinmehq/toybox/internal/backup"
	"github.com/pinmehq/toybox/internal/device"
	"github.com/pinmehq/toybox/internal/events"
	"github.com/pinmehq/toybox/internal/handler"
	"github.com/pinmehq/toybox/internal/localcache"
	"github.com/pinmehq/toybox/internal/middleware"
	"github.com/pinmehq/toybox/internal/notify"
	"github.com/pinmehq/toybox/internal/push"
	"github.com/pinmehq/toybox/internal/reminder"
	"github.com/pinmehq/toybox/internal/store"
	ws "github.com/pinmehq/toybox/internal/websocket"
)

// Config holds the wiring knobs the server cannot derive itself.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	DeviceSecret    string
	Backup          backup.Config
}

type Server struct {
	db  *sql.DB
	hub *ws.Hub
	bus *events.Bus

	toyH      *handler.ToyHandler
	settingsH *handler.SettingsHandler
	reminderH *handler.ReminderHandler
	historyH  *handler.HistoryHandler
	pushH     *handler.PushHandler
	deviceH   *handler.DeviceHandler
	backupH   *handler.BackupHandler
	authH     *handler.AuthHandler

	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	provisioner  *device.Provisioner

	notifySvc *notify.Service
	settings  *reminder.SettingsStore
	idle      *reminder.IdleEngine
	monitor   *reminder.LongPlayMonitor
	tidy      *reminder.TidyUpScheduler
	backupMgr *backup.Manager

	logger *slog.Logger
}

func New(db *sql.DB, cache *localcache.Cache, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	bus := events.NewBus(logger.With("component", "events"))

	toyStore := store.NewToyStore(db)
	sessionStore := store.NewSessionStore(db)
	playStore := store.NewPlaySessionStore(db)
	historyStore := store.NewHistoryStore(db)
	scheduleStore := store.NewScheduleStore(db)
	subStore := store.NewSubscriptionStore(db)
	deviceStore := store.NewDeviceStore(db)
	settingsStore := store.NewReminderSettingsStore(db)

	var pushSvc *push.Service
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	}

	notifySvc := notify.NewService(scheduleStore, subStore, historyStore, pushSvc, hub, logger.With("component", "notify"))
	settings := reminder.NewSettingsStore(cache, settingsStore, logger.With("component", "settings"))
	idle := reminder.NewIdleEngine(toyStore, playStore, historyStore, notifySvc, logger.With("component", "idle"))
	monitor := reminder.NewLongPlayMonitor(toyStore, playStore, notifySvc, idle, settings, bus, logger.With("component", "longplay"))
	tidy := reminder.NewTidyUpScheduler(notifySvc, logger.With("component", "tidyup"))

	issuer := device.NewTokenIssuer([]byte(cfg.DeviceSecret), device.DefaultTokenTTL)
	provisioner := device.NewProvisioner(deviceStore, issuer)

	backupMgr := backup.NewManager(cfg.Backup, db, logger)

	return &Server{
		db:           db,
		hub:          hub,
		bus:          bus,
		toyH:         handler.NewToyHandler(toyStore, playStore, bus, hub, logger.With("component", "toys")),
		settingsH:    handler.NewSettingsHandler(settings, monitor, tidy, logger.With("component", "settings_handler")),
		reminderH:    handler.NewReminderHandler(settings, idle, monitor, notifySvc, logger.With("component", "reminders")),
		historyH:     handler.NewHistoryHandler(historyStore, logger.With("component", "history")),
		pushH:        handler.NewPushHandler(subStore, pushSvc, logger.With("component", "push_handler")),
		deviceH:      handler.NewDeviceHandler(deviceStore, provisioner, logger.With("component", "devices")),
		backupH:      handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		authH:        handler.NewAuthHandler(sessionStore, logger.With("component", "auth")),
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(),
		provisioner:  provisioner,
		notifySvc:    notifySvc,
		settings:     settings,
		idle:         idle,
		monitor:      monitor,
		tidy:         tidy,
		backupMgr:    backupMgr,
		logger:       logger,
	}
}

// NotifyService returns the notification dispatcher for lifecycle control.
func (s *Server) NotifyService() *notify.Service {
	return s.notifySvc
}

// Settings returns the reminder settings store.
func (s *Server) Settings() *reminder.SettingsStore {
	return s.settings
}

// Monitor returns the long-play monitor for lifecycle control.
func (s *Server) Monitor() *reminder.LongPlayMonitor {
	return s.monitor
}

// TidyUp returns the tidy-up scheduler.
func (s *Server) TidyUp() *reminder.TidyUpScheduler {
	return s.tidy
}

// BackupManager returns the backup manager for lifecycle control.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /api/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("POST /api/devices/{id}/token", s.rateLimited(s.deviceH.IssueToken))
	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub))

	// Reader devices authenticate with their own tokens
	deviceAuth := middleware.RequireDevice(s.provisioner)
	mux.Handle("POST /api/scan", deviceAuth(http.HandlerFunc(s.toyH.Scan)))

	// Settings work signed out; saves land in the local cache only
	optional := middleware.OptionalSession(s.sessionStore)
	settingsMux := http.NewServeMux()
	settingsMux.HandleFunc("GET /api/settings/longplay", s.settingsH.GetLongPlay)
	settingsMux.HandleFunc("PUT /api/settings/longplay", s.settingsH.PutLongPlay)
	settingsMux.HandleFunc("GET /api/settings/idletoy", s.settingsH.GetIdleToy)
	settingsMux.HandleFunc("PUT /api/settings/idletoy", s.settingsH.PutIdleToy)
	settingsMux.HandleFunc("GET /api/settings/tidyup", s.settingsH.GetTidying)
	settingsMux.HandleFunc("PUT /api/settings/tidyup", s.settingsH.PutTidying)
	settingsMux.HandleFunc("POST /api/settings/sync", s.settingsH.Sync)
	mux.Handle("/api/settings/", optional(settingsMux))

	// Everything else requires a session
	protected := http.NewServeMux()
	s.registerProtectedRoutes(protected)
	mux.Handle("/api/", middleware.RequireSession(s.sessionStore)(protected))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/toys", s.toyH.List)
	mux.HandleFunc("POST /api/toys", s.toyH.Create)
	mux.HandleFunc("GET /api/toys/{id}", s.toyH.Get)
	mux.HandleFunc("DELETE /api/toys/{id}", s.toyH.Delete)
	mux.HandleFunc("POST /api/toys/{id}/checkout", s.toyH.Checkout)
	mux.HandleFunc("POST /api/toys/{id}/checkin", s.toyH.Checkin)
	mux.HandleFunc("GET /api/toys/{id}/sessions", s.toyH.Sessions)

	mux.HandleFunc("POST /api/reminders/idle-scan", s.reminderH.IdleScan)
	mux.HandleFunc("GET /api/reminders/status", s.reminderH.Status)

	mux.HandleFunc("GET /api/notifications", s.historyH.List)
	mux.HandleFunc("DELETE /api/notifications", s.historyH.Clear)

	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	mux.HandleFunc("POST /api/devices", s.deviceH.Register)
	mux.HandleFunc("GET /api/devices", s.deviceH.List)
	mux.HandleFunc("DELETE /api/devices/{id}", s.deviceH.Delete)

	mux.HandleFunc("GET /api/backup/status", s.backupH.Status)
	mux.HandleFunc("GET /api/backup/list", s.backupH.List)
	mux.HandleFunc("POST /api/backup/run", s.backupH.Run)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
