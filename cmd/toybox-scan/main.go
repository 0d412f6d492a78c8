package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/pinmehq/toybox/internal/database"
	"github.com/pinmehq/toybox/internal/localcache"
	"github.com/pinmehq/toybox/internal/logging"
	"github.com/pinmehq/toybox/internal/notify"
	"github.com/pinmehq/toybox/internal/reminder"
	"github.com/pinmehq/toybox/internal/store"
)

// toybox-scan runs a single idle-toy scan against the database and exits.
// It is meant for cron on installs where the server is not always running.
func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("TOYBOX_LOG_LEVEL"))

	dbPath := os.Getenv("TOYBOX_DB_PATH")
	if dbPath == "" {
		dbPath = "toybox.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cacheDir := os.Getenv("TOYBOX_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = ".toybox-cache"
	}
	cache, err := localcache.Open(cacheDir, os.Getenv("TOYBOX_CACHE_PASSWORD"))
	if err != nil {
		logger.Error("failed to open settings cache", "error", err)
		os.Exit(1)
	}

	toys := store.NewToyStore(db)
	playSessions := store.NewPlaySessionStore(db)
	history := store.NewHistoryStore(db)
	schedule := store.NewScheduleStore(db)
	subs := store.NewSubscriptionStore(db)

	svc := notify.NewService(schedule, subs, history, nil, nil, logger.With("component", "notify"))
	settings := reminder.NewSettingsStore(cache, store.NewReminderSettingsStore(db), logger.With("component", "settings"))
	engine := reminder.NewIdleEngine(toys, playSessions, history, svc, logger.With("component", "idle"))

	ctx := context.Background()
	idleSettings := settings.LoadIdleToy(ctx)
	if !idleSettings.Enabled {
		logger.Info("idle reminders disabled, nothing to do")
		return
	}

	engine.RunScan(ctx, idleSettings)
	logger.Info("idle scan complete")
}
