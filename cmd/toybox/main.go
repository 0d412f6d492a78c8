package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pinmehq/toybox/internal/backup"
	"github.com/pinmehq/toybox/internal/database"
	"github.com/pinmehq/toybox/internal/localcache"
	"github.com/pinmehq/toybox/internal/logging"
	"github.com/pinmehq/toybox/internal/push"
	"github.com/pinmehq/toybox/internal/server"
)

func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("TOYBOX_LOG_LEVEL"))

	port := os.Getenv("TOYBOX_PORT")
	if port == "" {
		port = "8080"
	}

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

	vapidPublic := os.Getenv("TOYBOX_VAPID_PUBLIC_KEY")
	vapidPrivate := os.Getenv("TOYBOX_VAPID_PRIVATE_KEY")
	if vapidPublic == "" || vapidPrivate == "" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			logger.Error("failed to generate VAPID keys", "error", err)
			os.Exit(1)
		}
		vapidPublic, vapidPrivate = pub, priv
		logger.Warn("generated ephemeral VAPID keys; set TOYBOX_VAPID_PUBLIC_KEY and TOYBOX_VAPID_PRIVATE_KEY to keep push subscriptions across restarts",
			"public_key", vapidPublic)
	}

	deviceSecret := os.Getenv("TOYBOX_DEVICE_SECRET")
	if deviceSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Error("failed to generate device secret", "error", err)
			os.Exit(1)
		}
		deviceSecret = hex.EncodeToString(buf)
		logger.Warn("generated ephemeral device secret; set TOYBOX_DEVICE_SECRET to keep reader tokens valid across restarts")
	}

	backupHour := 3
	if v := os.Getenv("TOYBOX_BACKUP_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			backupHour = h
		}
	}

	cfg := server.Config{
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		DeviceSecret:    deviceSecret,
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("TOYBOX_S3_ENDPOINT"),
				Bucket:    os.Getenv("TOYBOX_S3_BUCKET"),
				Region:    os.Getenv("TOYBOX_S3_REGION"),
				AccessKey: os.Getenv("TOYBOX_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("TOYBOX_S3_SECRET_KEY"),
			},
			DBPath: dbPath,
			Hour:   backupHour,
		},
	}

	srv := server.New(db, cache, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.NotifyService().Start(ctx)
	defer srv.NotifyService().Stop()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Restore reminder state from the last run
	lp := srv.Settings().LoadLongPlay(ctx)
	if lp.Enabled {
		if err := srv.Monitor().Start(ctx, lp); err != nil {
			logger.Error("failed to start long-play monitor", "error", err)
		}
	}
	defer srv.Monitor().Stop()

	tidy := srv.Settings().LoadTidying(ctx)
	if warning, err := srv.TidyUp().Apply(ctx, tidy); err != nil {
		logger.Error("failed to apply tidy-up schedule", "error", err)
	} else if warning != "" {
		logger.Warn("tidy-up schedule", "warning", warning)
	}

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				}
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("toybox starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
