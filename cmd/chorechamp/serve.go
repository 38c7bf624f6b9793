package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechamp/internal/backup"
	"github.com/dukerupert/chorechamp/internal/server"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/weekly"
)

const cleanupInterval = 10 * time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the weekly reset scheduler",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, st, err := bootstrap()
	if err != nil {
		return err
	}
	defer st.Close()

	logger := slog.Default()
	clock := weekly.SystemClock(cfg.Location)

	srv := server.New(st, server.Options{
		SessionTTL:     cfg.SessionTTL,
		SecureCookie:   cfg.SecureCookie,
		AuthRateLimit:  cfg.AuthRateLimit,
		OriginPatterns: cfg.AllowedOrigins,
		Clock:          clock,

		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		VAPIDSubject:    cfg.VAPIDSubject,
	}, logger)
	if cfg.PushEnabled() {
		logger.Info("web push enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *weekly.Scheduler
	if cfg.WeeklyReset {
		sched = weekly.NewScheduler(st, clock, srv.Notifier(), cfg.WeeklyInterval, logger)
		sched.Start(ctx)
		logger.Info("weekly reset scheduler started", "interval", cfg.WeeklyInterval, "timezone", cfg.Location.String())
	}

	var backups *backup.Manager
	if cfg.Backup.Interval > 0 {
		db, err := sqliteHandle(st)
		if err != nil {
			return err
		}
		if backups, err = newBackupManager(cfg, db); err != nil {
			return err
		}
		backups.Start(ctx, cfg.Backup.Interval)
		logger.Info("backup scheduler started", "interval", cfg.Backup.Interval, "bucket", cfg.Backup.Bucket)
	}

	go cleanupLoop(ctx, srv, st, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", httpServer.Addr, "driver", cfg.DBDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if sched != nil {
		sched.Stop()
	}
	if backups != nil {
		backups.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// cleanupLoop drops expired rate limit windows and sessions until ctx ends.
func cleanupLoop(ctx context.Context, srv *server.Server, st store.Store, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup()
			n, err := st.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				logger.Error("session cleanup", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
