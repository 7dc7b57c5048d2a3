package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/cache"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/config"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/fetcher"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/notify"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/pipeline"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/scheduler"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/server"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	kv, err := store.Open(ctx, cfg.StoreURL)
	cancel()
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	c := cache.New()
	f := fetcher.New(cfg)
	p := pipeline.New(f, store.NewHistory(kv), c, notify.NewDiscord(cfg.DiscordWebhook))

	var sched *scheduler.Scheduler
	if cfg.EnableCron {
		runAll := func(ctx context.Context) error {
			return p.RunAll(ctx, cfg.AppID, cfg.Countries)
		}

		sched, err = scheduler.New(cfg.CronSchedule, cfg.Timezone, runAll)
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}

		// Run once immediately on startup
		go func() {
			slog.Info("running initial cycle", "app_id", cfg.AppID, "countries", cfg.Countries)
			if err := runAll(context.Background()); err != nil {
				slog.Error("initial cycle failed", "error", err)
			}
		}()

		sched.Start()
		slog.Info("cron enabled", "schedule", cfg.CronSchedule, "timezone", cfg.Timezone.String())
	} else {
		slog.Info("cron disabled")
	}

	srv := server.New(cfg, c, p)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
