package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SougoEdo/tardis-api-middleware/internal/config"
	"github.com/SougoEdo/tardis-api-middleware/internal/job"
	"github.com/SougoEdo/tardis-api-middleware/internal/notify"
	"github.com/SougoEdo/tardis-api-middleware/internal/notify/telegram"
	"github.com/SougoEdo/tardis-api-middleware/internal/platform/sqlite"
	jobrepo "github.com/SougoEdo/tardis-api-middleware/internal/repository/job"
	"github.com/SougoEdo/tardis-api-middleware/internal/server"
	"github.com/SougoEdo/tardis-api-middleware/internal/tardis"
)

func main() {
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so in-flight downloads stop
	// promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Open database
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := jobrepo.NewRepository(db.DB)

	// Notification sink: log-only when Telegram is not configured.
	var sender notify.Sender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sender = telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	} else {
		slog.Warn("telegram not configured, notifications disabled")
	}
	notifier := notify.New(sender)

	downloader := tardis.New(cfg.TardisAPIKey, tardis.WithWorkers(cfg.DownloadWorkers))

	runner := job.NewRunner(rootCtx, repo, downloader, notifier)
	jobSvc := job.NewService(repo, runner, cfg.DefaultOutputPath)

	// Jobs left pending/running by a previous process get failed up front;
	// their runner goroutines died with that process.
	if err := jobSvc.RecoverInterrupted(rootCtx); err != nil {
		slog.Error("failed to recover interrupted jobs", "error", err)
	}

	srv := server.New(rootCtx, cfg, jobSvc)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	<-done

	// Cancel the root context first so running downloads begin winding down,
	// then wait for their goroutines before closing the database.
	rootCancel()
	runner.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
