package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/leitner/internal/ai"
	"github.com/example/leitner/internal/backup"
	"github.com/example/leitner/internal/bot"
	"github.com/example/leitner/internal/config"
	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/excel"
	"github.com/example/leitner/internal/ingest"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/scheduler"
	"github.com/example/leitner/internal/spaced_repetition"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	db, err := database.Connect(database.Options{Driver: cfg.DBType, Path: cfg.DBPath, URL: cfg.DatabaseURL})
	if err != nil {
		lg.Fatal("Failed to connect to database", "error", err)
	}
	store := database.NewStore(db)
	defer store.Close()

	leitner := spaced_repetition.NewLeitner()

	deps := bot.Deps{
		Store:    store,
		Leitner:  leitner,
		Backup:   backup.NewService(store, lg),
		Importer: excel.NewImporter(store.Vocabulary, lg),
		Log:      lg,
	}

	if cfg.AnalysisEnabled() {
		client, err := ai.New(ai.Config{
			BaseURL:        cfg.OpenAIBaseURL,
			APIKey:         cfg.OpenAIKey,
			Model:          cfg.OpenAIModel,
			TargetLanguage: cfg.TargetLanguage,
			NativeLanguage: cfg.NativeLanguage,
		}, lg)
		if err != nil {
			lg.Fatal("Failed to create analysis client", "error", err)
		}
		deps.Pipeline = ingest.NewPipeline(store, client, lg)
		deps.Roots = client
	} else {
		lg.Warn("OPENAI_API_KEY is not set, text analysis is disabled")
		deps.Pipeline = ingest.NewPipeline(store, nil, lg)
	}

	botConfig := bot.DefaultConfig()
	botConfig.OwnerChatID = cfg.TelegramChatID

	b, err := bot.New(cfg.TelegramToken, botConfig, deps)
	if err != nil {
		lg.Fatal("Failed to create bot", "error", err)
	}

	if cfg.SchedulerEnabled && cfg.TelegramChatID != 0 {
		s := scheduler.New(b, store, leitner, scheduler.Window{
			StartHour: cfg.NotificationStartHour,
			EndHour:   cfg.NotificationEndHour,
		}, lg)
		if err := s.Start(); err != nil {
			lg.Fatal("Failed to start scheduler", "error", err)
		}
		defer s.Stop()
		lg.Info("Reminder scheduler started",
			"start_hour", cfg.NotificationStartHour, "end_hour", cfg.NotificationEndHour)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("Bot error", "error", err)
		}
	}()

	lg.Info("Bot started. Press Ctrl+C to stop.")
	sig := <-sigChan
	lg.Info("Received signal, shutting down", "signal", sig.String())

	cancel()
	b.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		lg.Warn("Shutdown timed out")
	}
	lg.Info("Bot stopped successfully")
}
