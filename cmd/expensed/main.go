package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/e6ai/expense-agent/internal/common"
	"github.com/e6ai/expense-agent/internal/credentials"
	"github.com/e6ai/expense-agent/internal/export"
	"github.com/e6ai/expense-agent/internal/llm/openai"
	"github.com/e6ai/expense-agent/internal/receipts"
	"github.com/e6ai/expense-agent/internal/repository"
	"github.com/e6ai/expense-agent/internal/server"
	"github.com/e6ai/expense-agent/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Error("open db", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	images, err := storage.NewLocalStorage(cfg.Storage.ImageDir)
	if err != nil {
		logger.Error("open image dir", "dir", cfg.Storage.ImageDir, "error", err)
		os.Exit(1)
	}

	creds, err := credentials.NewManager(ctx, credentials.NewKeyringStore(), logger)
	if err != nil {
		logger.Error("load credentials", "error", err)
		os.Exit(1)
	}

	go func() {
		for secret := range creds.Subscribe() {
			logger.Info("credentials.changed", "configured", secret != "")
		}
	}()

	extractor := openai.NewClient(openai.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		JPEGQuality: cfg.LLM.JPEGQuality,
		Timeout:     cfg.LLM.Timeout,
	}, creds, logger)

	repo := repository.NewReceiptRepository(db, logger)
	rs := receipts.NewService(repo, extractor, images, logger)
	es := export.NewService(repo, logger)

	srv := server.NewServer(rs, es, creds, logger)
	if err := srv.Run(ctx, cfg.Server.HTTPAddr, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
	logger.Info("bye")
}
