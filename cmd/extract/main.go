package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/common"
	"github.com/e6ai/expense-agent/internal/credentials"
	"github.com/e6ai/expense-agent/internal/llm/openai"
)

// staticSecret serves an API key taken from the environment.
type staticSecret string

func (s staticSecret) Get() string { return string(s) }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: extract <image-path>")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	path := os.Args[1]
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		logger.Error("unsupported file type", "path", path)
		os.Exit(2)
	}
	image, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read image", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
	defer cancel()

	var secrets openai.SecretSource
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets = staticSecret(key)
	} else {
		manager, err := credentials.NewManager(ctx, credentials.NewKeyringStore(), logger)
		if err != nil {
			logger.Error("load credentials", "error", err)
			os.Exit(1)
		}
		secrets = manager
	}

	client := openai.NewClient(openai.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		JPEGQuality: cfg.LLM.JPEGQuality,
		Timeout:     cfg.LLM.Timeout,
	}, secrets, logger)

	result, _, err := client.Extract(ctx, image)
	if err != nil {
		logger.Error("extract", "error", err)
		os.Exit(1)
	}

	out := map[string]any{
		"vendor":   result.Vendor,
		"amount":   result.Amount,
		"currency": result.Currency,
		"date":     result.Date.Format("2006-01-02"),
		"category": string(result.Category),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
