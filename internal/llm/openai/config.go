package openai

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/e6ai/expense-agent/internal/imaging"
)

// Config for the OpenAI client.
type Config struct {
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o"
	Temperature float32       // near-deterministic by default
	MaxTokens   int           // small cap; only a flat JSON object is expected
	JPEGQuality int           // re-encode quality for the vision payload
	Timeout     time.Duration // http client timeout
}

// SecretSource supplies the bearer token for outbound requests. Satisfied by
// *credentials.Manager.
type SecretSource interface {
	Get() string
}

type Client struct {
	cfg     Config
	secrets SecretSource
	http    *http.Client
	log     *slog.Logger

	busy chan struct{} // single-slot in-flight guard
}

func NewClient(cfg Config, secrets SecretSource, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = imaging.DefaultQuality
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		secrets: secrets,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger,
		busy:    make(chan struct{}, 1),
	}
}
