package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// StorageConfig holds receipt image storage configuration
type StorageConfig struct {
	ImageDir string
}

// LLMConfig holds extraction model configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	JPEGQuality int
	Timeout     time.Duration
}

// LoadConfig loads configuration from the environment. A .env file in the
// working directory is read first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/expense-agent.db"),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			ImageDir: getEnv("IMAGE_DIR", "./data/images"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			MaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 300),
			JPEGQuality: getEnvAsInt("JPEG_QUALITY", 60),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "DB_PATH is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.LLM.JPEGQuality < 1 || c.LLM.JPEGQuality > 100 {
		return NewAppError("CONFIG_ERROR", "JPEG_QUALITY must be 1..100", ErrInvalidInput)
	}
	return nil
}
