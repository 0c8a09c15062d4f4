package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	RedisURL      string
	RecordingsDir string
	LogLevel      string
	LogFormat     string

	// Listener connection limits.
	MaxListeners        int64
	MaxListenersPerIP   int
	ConnectionsPerSec   float64
	ConnectionBurst     int
}

func Load() (*Config, error) {
	// Best effort: .env is optional outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		RecordingsDir: getEnv("RECORDINGS_DIR", "rekaman"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.MaxListeners, err = getEnvInt64("MAX_LISTENERS", 200); err != nil {
		return nil, err
	}
	if cfg.MaxListenersPerIP, err = getEnvInt("MAX_LISTENERS_PER_IP", 10); err != nil {
		return nil, err
	}
	if cfg.ConnectionsPerSec, err = getEnvFloat("CONNECTIONS_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if cfg.ConnectionBurst, err = getEnvInt("CONNECTION_BURST", 20); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RecordingsDir == "" {
		return nil, fmt.Errorf("RECORDINGS_DIR must not be empty")
	}
	if cfg.MaxListeners <= 0 {
		return nil, fmt.Errorf("MAX_LISTENERS must be positive, got %d", cfg.MaxListeners)
	}
	if cfg.MaxListenersPerIP <= 0 {
		return nil, fmt.Errorf("MAX_LISTENERS_PER_IP must be positive, got %d", cfg.MaxListenersPerIP)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}
