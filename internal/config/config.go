package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	AppEnv       string `env:"APP_ENV" default:"development"`
	Port         string `env:"PORT" default:"8080"`
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`
	StoreBackend string `env:"STORE_BACKEND" default:"memory"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`
	ProofSecret  string `env:"PROOF_SECRET"`

	AggregationInterval time.Duration `env:"AGGREGATION_INTERVAL" default:"3m"`
	FusionInterval      time.Duration `env:"FUSION_INTERVAL" default:"10m"`
	SubmissionWindow    time.Duration `env:"SUBMISSION_WINDOW" default:"2h"`
	MaxPerWindow        int64         `env:"MAX_PER_WINDOW" default:"1"`
	RewardCooldown      time.Duration `env:"REWARD_COOLDOWN" default:"2h"`
	MaxMintsPerHour     int64         `env:"MAX_MINTS_PER_HOUR" default:"100"`
	VolatilityThreshold float64       `env:"VOLATILITY_THRESHOLD" default:"0.15"`
	FusionThreshold     int64         `env:"FUSION_THRESHOLD" default:"75"`
	TimestampDriftBound time.Duration `env:"TIMESTAMP_DRIFT_BOUND" default:"5m"`

	MaxFederationClients int     `env:"MAX_FEDERATION_CLIENTS" default:"10000"`
	IntakeRatePerSecond  float64 `env:"INTAKE_RATE_PER_SECOND" default:"20"`
	IntakeBurst          int     `env:"INTAKE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ProofSecret == "" {
		return fmt.Errorf("PROOF_SECRET is required")
	}
	if len(cfg.ProofSecret) < 16 {
		return fmt.Errorf("PROOF_SECRET must be at least 16 characters")
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, cfg.StoreBackend)
	}

	if cfg.VolatilityThreshold <= 0 || cfg.VolatilityThreshold > 1 {
		return fmt.Errorf("VOLATILITY_THRESHOLD must be in (0, 1], got %v", cfg.VolatilityThreshold)
	}
	if cfg.MaxPerWindow < 1 {
		return fmt.Errorf("MAX_PER_WINDOW must be at least 1, got %d", cfg.MaxPerWindow)
	}
	if cfg.MaxMintsPerHour < 1 {
		return fmt.Errorf("MAX_MINTS_PER_HOUR must be at least 1, got %d", cfg.MaxMintsPerHour)
	}
	if cfg.AggregationInterval <= 0 {
		return fmt.Errorf("AGGREGATION_INTERVAL must be positive, got %v", cfg.AggregationInterval)
	}
	if cfg.FusionInterval <= 0 {
		return fmt.Errorf("FUSION_INTERVAL must be positive, got %v", cfg.FusionInterval)
	}
	if cfg.TimestampDriftBound <= 0 {
		return fmt.Errorf("TIMESTAMP_DRIFT_BOUND must be positive, got %v", cfg.TimestampDriftBound)
	}

	if cfg.AppEnv == "production" && cfg.DatabaseURL != "" {
		if err := checkProductionSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func checkProductionSSL(databaseURL string) error {
	lower := strings.ToLower(databaseURL)
	for _, mode := range []string{"disable", "allow"} {
		if strings.Contains(lower, "sslmode="+mode) {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}
	return nil
}
