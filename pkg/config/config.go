package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the engine.
type Config struct {
	// Logging
	LogLevel string
	LogFile  string

	// Rule table and registry seed (YAML); empty disables loading.
	RulesPath string
	SeedPath  string

	// Risk limits
	RiskMaxPositionSize  float64
	RiskMaxDailyLoss     float64
	RiskMaxOrderValue    float64
	RiskAbsoluteNotional bool

	// Dispatch
	ExecutorWorkers    int
	ExecutorRatePerSec float64 // 0 = unlimited
	ExecutorBurst      int
	OrderQueueSize     int

	// Idle flat risk ledgers older than this are dropped; 0 keeps them.
	LedgerIdleTTL time.Duration
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:              getEnv("LOG_FILE", ""),
		RulesPath:            getEnv("RULES_PATH", ""),
		SeedPath:             getEnv("SEED_PATH", ""),
		RiskMaxPositionSize:  getEnvFloat("RISK_MAX_POSITION_SIZE", 1000.0),
		RiskMaxDailyLoss:     getEnvFloat("RISK_MAX_DAILY_LOSS", 5000.0),
		RiskMaxOrderValue:    getEnvFloat("RISK_MAX_ORDER_VALUE", 10000.0),
		RiskAbsoluteNotional: getEnvBool("RISK_ABSOLUTE_NOTIONAL", false),
		ExecutorWorkers:      getEnvInt("EXECUTOR_WORKERS", 4),
		ExecutorRatePerSec:   getEnvFloat("EXECUTOR_RATE_PER_SEC", 0),
		ExecutorBurst:        getEnvInt("EXECUTOR_BURST", 1),
		OrderQueueSize:       getEnvInt("ORDER_QUEUE_SIZE", 100),
		LedgerIdleTTL:        getEnvDuration("LEDGER_IDLE_TTL", 24*time.Hour),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
