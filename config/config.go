package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"bn-breakoutv1/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// AliceBlue credentials
	AliceUserID     string
	AliceAPIKey     string
	AlicePassword   string // only needed for the TOTP web login
	AliceTOTPSecret string // optional; empty means session via API key only

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Telegram alerts (optional; both empty disables the backend)
	TelegramBotToken string
	TelegramChatID   string

	// Generic webhook alerts (optional; empty disables the backend)
	WebhookURL string

	// Bank Nifty index quote source for the direction decision
	IndexExchange string
	IndexToken    string

	// Strategy defaults, used when no active config row exists
	StrategyName   string
	Underlying     string
	Exchange       string
	ForceDirection string // "LONG"/"SHORT" pre-set; empty derives from prices
	LotSize        int64
	TargetRupees   float64
	StoplossRupees float64
	WindowStart    string // "HH:MM"
	WindowEnd      string
	StrikeStep     float64 // rupees
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		AliceUserID:     mustEnv("ALICE_USER_ID"),
		AliceAPIKey:     mustEnv("ALICE_API_KEY"),
		AlicePassword:   getEnv("ALICE_PASSWORD", ""),
		AliceTOTPSecret: getEnv("ALICE_TOTP_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		// "Nifty Bank" spot index on NSE
		IndexExchange: getEnv("INDEX_EXCHANGE", "NSE"),
		IndexToken:    getEnv("INDEX_TOKEN", "26009"),

		StrategyName:   getEnv("STRATEGY_NAME", "Bank Nifty Auto"),
		Underlying:     getEnv("UNDERLYING", "BANKNIFTY"),
		Exchange:       getEnv("EXCHANGE", "NFO"),
		ForceDirection: getEnv("FORCE_DIRECTION", ""),
		LotSize:        getEnvInt64("LOT_SIZE", 1),
		TargetRupees:   getEnvFloat("TARGET_RUPEES", 500),
		StoplossRupees: getEnvFloat("STOPLOSS_RUPEES", 250),
		WindowStart:    getEnv("WINDOW_START", "09:15"),
		WindowEnd:      getEnv("WINDOW_END", "09:45"),
		StrikeStep:     getEnvFloat("STRIKE_STEP", 100),
	}
}

// ParseWindow parses the WindowStart/WindowEnd strings. Returns an error
// instead of exiting so callers can report which variable is bad.
func (c *Config) ParseWindow() (start, end model.TimeOfDay, err error) {
	start, err = model.ParseTimeOfDay(c.WindowStart)
	if err != nil {
		return start, end, fmt.Errorf("WINDOW_START: %w", err)
	}
	end, err = model.ParseTimeOfDay(c.WindowEnd)
	if err != nil {
		return start, end, fmt.Errorf("WINDOW_END: %w", err)
	}
	if end.Minutes() <= start.Minutes() {
		return start, end, fmt.Errorf("window end %s not after start %s", end, start)
	}
	return start, end, nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
