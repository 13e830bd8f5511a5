package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all environment-driven settings. Admin ids and reward
// defaults are injected into components at construction time, never read as
// ambient globals.
type Config struct {
	AppEnv   string
	LogLevel string

	TelegramToken string

	DatabaseURL string

	CryptoPayToken   string
	CryptoPayBaseURL string
	CryptoPayTimeout time.Duration

	WebhookSecret  string
	WebhookPath    string
	HTTPListenAddr string
	PublicBasePath string

	// RubUSDTRate is the static fallback rate (RUB per USDT) used when the
	// live exchange-rate lookup fails.
	RubUSDTRate        float64
	PriceMarkupPercent float64

	AdminIDs       []int64
	LogChannelID   int64
	SupportContact string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	MetricsNamespace string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabaseURL: getEnv("DATABASE_URL", "data/shop.db"),

		CryptoPayToken:   os.Getenv("CRYPTOBOT_TOKEN"),
		CryptoPayBaseURL: getEnv("CRYPTOBOT_BASE_URL", "https://pay.crypt.bot/api"),

		WebhookSecret:  os.Getenv("CRYPTOBOT_WEBHOOK_SECRET"),
		WebhookPath:    getEnv("CRYPTOBOT_WEBHOOK_PATH", "/cryptobot-webhook"),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBasePath: os.Getenv("PUBLIC_BASE_PATH"),

		SupportContact: getEnv("SUPPORT_CONTACT", "@support"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "vds_shop"),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var err error
	if cfg.CryptoPayTimeout, err = getEnvDuration("CRYPTOBOT_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.RubUSDTRate, err = getEnvFloat("RUB_USDT_RATE", 100); err != nil {
		return nil, err
	}
	if cfg.PriceMarkupPercent, err = getEnvFloat("PRICE_MARKUP_PERCENT", 30); err != nil {
		return nil, err
	}
	if cfg.LogChannelID, err = getEnvInt64("LOG_CHANNEL_ID", 0); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.RedisTLS = getEnv("REDIS_TLS", "false") == "true"

	if cfg.AdminIDs, err = parseIDList(os.Getenv("ADMIN_IDS")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsAdmin reports whether the Telegram id belongs to a configured admin.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
