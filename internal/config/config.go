package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the BFF process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DirectoryBaseURL string
	CatalogBaseURL   string
	WalletBaseURL    string
	BookingBaseURL   string

	SearchTimeout  time.Duration
	BalanceTimeout time.Duration
	SubmitTimeout  time.Duration
	FixTimeout     time.Duration

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		SearchTimeout:   10 * time.Second,
		BalanceTimeout:  8 * time.Second,
		SubmitTimeout:   30 * time.Second,
		FixTimeout:      7 * time.Second,
		SessionTTL:      30 * time.Minute,
		KafkaTopic:      "booking-events",
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.DirectoryBaseURL = strings.TrimSpace(os.Getenv("DIRECTORY_BASE_URL"))
	cfg.CatalogBaseURL = strings.TrimSpace(os.Getenv("CATALOG_BASE_URL"))
	cfg.WalletBaseURL = strings.TrimSpace(os.Getenv("WALLET_BASE_URL"))
	cfg.BookingBaseURL = strings.TrimSpace(os.Getenv("BOOKING_BASE_URL"))

	setDurationFromEnv(&cfg.SearchTimeout, "SEARCH_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.BalanceTimeout, "BALANCE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.SubmitTimeout, "SUBMIT_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.FixTimeout, "DEVICE_FIX_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.FixTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DEVICE_FIX_TIMEOUT must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
