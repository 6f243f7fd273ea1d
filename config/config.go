// Package config reads service settings from the environment.
//
// An optional .env file is loaded first; variables already set in the
// process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Addr           string
	Environment    string
	LogLevel       string
	LogFormat      string
	DatabasePath   string
	RatesFile      string
	DAPercentage   int    // 0 keeps the rates file value
	FitmentFactor  string // empty keeps the rates file value
	FrontendDir    string
	PublicURL      string
	AllowedOrigins []string
	MaxBodyBytes   int64
	TrustProxy     bool // take client IPs from X-Forwarded-For / X-Real-IP

	EmailEnabled bool
	EmailFrom    string
	FeedbackTo   string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPUseTLS   bool

	RedisAddr         string
	FeedbackRateLimit int // submissions per client per minute
	DispatchInterval  time.Duration
}

// LoadDotEnv loads the given files (".env" when none are given). Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the process environment.
func Load() Config {
	return Config{
		Addr:           getEnv("APP_ADDR", ":8080"),
		Environment:    getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		DatabasePath:   getEnv("DATABASE_PATH", "./paycalc.db"),
		RatesFile:      getEnv("RATES_FILE", ""),
		DAPercentage:   getEnvInt("DA_PERCENTAGE", 0),
		FitmentFactor:  getEnv("FITMENT_FACTOR", ""),
		FrontendDir:    getEnv("FRONTEND_DIR", ""),
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 65536)),
		TrustProxy:     getEnvBool("TRUST_PROXY_HEADERS", false),

		EmailEnabled: getEnvBool("EMAIL_ENABLED", false),
		EmailFrom:    getEnv("EMAIL_FROM", "no-reply@example.com"),
		FeedbackTo:   getEnv("FEEDBACK_TO", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:   getEnvBool("SMTP_USE_TLS", true),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		FeedbackRateLimit: getEnvInt("FEEDBACK_RATE_LIMIT", 5),
		DispatchInterval:  getEnvDuration("DISPATCH_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Fitment returns the configured fitment factor, or ok=false when unset.
func (c Config) Fitment() (decimal.Decimal, bool) {
	if c.FitmentFactor == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(c.FitmentFactor)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("APP_ADDR is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.DAPercentage < 0 {
		return fmt.Errorf("DA_PERCENTAGE must not be negative")
	}
	if c.FitmentFactor != "" {
		d, err := decimal.NewFromString(c.FitmentFactor)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("FITMENT_FACTOR must be a positive number, got %q", c.FitmentFactor)
		}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.FeedbackRateLimit <= 0 {
		return fmt.Errorf("FEEDBACK_RATE_LIMIT must be positive")
	}
	if c.DispatchInterval < time.Second {
		return fmt.Errorf("DISPATCH_INTERVAL must be at least 1s")
	}
	if c.EmailEnabled {
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
		}
		if c.FeedbackTo == "" {
			return fmt.Errorf("FEEDBACK_TO must be set when EMAIL_ENABLED is true")
		}
	}
	if c.IsProduction() && strings.HasPrefix(c.PublicURL, "http://localhost") {
		return fmt.Errorf("PUBLIC_URL must be set in production")
	}
	return nil
}
