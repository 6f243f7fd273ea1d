package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"APP_ADDR", "APP_ENV", "PUBLIC_URL", "LOG_FORMAT", "LOG_LEVEL", "FEEDBACK_RATE_LIMIT",
		"ALLOWED_ORIGINS", "FITMENT_FACTOR", "DA_PERCENTAGE", "EMAIL_ENABLED", "MAX_BODY_BYTES",
		"DISPATCH_INTERVAL", "DATABASE_PATH", "TRUST_PROXY_HEADERS",
	} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 5, cfg.FeedbackRateLimit)
	assert.Equal(t, 0, cfg.DAPercentage)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.False(t, cfg.TrustProxy, "proxy headers are ignored unless enabled")
	_, ok := cfg.Fitment()
	assert.False(t, ok)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("DA_PERCENTAGE", "60")
	t.Setenv("FITMENT_FACTOR", "2.57")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DISPATCH_INTERVAL", "30s")
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("FEEDBACK_TO", "team@example.com")
	t.Setenv("PUBLIC_URL", "https://paycalc.example/")
	t.Setenv("SMTP_PORT", "not-a-port")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 60, cfg.DAPercentage)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.DispatchInterval)
	assert.Equal(t, "https://paycalc.example", cfg.PublicURL)
	assert.Equal(t, 587, cfg.SMTPPort, "unparseable values fall back")
	assert.True(t, cfg.TrustProxy)

	ff, ok := cfg.Fitment()
	require.True(t, ok)
	assert.Equal(t, "2.57", ff.String())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PUBLIC_URL", "LOG_FORMAT", "EMAIL_ENABLED", "MAX_BODY_BYTES", "DISPATCH_INTERVAL"} {
		t.Setenv(k, "")
	}
	base := Load()
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"negative da":          func(c *Config) { c.DAPercentage = -1 },
		"bad fitment":          func(c *Config) { c.FitmentFactor = "abc" },
		"zero fitment":         func(c *Config) { c.FitmentFactor = "0" },
		"bad log format":       func(c *Config) { c.LogFormat = "xml" },
		"zero rate limit":      func(c *Config) { c.FeedbackRateLimit = 0 },
		"tiny body":            func(c *Config) { c.MaxBodyBytes = 10 },
		"email without host":   func(c *Config) { c.EmailEnabled = true; c.SMTPHost = ""; c.FeedbackTo = "x@y.in" },
		"email without to":     func(c *Config) { c.EmailEnabled = true; c.SMTPHost = "smtp"; c.FeedbackTo = "" },
		"production localhost": func(c *Config) { c.Environment = "production"; c.PublicURL = "http://localhost:8080" },
		"empty db path":        func(c *Config) { c.DatabasePath = " " },
		"short dispatch":       func(c *Config) { c.DispatchInterval = time.Millisecond },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "DEBUG"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warning"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "verbose"}.SlogLevel())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PAYCALC_TEST_KEY=from-file\nAPP_ADDR=:7000\n"), 0o600))

	t.Setenv("APP_ADDR", ":6000")
	t.Setenv("PAYCALC_TEST_KEY", "")
	os.Unsetenv("PAYCALC_TEST_KEY")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("PAYCALC_TEST_KEY"))
	assert.Equal(t, ":6000", os.Getenv("APP_ADDR"), "process environment wins")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
