/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the pay calculator server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration, apply flag overrides
  2. Configure structured logging
  3. Load the rate table (embedded defaults or RATES_FILE)
  4. Initialize SQLite store and the feedback service
  5. Start the feedback dispatcher
  6. Configure the rate limiter (Redis when REDIS_ADDR is set)
  7. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_ADDR)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database
  -env     dotenv file to load (default: .env)
  -feedback-report N
           Print the latest N feedback submissions as CSV and exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the dispatcher and the rate limiter
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run with in-memory database on a different port
  ./server -db=":memory:" -port=3000

  # Project 8th CPC with a different fitment factor
  FITMENT_FACTOR=2.57 ./server

  # Review recent feedback and its delivery status
  ./server -feedback-report=50 > feedback.csv

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - factory/rates.yaml: Default rate table
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/paycalc/api"
	"github.com/warp/paycalc/config"
	"github.com/warp/paycalc/factory"
	"github.com/warp/paycalc/feedback"
	"github.com/warp/paycalc/paymatrix"
	"github.com/warp/paycalc/ratelimit"
	"github.com/warp/paycalc/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides APP_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DATABASE_PATH)")
	envFile := flag.String("env", ".env", "dotenv file to load")
	report := flag.Int("feedback-report", 0, "print the latest N feedback submissions as CSV and exit")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg := config.Load()
	if *port > 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Report mode writes CSV to stdout and exits.
	if *report > 0 {
		return writeFeedbackReport(cfg.DatabasePath, *report)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Rate table
	rates, err := factory.NewRateFactory().Load(cfg.RatesFile)
	if err != nil {
		return err
	}
	if cfg.DAPercentage > 0 {
		rates.DAPercentage = cfg.DAPercentage
	}
	if ff, ok := cfg.Fitment(); ok {
		rates.FitmentFactor = ff
	}
	ratesVersion := "embedded"
	if cfg.RatesFile != "" {
		ratesVersion = cfg.RatesFile
	}
	logger.Info("rate table loaded",
		"source", ratesVersion,
		"da_percentage", rates.DAPercentage,
		"fitment_factor", rates.FitmentFactor.String())

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Feedback
	mailer := feedback.NewMailer(feedback.MailConfig{
		Enabled:  cfg.EmailEnabled,
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		UseTLS:   cfg.SMTPUseTLS,
	})
	if feedback.IsNoop(mailer) {
		logger.Warn("email disabled, feedback is stored but not forwarded")
	}
	feedbackSvc := feedback.NewService(store, mailer, feedback.Config{
		From: cfg.EmailFrom,
		To:   cfg.FeedbackTo,
	}, logger)

	dispatcher := feedback.NewDispatcher(feedbackSvc, logger)
	dispatcher.Interval = cfg.DispatchInterval
	dispatcher.Enabled = !feedback.IsNoop(mailer)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Rate limiter
	checks := map[string]api.Pinger{"database": store}
	window := time.Minute
	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rl := ratelimit.NewRedis(cfg.RedisAddr, cfg.FeedbackRateLimit, window)
		defer rl.Close()
		checks["redis"] = rl
		limiter = rl
		logger.Info("feedback rate limit backed by redis", "addr", cfg.RedisAddr)
	} else {
		rl := ratelimit.NewMemory(cfg.FeedbackRateLimit, window)
		defer rl.Stop()
		limiter = rl
	}

	// Initialize handler
	handler, err := api.NewHandler(api.Options{
		Rates:        rates,
		RatesVersion: ratesVersion,
		Matrix:       paymatrix.Default(),
		Feedback:     feedbackSvc,
		PublicURL:    cfg.PublicURL,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Checks:       checks,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handler: %w", err)
	}

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		FrontendDir:       cfg.FrontendDir,
		FeedbackLimiter:   limiter,
		RequestLogging:    !cfg.IsProduction() || cfg.SlogLevel() <= slog.LevelDebug,
		TrustProxyHeaders: cfg.TrustProxy,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func writeFeedbackReport(dbPath string, limit int) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	_, err = feedback.WriteReport(context.Background(), os.Stdout, store, limit)
	return err
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
