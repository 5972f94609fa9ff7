// Package cli holds the start-up steps shared by cmd/expenses and
// cmd/expenses-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/pdf"
	"expenses/internal/report"
	"expenses/internal/storage"
	appweb "expenses/web"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads and validates the configuration, then builds the process
// logger at the configured level and installs it as slog's default. It exits
// the process when the configuration is unusable.
func LoadConfig(component string) (*config.Config, *log.Logger) {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", component, err)
		os.Exit(1)
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: component, Output: os.Stdout})
	log.SetDefault(logger)
	return cfg, logger
}

// InitSQLite opens the database and applies migrations, or exits.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewReportService parses the embedded templates and wires the wkhtmltopdf
// renderer. A missing binary is only logged: the PDF endpoint then answers
// 503 while the HTML report keeps working.
func NewReportService(cfg *config.Config, store report.Store, logger *log.Logger) (*report.Service, error) {
	tmpl, err := appweb.ParseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	opts := pdf.DefaultOptions()
	opts.BinaryPath = cfg.WkhtmltopdfPath
	renderer := pdf.NewWkhtmltopdf(opts)
	if err := renderer.Available(); err != nil {
		logger.Warn("PDF export disabled", log.FieldError, err.Error())
	}

	return report.NewService(store, tmpl,
		report.WithRenderer(renderer),
		report.WithCacheTTL(cfg.ReportCacheTTL),
		report.WithLogger(logger),
	), nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunCleanup calls cleanup with a deadline of timeout and logs if it is
// exceeded.
func RunCleanup(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := cleanup(ctx); err != nil {
		logger.Error("Shutdown error", log.FieldError, err.Error(), log.FieldOperation, log.OpShutdown)
	}
}
