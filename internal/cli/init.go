// Package cli provides common CLI initialization utilities shared by the
// commands under cmd/.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledger/internal/adapters"
	"ledger/internal/attachments"
	"ledger/internal/backend"
	"ledger/internal/categories"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/services"
)

// SetupLogger initializes structured logging on stderr, so stdout stays
// free for command output, and sets it as the default logger.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Format = format
	cfg.Output = os.Stderr
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger, configFile string) *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("Failed to load configuration", log.FieldError, err, log.FieldPath, configFile)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenLedger builds the backend named by cfg and wires the ledger adapter
// around it. The caller must run Startup before anything else and Close
// when done.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*adapters.LedgerAdapter, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	images := attachments.New(cfg.DataDir, cfg.Attachments.Dir, cfg.Attachments.OnDelete, logger)
	svc := services.NewLedgerService(res.Backend, res.Migrator, images, logger)
	cats := categories.New(cfg.CategoriesPath(), cfg.Categories.Defaults, logger)
	return adapters.NewLedgerAdapter(svc, cats, images, logger), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
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
