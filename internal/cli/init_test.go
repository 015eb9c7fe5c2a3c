package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
)

func testConfig(t *testing.T, backendName string) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir: t.TempDir(),
		Ledger: config.LedgerConfig{
			Backend:     backendName,
			File:        "ledger.csv",
			SQLitePath:  "ledger.db",
			LockTimeout: time.Second,
		},
		Categories:  config.CategoriesConfig{File: "categories.txt", Defaults: []string{"Food"}},
		Attachments: config.AttachmentsConfig{Dir: "invoices", OnDelete: config.OnDeleteRemove},
		Log:         config.LogConfig{Level: "info", Format: "text"},
	}
}

func TestOpenLedger(t *testing.T) {
	for _, name := range []string{config.BackendCSV, config.BackendSQLite, config.BackendMemory} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, name)

			ledger, err := OpenLedger(ctx, cfg, log.Discard())
			if err != nil {
				t.Fatalf("OpenLedger() error = %v", err)
			}
			defer ledger.Close()

			if res := ledger.Startup(ctx); !res.OK {
				t.Fatalf("Startup() = %+v", res)
			}
			in := core.RecordInput{Date: "2024-01-05", Kind: "Expense", Category: "Food", Amount: "12,5"}
			if _, res := ledger.AddRecord(ctx, in); !res.OK {
				t.Fatalf("AddRecord() = %+v", res)
			}
			if got := ledger.View(ctx, "", "").Expense; got != "12.5" {
				t.Errorf("Expense = %q, want 12.5", got)
			}
			if _, err := os.Stat(filepath.Join(cfg.DataDir, "categories.txt")); err != nil {
				t.Errorf("categories file not seeded: %v", err)
			}
		})
	}
}

func TestOpenLedgerRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "sheets")
	if _, err := OpenLedger(context.Background(), cfg, log.Discard()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSetupLoggerSetsDefault(t *testing.T) {
	logger := SetupLogger("debug", "json")
	if logger.Component() != log.ComponentApp {
		t.Errorf("Component() = %q, want %q", logger.Component(), log.ComponentApp)
	}
	if !log.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should be at debug level")
	}
}
