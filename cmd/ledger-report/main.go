// Command ledger-report prints the totals, expense categories and monthly
// balances of the ledger for an optional date range.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"ledger/internal/cli"
)

func main() {
	var (
		configFile = pflag.StringP("config", "c", "", "config file (default $LEDGER_CONFIG or ./ledger.yaml)")
		start      = pflag.String("start", "", "first day to include, YYYY-MM-DD")
		end        = pflag.String("end", "", "last day to include, YYYY-MM-DD")
		format     = pflag.StringP("format", "f", "text", "output format: text or json")
		records    = pflag.Bool("records", false, "also list the records, newest first")
	)
	pflag.Parse()

	cli.LoadEnvFile()
	bootLogger := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(bootLogger, *configFile)
	logger := cli.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	ledger, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	if res := ledger.Startup(ctx); !res.OK {
		logger.Error("Ledger startup failed", "error_type", res.Kind, "error", res.Message)
		os.Exit(1)
	}

	view := ledger.View(ctx, *start, *end)
	if view.Error != "" {
		logger.Error("Failed to read ledger", "error", view.Error)
		os.Exit(1)
	}
	if view.Warning != "" {
		logger.Warn(view.Warning)
	}
	if !*records {
		view.Records = nil
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(view)
	default:
		_, err = fmt.Fprint(os.Stdout, renderText(view))
	}
	if err != nil {
		logger.Error("Failed to write report", "error", err)
		os.Exit(1)
	}
}
