package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "posledger",
		Short:        "Tokenized liquidity-position ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted position lifecycle against the simulated pool",
		RunE:  runDemo,
	}

	demoCmd.Flags().String("factory", "", "factory address for identity derivation")
	demoCmd.Flags().String("init-code-hash", "", "pool init code hash for identity derivation")
	demoCmd.Flags().Uint64("chain-id", 56, "chain id for the permit domain")
	demoCmd.Flags().String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	demoCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for position snapshots")
	demoCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(demoCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Load the operation journal into Postgres",
		RunE:  runExport,
	}

	exportCmd.Flags().String("journal", "./data/operations.jsonl", "operation journal JSONL path")
	exportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	exportCmd.Flags().Int("batch-size", 500, "batch size for DB writes")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(exportCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read a live pool's state and verify its derived identity",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("rpc", "", "RPC URL")
	inspectCmd.Flags().String("factory", "", "factory address")
	inspectCmd.Flags().String("init-code-hash", "", "pool init code hash")
	inspectCmd.Flags().String("token0", "", "first asset address")
	inspectCmd.Flags().String("token1", "", "second asset address")
	inspectCmd.Flags().Uint32("fee", 3000, "fee tier")
	inspectCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	inspectCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
