package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexIngest/internal/config"
	"dexIngest/internal/storage"
	"dexIngest/internal/storage/memory"
	"dexIngest/internal/storage/postgres"
	"dexIngest/internal/syncer"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Multi-chain DEX event ingestion and subgraph sync",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("store", config.StorePostgres, "store backend (postgres, memory)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run listeners, derivation, scheduled sync and the operator API",
		RunE:  runService,
	}
	runCmd.Flags().String("http-addr", ":8080", "operator API listen address, empty disables it")
	addListenerFlags(runCmd.Flags())
	addDeriveFlags(runCmd.Flags())
	addSyncFlags(runCmd.Flags())
	runCmd.Flags().Duration("sync-interval", 2*time.Minute, "interval between sync passes")
	root.AddCommand(runCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print its summary",
		RunE:  runSync,
	}
	syncCmd.Flags().Bool("full", false, "start every entity loop from the beginning")
	addSyncFlags(syncCmd.Flags())
	root.AddCommand(syncCmd)

	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive transaction records from every queued raw event",
		RunE:  runDerive,
	}
	addDeriveFlags(deriveCmd.Flags())
	root.AddCommand(deriveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create all tables",
		RunE:  runMigrate,
	}
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addListenerFlags(fs *pflag.FlagSet) {
	fs.Duration("reconnect-delay", 5*time.Second, "delay before each reconnect attempt")
	fs.Int("max-reconnect-attempts", 0, "failed reconnects before a chain stops, 0 means forever")
	fs.Int("queue-size", 256, "buffered logs per chain")
	fs.Int("workers", 2, "decode/persist workers per chain")
	fs.String("dead-letter", "./data/dead_letter.jsonl", "JSONL file for logs that failed decode or persist")
}

func addDeriveFlags(fs *pflag.FlagSet) {
	fs.Duration("derive-interval", 5*time.Second, "interval between derivation passes")
	fs.Int("derive-batch-size", 1000, "queued raw events per derivation batch")
}

func addSyncFlags(fs *pflag.FlagSet) {
	fs.Int("batch-size", 500, "rows per page")
	fs.Int("retry-count", 3, "attempts per page fetch on transport errors")
	fs.Duration("retry-delay", time.Second, "delay between page fetch attempts")
	fs.Int("max-concurrency", 8, "concurrent (chain, entity) loops")
	fs.Int("max-pages", 0, "pages per (chain, entity) per pass, 0 means unlimited")
	fs.StringSlice("entities", nil, "entity types to sync (comma-separated), empty means all")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Info("using in-memory store")
		return memory.NewStore(), nil
	default:
		store, err := postgres.NewStore(ctx, cfg.PGDSN, syncer.Tables(syncer.Entities))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("connected to postgres", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
		return store, nil
	}
}

func syncOptions(cfg config.SyncConfig) syncer.Options {
	return syncer.Options{
		BatchSize:      cfg.BatchSize,
		RetryCount:     cfg.RetryCount,
		RetryDelay:     cfg.RetryDelay,
		MaxConcurrency: cfg.MaxConcurrency,
		MaxPages:       cfg.MaxPages,
		Entities:       cfg.Entities,
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
