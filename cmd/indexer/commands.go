package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"dexIngest/internal/config"
	"dexIngest/internal/derive"
	"dexIngest/internal/dex"
	"dexIngest/internal/subgraph"
	"dexIngest/internal/syncer"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	engine, err := syncer.NewEngine(subgraph.NewClient(nil, logger), store, config.NewChainSet(cfg.Chains), syncOptions(cfg.Sync), nil, logger)
	if err != nil {
		return err
	}

	mode := syncer.ModeIncremental
	if full, _ := cmd.Flags().GetBool("full"); full {
		mode = syncer.ModeFull
	}
	summary, err := engine.Run(ctx, mode)
	if err != nil {
		return err
	}

	line, err := sonnet.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(line))

	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d entity syncs failed", failed, len(summary.Results))
	}
	return nil
}

func runDerive(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	classifier, err := dex.NewClassifier(cfg.Signatures)
	if err != nil {
		return err
	}
	deriver := derive.NewDeriver(store, classifier, cfg.Derive.BatchSize, nil, logger)

	var total derive.Result
	for {
		res, err := deriver.RunOnce(ctx)
		if err != nil {
			return err
		}
		total.Events += res.Events
		total.Groups += res.Groups
		total.Created += res.Created
		total.Skipped += res.Skipped
		if res.Events < cfg.Derive.BatchSize {
			break
		}
	}

	logger.Info("derive complete",
		zap.Int("events", total.Events),
		zap.Int("groups", total.Groups),
		zap.Int("created", total.Created),
		zap.Int("skipped", total.Skipped),
	)
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("migration complete", zap.Int("mirrored_tables", len(syncer.Tables(syncer.Entities))))
	return nil
}
