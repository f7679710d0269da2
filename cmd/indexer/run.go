package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dexIngest/internal/api"
	"dexIngest/internal/chain"
	"dexIngest/internal/config"
	"dexIngest/internal/derive"
	"dexIngest/internal/dex"
	"dexIngest/internal/indexer"
	"dexIngest/internal/metrics"
	"dexIngest/internal/storage"
	"dexIngest/internal/subgraph"
	"dexIngest/internal/syncer"
)

func runService(cmd *cobra.Command, _ []string) error {
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	classifier, err := dex.NewClassifier(cfg.Signatures)
	if err != nil {
		return err
	}

	chains := config.NewChainSet(cfg.Chains)
	registry := chain.NewRegistry(chain.Dial, logger)

	var deadLetter *storage.JSONLWriter
	if cfg.Listener.DeadLetter != "" {
		deadLetter = storage.NewJSONLWriter(cfg.Listener.DeadLetter)
	}
	listener := indexer.NewListener(indexer.ListenerConfig{
		ReconnectDelay:       cfg.Listener.ReconnectDelay,
		MaxReconnectAttempts: cfg.Listener.MaxReconnectAttempts,
		QueueSize:            cfg.Listener.QueueSize,
		Workers:              cfg.Listener.Workers,
	}, registry, indexer.NewPersister(store, logger), deadLetter, m, logger)

	deriver := derive.NewDeriver(store, classifier, cfg.Derive.BatchSize, m, logger)

	engine, err := syncer.NewEngine(subgraph.NewClient(nil, logger), store, chains, syncOptions(cfg.Sync), m, logger)
	if err != nil {
		return err
	}
	scheduler := syncer.NewScheduler(engine, cfg.Sync.Interval, logger)

	g, gctx := errgroup.WithContext(ctx)

	cfgFile, _ := cmd.Flags().GetString("config")
	watching, err := config.Watch(cfgFile, cmd.Flags(), logger, func(next config.Config) {
		chains.Replace(next.Chains)
		listener.Ensure(gctx, chains.Enabled())
	})
	if err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	}

	logger.Info("indexer start",
		zap.String("store", cfg.Store),
		zap.Int("chains", len(chains.Enabled())),
		zap.Duration("derive_interval", cfg.Derive.Interval),
		zap.Duration("sync_interval", cfg.Sync.Interval),
		zap.Int("sync_batch_size", cfg.Sync.BatchSize),
		zap.Bool("config_watch", watching),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	g.Go(func() error { return listener.Run(gctx, chains.Enabled()) })
	g.Go(func() error { return deriver.Run(gctx, cfg.Derive.Interval) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if cfg.HTTPAddr != "" {
		server := api.NewServer(gctx, cfg.HTTPAddr, api.Deps{
			Sync:     engine,
			Status:   store,
			Stats:    deriver,
			Listener: listener,
			Gatherer: reg,
		}, logger)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("indexer stopped")
	return err
}
