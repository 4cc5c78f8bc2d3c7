// Package main provides the entry point for the ssmd cache worker. It
// warms the secmaster Redis cache from a PostgreSQL snapshot, then applies
// the live CDC stream on top of it with LSN suppression and at-least-once
// semantics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aaronwald/ssmd/internal/cdc/cache"
	"github.com/aaronwald/ssmd/internal/cdc/consumer"
	"github.com/aaronwald/ssmd/internal/cdc/health"
	"github.com/aaronwald/ssmd/internal/cdc/warmer"
	"github.com/aaronwald/ssmd/internal/config"
	"github.com/aaronwald/ssmd/internal/metrics"
)

// defaultPrimaryKey is the primary-key column assumed for every configured
// table. Tables with a different key column are not supported by this
// entrypoint; wire a custom warmer.Config for those.
const defaultPrimaryKey = "id"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("cache worker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting ssmd cache worker",
		"environment", cfg.Environment,
		"consumer", cfg.NATS.ConsumerName,
		"tables", cfg.CDC.Tables,
	)

	metrics.Register()

	healthMgr := health.NewManager(health.DefaultManagerConfig(), logger)

	c, err := cache.New(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	tables := make([]warmer.TableConfig, 0, len(cfg.CDC.Tables))
	for _, t := range cfg.CDC.Tables {
		tables = append(tables, warmer.TableConfig{Table: t, PrimaryKey: defaultPrimaryKey})
	}

	w, err := warmer.Connect(ctx, warmer.Config{
		ConnectionURL: cfg.Database.URL,
		Tables:        tables,
	}, logger)
	if err != nil {
		return fmt.Errorf("create cache warmer: %w", err)
	}
	defer w.Close()

	consCfg := consumer.DefaultConfig()
	consCfg.NATSURL = cfg.NATS.URL
	consCfg.StreamName = cfg.NATS.StreamName
	consCfg.ConsumerName = cfg.NATS.ConsumerName

	cons, err := consumer.Connect(ctx, consCfg, c, logger)
	if err != nil {
		return fmt.Errorf("create cdc consumer: %w", err)
	}
	defer cons.Close()

	healthMgr.Register(health.NewStateChecker("cdc-consumer", cons.State, consumer.StateConsuming, consumer.StateFailed))
	healthMgr.Register(health.NewDatabaseChecker("redis-cache", c.Ping))
	healthMgr.Register(health.NewDatabaseChecker("postgres-warmer", w.Ping))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Health.Enabled {
		healthServer := health.NewServer(healthMgr, health.ServerConfig{
			ListenAddr:   cfg.Health.ListenAddr,
			ReadTimeout:  health.DefaultServerConfig().ReadTimeout,
			WriteTimeout: health.DefaultServerConfig().WriteTimeout,
		}, logger)
		g.Go(func() error {
			if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return healthServer.Stop(context.Background())
		})
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		if err := cons.Warm(gctx, w); err != nil {
			return fmt.Errorf("warm cache: %w", err)
		}
		logger.Info("cache warm complete, consuming live cdc events", "snapshot_lsn", cons.SnapshotLSN())
		return cons.Run(gctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	logger.Info("ssmd cache worker stopped gracefully")
	return nil
}
