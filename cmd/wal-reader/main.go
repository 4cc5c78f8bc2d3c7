// Package main provides the entry point for the ssmd WAL Reader service.
// It polls a PostgreSQL logical replication slot decoded with wal2json and
// republishes each change as a durable CDC event on NATS JetStream.
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

	"github.com/aaronwald/ssmd/internal/cdc/health"
	"github.com/aaronwald/ssmd/internal/cdc/publish"
	"github.com/aaronwald/ssmd/internal/cdc/source/postgres"
	"github.com/aaronwald/ssmd/internal/config"
	"github.com/aaronwald/ssmd/internal/metrics"
)

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
		logger.Error("wal reader failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting ssmd WAL reader",
		"environment", cfg.Environment,
		"slot", cfg.CDC.ReplicationSlot,
		"publication", cfg.CDC.PublicationName,
	)

	metrics.Register()

	healthMgr := health.NewManager(health.DefaultManagerConfig(), logger)

	readerCfg := postgres.DefaultConfig()
	readerCfg.Name = "postgres-secmaster"
	readerCfg.ConnectionURL = cfg.Database.URL
	readerCfg.SlotName = cfg.CDC.ReplicationSlot
	readerCfg.PublicationName = cfg.CDC.PublicationName
	readerCfg.Tables = cfg.CDC.Tables
	readerCfg.PollInterval = cfg.CDC.PollInterval

	reader, err := postgres.New(readerCfg, logger)
	if err != nil {
		return fmt.Errorf("create wal reader: %w", err)
	}

	healthMgr.Register(health.NewStateChecker("wal-reader", reader.State, postgres.StatePolling, postgres.StateFailed))

	pubCfg := publish.DefaultConfig()
	pubCfg.URL = cfg.NATS.URL
	pubCfg.StreamName = cfg.NATS.StreamName

	pub, err := publish.New(ctx, pubCfg, logger)
	if err != nil {
		return fmt.Errorf("create cdc publisher: %w", err)
	}
	defer pub.Close()

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

	events, errs := reader.Start(gctx)

	g.Go(func() error {
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := pub.Publish(gctx, event); err != nil {
					// Publish-ack failure is fatal to the loop: pollChanges
					// already advanced the replication slot's
					// confirmed_flush_lsn when this event was read, so
					// logging and continuing here would silently drop it
					// forever. Returning lets errgroup cancel the service so
					// it restarts and does not race ahead of slot progress.
					return fmt.Errorf("publish cdc event table=%s lsn=%s: %w", event.Table, event.LSN, err)
				}
			case err, ok := <-errs:
				if !ok {
					continue
				}
				return fmt.Errorf("wal reader: %w", err)
			case <-gctx.Done():
				return reader.Stop(context.Background())
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	logger.Info("ssmd WAL reader stopped gracefully")
	return nil
}
