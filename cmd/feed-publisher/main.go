// Package main provides the entry point for the ssmd hot-path feed
// publisher. It wires the TSC clock, string interner, memory-mapped SPSC
// ring, dedicated disk flusher, in-memory transport, journal, and
// publisher together, and ingests newline-delimited JSON records from
// stdin as a synthetic feed; decoding any specific exchange's wire
// format is the job of a connector built on top of this binary, not of
// this binary itself.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aaronwald/ssmd/internal/clock"
	"github.com/aaronwald/ssmd/internal/config"
	"github.com/aaronwald/ssmd/internal/flusher"
	"github.com/aaronwald/ssmd/internal/intern"
	"github.com/aaronwald/ssmd/internal/journal"
	"github.com/aaronwald/ssmd/internal/metrics"
	"github.com/aaronwald/ssmd/internal/publisher"
	"github.com/aaronwald/ssmd/internal/ring"
	"github.com/aaronwald/ssmd/internal/transport"
)

// feedRecord is one line of the synthetic stdin feed.
type feedRecord struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Payload []byte `json:"payload"`
}

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
		logger.Error("feed publisher failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting ssmd feed publisher",
		"environment", cfg.Environment,
		"feed", cfg.Flusher.Feed,
		"ring_path", cfg.Ring.Path,
	)

	metrics.Register()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			metricsServer.Shutdown(context.Background())
		}()
	}

	c := clock.New(0)
	defer c.Stop()

	in := intern.New()

	r, err := ring.Open(ring.Config{
		Path:     cfg.Ring.Path,
		SlotSize: cfg.Ring.SlotSize,
		Slots:    cfg.Ring.Slots,
		Feed:     cfg.Ring.Feed,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	fl := flusher.New(r, cfg.Flusher.BaseDir, cfg.Flusher.Feed, logger)
	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		fl.Run()
	}()
	defer func() {
		fl.Stop()
		<-flusherDone
	}()

	tr := transport.New(c)
	defer tr.Close()

	j := journal.New(c)
	pub := publisher.New(tr, j, cfg.Environment, cfg.Flusher.Feed)

	logger.Info("feed publisher ready, reading synthetic feed from stdin")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec feedRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping malformed feed record", "error", err)
			continue
		}

		// Intern the message type so repeated types share one handle;
		// the handle itself isn't on the wire, only demonstrated here.
		in.Intern(rec.Type)

		if !r.TryWrite(rec.Payload) {
			logger.Warn("ring write rejected, archival record dropped", "feed", cfg.Flusher.Feed)
		}

		if _, err := pub.Publish(rec.Type, rec.Key, rec.Payload); err != nil {
			logger.Error("publish failed", "type", rec.Type, "key", rec.Key, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Give the flusher a moment to drain what TryWrite just handed it
	// before Stop forces a final drain on shutdown.
	time.Sleep(flusher.EmptySleep)

	logger.Info("ssmd feed publisher stopped gracefully", "interned", in.Len())
	return nil
}
