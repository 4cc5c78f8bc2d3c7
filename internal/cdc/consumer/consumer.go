// Package consumer implements the CDC Consumer: a durable JetStream
// pull subscriber that applies replicated changes to the secmaster
// cache with LSN suppression and at-least-once, idempotent semantics.
//
// The Starting/Warming/Consuming lifecycle is built on internal/cdc/state;
// readiness is reported through internal/cdc/health, shared with every
// other long-running service in this module.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwald/ssmd/internal/cdc"
	"github.com/aaronwald/ssmd/internal/cdc/cache"
	"github.com/aaronwald/ssmd/internal/cdc/state"
	"github.com/aaronwald/ssmd/internal/cdc/warmer"
	"github.com/aaronwald/ssmd/internal/metrics"
)

// CDC-consumer lifecycle states.
const (
	StateStarting  = "starting"
	StateWarming   = "warming"
	StateConsuming = "consuming"
	StateFailed    = "failed"
)

var transitions = map[string][]string{
	StateStarting:  {StateWarming, StateFailed},
	StateWarming:   {StateConsuming, StateFailed},
	StateConsuming: {StateConsuming, StateFailed},
}

// Consumer is the CDC Consumer.
type Consumer struct {
	config Config
	logger *slog.Logger
	sm     *state.Machine

	nc    *nats.Conn
	js    jetstream.JetStream
	cons  jetstream.Consumer
	cache *cache.Cache

	snapshotLSN string
	processed   int
}

// Connect dials NATS and obtains a JetStream context. The durable
// consumer itself is created later by Warm, once warming has completed
// and the snapshot LSN is known.
func Connect(ctx context.Context, cfg Config, c *cache.Cache, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ssmd-cdc-consumer"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	return &Consumer{
		config: cfg,
		logger: logger.With("component", "cdc-consumer", "consumer", cfg.ConsumerName),
		sm:     state.New(StateStarting, transitions),
		nc:     nc,
		js:     js,
		cache:  c,
	}, nil
}

// Close closes the NATS connection.
func (c *Consumer) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// State returns the consumer's current lifecycle state.
func (c *Consumer) State() string {
	return c.sm.State()
}

// Warm runs the cache warmer and records the returned snapshot LSN,
// transitioning Starting -> Warming -> Consuming.
func (c *Consumer) Warm(ctx context.Context, w *warmer.Warmer) error {
	if err := c.sm.Transition(StateWarming); err != nil {
		return err
	}

	snapshot, err := w.WarmAll(ctx, c.cache)
	if err != nil {
		c.sm.Transition(StateFailed)
		return fmt.Errorf("%w: %v", ErrWarmFailed, err)
	}
	c.snapshotLSN = snapshot
	c.logger.Info("cache warm complete", "snapshot_lsn", snapshot)

	if err := c.ensureConsumer(ctx); err != nil {
		c.sm.Transition(StateFailed)
		return err
	}

	return c.sm.Transition(StateConsuming)
}

// SnapshotLSN returns the LSN recorded by Warm.
func (c *Consumer) SnapshotLSN() string {
	return c.snapshotLSN
}

func (c *Consumer) ensureConsumer(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.config.StreamName, jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: "cdc.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConsumerEnsure, err)
	}
	c.cons = cons
	return nil
}

// Run pulls and applies messages until ctx is cancelled. Warm must have
// been called first.
func (c *Consumer) Run(ctx context.Context) error {
	if c.cons == nil {
		return ErrNotConnected
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msgs, err := c.cons.Fetch(c.config.FetchBatchSize, jetstream.FetchMaxWait(c.config.FetchTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}

		for msg := range msgs.Messages() {
			c.applyMessage(msg)
		}
		if err := msgs.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Warn("fetch batch ended with error", "error", err)
		}
	}
}

func (c *Consumer) applyMessage(msg jetstream.Msg) {
	var event cdc.Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.logger.Warn("poison cdc message, skipping", "error", err)
		msg.Ack()
		return
	}

	if cdc.LSNLess(event.LSN, c.snapshotLSN) {
		metrics.CDCEventsSuppressedTotal.WithLabelValues(event.Table).Inc()
		msg.Ack()
		return
	}

	pk, ok := event.PrimaryKey()
	if !ok {
		c.logger.Warn("cdc event missing primary key, skipping", "table", event.Table, "lsn", event.LSN)
		msg.Ack()
		return
	}

	ctx := context.Background()
	var applyErr error
	switch {
	case event.Op == cdc.OpDelete:
		applyErr = c.cache.Delete(ctx, event.Table, pk)
	case event.Data != nil:
		applyErr = c.cache.Set(ctx, event.Table, pk, event.Data)
	}

	if applyErr != nil {
		metrics.CDCErrorsTotal.WithLabelValues("cache_apply").Inc()
		c.logger.Error("failed to apply cdc event to cache", "table", event.Table, "pk", pk, "error", applyErr)
		msg.Nak()
		return
	}

	metrics.CDCEventsAppliedTotal.WithLabelValues(event.Table, string(event.Op)).Inc()
	msg.Ack()

	c.processed++
	if c.processed%c.config.ProgressLogInterval == 0 {
		c.logger.Info("cdc consumer progress", "processed", c.processed, "last_lsn", event.LSN)
	}
}
